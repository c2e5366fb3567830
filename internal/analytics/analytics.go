// Package analytics реализует накопление рядов показаний и расчет среднего
// Ряд только растет: без дедупликации, без сортировки и без вытеснения по умолчанию
package analytics

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"

	"sensordash/internal/models"
)

var (
	// ErrEmptySeries среднее пустого ряда не определено
	ErrEmptySeries = errors.New("mean of empty series is undefined")
	// ErrSeriesNotFound ряд не зарегистрирован в хранилище
	ErrSeriesNotFound = errors.New("series not found")
)

// Mean вычисляет среднее арифметическое всех значений
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySeries
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// Series хранит упорядоченную историю наблюдений одного ряда
type Series struct {
	mu        sync.RWMutex
	id        models.SeriesID
	points    *deque.Deque[models.Observation]
	maxPoints int
	evicted   int
}

// NewSeries создает пустой ряд. maxPoints <= 0 означает неограниченный рост,
// иначе самые старые точки вытесняются.
func NewSeries(id models.SeriesID, maxPoints int) *Series {
	if maxPoints < 0 {
		maxPoints = 0
	}
	return &Series{
		id:        id,
		points:    deque.New[models.Observation](),
		maxPoints: maxPoints,
	}
}

// ID возвращает имя ряда
func (s *Series) ID() models.SeriesID {
	return s.id
}

// Merge добавляет наблюдения в порядке получения и возвращает их число.
// Вся пачка добавляется под одной блокировкой.
func (s *Series) Merge(batch []models.Observation) int {
	if len(batch) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range batch {
		s.points.PushBack(o)
	}
	if s.maxPoints > 0 {
		for s.points.Len() > s.maxPoints {
			s.points.PopFront()
			s.evicted++
		}
	}
	return len(batch)
}

// Len возвращает количество точек
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points.Len()
}

// Evicted возвращает количество точек, вытесненных ограничением
func (s *Series) Evicted() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}

// Observations возвращает копию истории
func (s *Series) Observations() []models.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Observation, s.points.Len())
	for i := range out {
		out[i] = s.points.At(i)
	}
	return out
}

// Snapshot возвращает согласованную копию меток, значений и среднего
func (s *Series) Snapshot() models.Snapshot {
	s.mu.RLock()
	n := s.points.Len()
	timestamps := make([]time.Time, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		o := s.points.At(i)
		timestamps[i] = o.Timestamp
		values[i] = o.Value
	}
	s.mu.RUnlock()

	snap := models.Snapshot{
		Series:     s.id,
		Timestamps: timestamps,
		Values:     values,
	}
	if mean, err := Mean(values); err == nil {
		snap.Mean = &mean
	}
	return snap
}

// Store владеет рядами процесса. Создается при старте и передается
// планировщику и обработчикам.
type Store struct {
	order  []models.SeriesID
	series map[models.SeriesID]*Series
}

// NewStore создает пустые ряды для всех идентификаторов
func NewStore(maxPoints int, ids ...models.SeriesID) *Store {
	if len(ids) == 0 {
		ids = models.AllSeries
	}
	st := &Store{series: make(map[models.SeriesID]*Series, len(ids))}
	for _, id := range ids {
		if _, ok := st.series[id]; ok {
			continue
		}
		st.order = append(st.order, id)
		st.series[id] = NewSeries(id, maxPoints)
	}
	return st
}

// Series возвращает ряд по имени
func (st *Store) Series(id models.SeriesID) (*Series, error) {
	s, ok := st.series[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, id)
	}
	return s, nil
}

// IDs возвращает зарегистрированные ряды в порядке регистрации
func (st *Store) IDs() []models.SeriesID {
	ids := make([]models.SeriesID, len(st.order))
	copy(ids, st.order)
	return ids
}

// Snapshots возвращает снимки всех рядов
func (st *Store) Snapshots() []models.Snapshot {
	ids := st.IDs()
	out := make([]models.Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, st.series[id].Snapshot())
	}
	return out
}
