// Package scheduler периодически запускает тики получения данных по каждому ряду
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sensordash/internal/analytics"
	"sensordash/internal/logging"
	"sensordash/internal/metrics"
	"sensordash/internal/models"
	"sensordash/internal/source"
	"sensordash/internal/timestamp"
)

// State состояние поллера
type State int32

const (
	Idle State = iota
	Ticking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ticking:
		return "ticking"
	default:
		return "unknown"
	}
}

// Fetcher получает сырые записи ряда
type Fetcher interface {
	Fetch(ctx context.Context, id models.SeriesID, lastN int) ([]models.RawRecord, error)
}

// Mirror получает результат каждого тика (например, Redis)
type Mirror interface {
	MirrorTick(ctx context.Context, id models.SeriesID, batch []models.Observation, mean *float64) error
}

// Config параметры поллера
type Config struct {
	Interval time.Duration
	LastN    int
}

// TickResult итог одного тика
type TickResult struct {
	TickID  string
	Fetched int
	Merged  int
	Skipped []SkippedRecord
	Err     error
}

// Poller выполняет тики одного ряда: fetch → normalize → merge
type Poller struct {
	cfg        Config
	series     *analytics.Series
	fetcher    Fetcher
	normalizer *timestamp.Normalizer
	mirror     Mirror
	logger     *slog.Logger

	state atomic.Int32
	ticks atomic.Int64
}

// NewPoller создает поллер. mirror может быть nil.
func NewPoller(cfg Config, series *analytics.Series, fetcher Fetcher, normalizer *timestamp.Normalizer, mirror Mirror, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.LastN <= 0 {
		cfg.LastN = 10
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Poller{
		cfg:        cfg,
		series:     series,
		fetcher:    fetcher,
		normalizer: normalizer,
		mirror:     mirror,
		logger:     logger.With("series", string(series.ID())),
	}
}

// ID возвращает имя ряда
func (p *Poller) ID() models.SeriesID {
	return p.series.ID()
}

// State возвращает текущее состояние
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Ticks возвращает количество завершенных тиков
func (p *Poller) Ticks() int64 {
	return p.ticks.Load()
}

// Run выполняет первый тик сразу, затем по таймеру, пока не отменен ctx.
// Тики не перекрываются: time.Ticker пропускает срабатывания, пока тик выполняется.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("poller started", "interval", p.cfg.Interval.String(), "last_n", p.cfg.LastN)
	for {
		if ctx.Err() != nil {
			p.logger.Info("poller stopped", "ticks", p.Ticks())
			return
		}
		p.Tick(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped", "ticks", p.Ticks())
			return
		case <-ticker.C:
		}
	}
}

// Tick выполняет один цикл. Ошибки получения трактуются как пустая выборка.
func (p *Poller) Tick(ctx context.Context) TickResult {
	p.state.Store(int32(Ticking))
	defer p.state.Store(int32(Idle))

	start := time.Now()
	id := string(p.series.ID())
	res := TickResult{TickID: uuid.NewString()}
	log := p.logger.With("tick_id", res.TickID)

	defer func() {
		p.ticks.Add(1)
		metrics.TickDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if res.Err != nil {
			outcome = "fetch_error"
		} else if res.Merged == 0 {
			outcome = "empty"
		}
		metrics.TicksTotal.WithLabelValues(id, outcome).Inc()
	}()

	records, err := p.fetcher.Fetch(ctx, p.series.ID(), p.cfg.LastN)
	if err != nil {
		res.Err = err
		p.logFetchError(log, err)
		if ctx.Err() != nil {
			return res
		}
		p.mirrorTick(ctx, log, nil, nil)
		return res
	}
	res.Fetched = len(records)
	metrics.RecordsFetched.WithLabelValues(id).Add(float64(len(records)))

	batch, skipped := Convert(records, p.normalizer)
	res.Skipped = skipped
	if len(skipped) > 0 {
		for _, s := range skipped {
			metrics.RecordsSkipped.WithLabelValues(id, s.Reason).Inc()
		}
		log.Warn("malformed records skipped",
			"skipped", len(skipped),
			"admitted", len(batch),
			"first_reason", skipped[0].Reason,
			logging.Err(skipped[0].Err))
	}

	res.Merged = p.series.Merge(batch)

	snap := p.series.Snapshot()
	metrics.UpdateSeriesMetrics(id, snap.Len(), snap.Mean)
	log.Debug("tick completed", "fetched", res.Fetched, "merged", res.Merged, "length", snap.Len())

	p.mirrorTick(ctx, log, batch, snap.Mean)
	return res
}

func (p *Poller) mirrorTick(ctx context.Context, log *slog.Logger, batch []models.Observation, mean *float64) {
	if p.mirror == nil {
		return
	}
	if err := p.mirror.MirrorTick(ctx, p.series.ID(), batch, mean); err != nil {
		metrics.MirrorErrors.Inc()
		log.Warn("mirror write failed", logging.Err(err))
	}
}

func (p *Poller) logFetchError(log *slog.Logger, err error) {
	var ferr *source.FetchError
	if errors.As(err, &ferr) {
		metrics.FetchErrors.WithLabelValues(string(p.series.ID()), string(ferr.Kind)).Inc()
		log.Warn("fetch failed, no new data this tick",
			"kind", string(ferr.Kind),
			"status", ferr.StatusCode,
			logging.Err(ferr.Err))
		return
	}
	metrics.FetchErrors.WithLabelValues(string(p.series.ID()), "other").Inc()
	log.Error("fetch failed", logging.Err(err))
}

// Scheduler запускает поллеры всех рядов независимо друг от друга
type Scheduler struct {
	pollers []*Poller
	logger  *slog.Logger
}

// New создает планировщик
func New(logger *slog.Logger, pollers ...*Poller) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{pollers: pollers, logger: logger}
}

// Pollers возвращает поллеры
func (s *Scheduler) Pollers() []*Poller {
	return s.pollers
}

// States возвращает состояние каждого ряда
func (s *Scheduler) States() map[models.SeriesID]State {
	out := make(map[models.SeriesID]State, len(s.pollers))
	for _, p := range s.pollers {
		out[p.ID()] = p.State()
	}
	return out
}

// TotalTicks сумма завершенных тиков по всем рядам
func (s *Scheduler) TotalTicks() int64 {
	var total int64
	for _, p := range s.pollers {
		total += p.Ticks()
	}
	return total
}

// Run блокируется до отмены ctx
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range s.pollers {
		wg.Add(1)
		go func(p *Poller) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}
	s.logger.Info("scheduler started", "series", len(s.pollers))
	wg.Wait()
	s.logger.Info("scheduler stopped")
}
