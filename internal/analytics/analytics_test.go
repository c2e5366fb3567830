package analytics

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"sensordash/internal/models"
)

func observations(start time.Time, values ...float64) []models.Observation {
	out := make([]models.Observation, len(values))
	for i, v := range values {
		out[i] = models.Observation{Timestamp: start.Add(time.Duration(i) * 10 * time.Second), Value: v}
	}
	return out
}

func TestMean(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}

	mean, err := Mean(values)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	if math.Abs(mean-sum/float64(len(values))) > 1e-9 {
		t.Errorf("Expected mean %.2f, got %.2f", sum/float64(len(values)), mean)
	}
}

func TestMean_Empty(t *testing.T) {
	if _, err := Mean(nil); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("Expected ErrEmptySeries, got %v", err)
	}
}

func TestSeries_MergeAppendsInOrder(t *testing.T) {
	s := NewSeries(models.Luminosity, 0)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	first := observations(start, 1, 2, 3)
	second := observations(start.Add(time.Minute), 4, 5)

	if n := s.Merge(first); n != 3 {
		t.Errorf("Expected 3 merged, got %d", n)
	}
	if n := s.Merge(second); n != 2 {
		t.Errorf("Expected 2 merged, got %d", n)
	}

	got := s.Observations()
	want := append(append([]models.Observation{}, first...), second...)
	if len(got) != len(want) {
		t.Fatalf("Expected %d points, got %d", len(want), len(got))
	}
	for i := range want {
		if !got[i].Timestamp.Equal(want[i].Timestamp) || got[i].Value != want[i].Value {
			t.Errorf("Point %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestSeries_EmptyMergeIsNoop(t *testing.T) {
	s := NewSeries(models.Humidity, 0)
	s.Merge(observations(time.Now(), 40, 41))
	before := s.Snapshot()

	if n := s.Merge(nil); n != 0 {
		t.Errorf("Expected 0 merged, got %d", n)
	}
	if n := s.Merge([]models.Observation{}); n != 0 {
		t.Errorf("Expected 0 merged, got %d", n)
	}

	after := s.Snapshot()
	if after.Len() != before.Len() {
		t.Fatalf("Expected length %d, got %d", before.Len(), after.Len())
	}
	for i := range before.Values {
		if before.Values[i] != after.Values[i] || !before.Timestamps[i].Equal(after.Timestamps[i]) {
			t.Errorf("Point %d changed after empty merge", i)
		}
	}
}

func TestSeries_OverlappingTicksAreNotDeduplicated(t *testing.T) {
	s := NewSeries(models.Temperature, 0)
	batch := observations(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		20, 21, 22, 23, 24, 25, 26, 27, 28, 29)

	s.Merge(batch)
	s.Merge(batch)

	if s.Len() != 20 {
		t.Errorf("Expected 20 points after two identical ticks, got %d", s.Len())
	}
}

func TestSeries_SnapshotConsistency(t *testing.T) {
	s := NewSeries(models.Luminosity, 0)

	empty := s.Snapshot()
	if !empty.Empty() || empty.Mean != nil {
		t.Errorf("Expected empty snapshot without mean, got %+v", empty)
	}

	s.Merge(observations(time.Now(), 2, 4, 9))
	snap := s.Snapshot()

	if len(snap.Timestamps) != len(snap.Values) {
		t.Fatalf("Timestamps/values length mismatch: %d vs %d", len(snap.Timestamps), len(snap.Values))
	}
	if snap.Mean == nil {
		t.Fatal("Expected mean to be set")
	}
	if math.Abs(*snap.Mean-5.0) > 0.001 {
		t.Errorf("Expected mean 5, got %.2f", *snap.Mean)
	}
	if snap.Series != models.Luminosity {
		t.Errorf("Expected series luminosity, got %s", snap.Series)
	}
}

func TestSeries_SnapshotIsCopy(t *testing.T) {
	s := NewSeries(models.Luminosity, 0)
	s.Merge(observations(time.Now(), 1, 2))

	snap := s.Snapshot()
	snap.Values[0] = 100

	if s.Observations()[0].Value != 1 {
		t.Error("Snapshot mutation leaked into series")
	}
}

func TestSeries_MaxPointsEvictsOldest(t *testing.T) {
	s := NewSeries(models.Humidity, 3)
	s.Merge(observations(time.Now(), 1, 2))
	s.Merge(observations(time.Now(), 3, 4, 5))

	if s.Len() != 3 {
		t.Fatalf("Expected capped length 3, got %d", s.Len())
	}
	if s.Evicted() != 2 {
		t.Errorf("Expected 2 evicted, got %d", s.Evicted())
	}

	snap := s.Snapshot()
	for i, want := range []float64{3, 4, 5} {
		if snap.Values[i] != want {
			t.Errorf("Point %d: expected %.0f, got %.0f", i, want, snap.Values[i])
		}
	}
}

func TestSeries_ConcurrentMergeIsAtomic(t *testing.T) {
	s := NewSeries(models.Temperature, 0)
	const batchSize = 7

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := s.Snapshot()
			if snap.Len()%batchSize != 0 {
				t.Errorf("Observed partial merge: %d points", snap.Len())
				return
			}
			if len(snap.Timestamps) != len(snap.Values) {
				t.Errorf("Timestamps/values mismatch")
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		s.Merge(observations(time.Now(), 1, 2, 3, 4, 5, 6, 7))
	}
	close(stop)
	wg.Wait()

	if s.Len() != 200*batchSize {
		t.Errorf("Expected %d points, got %d", 200*batchSize, s.Len())
	}
}

func TestStore_Series(t *testing.T) {
	st := NewStore(0)

	ids := st.IDs()
	if len(ids) != 3 || ids[0] != models.Luminosity || ids[1] != models.Humidity || ids[2] != models.Temperature {
		t.Errorf("Unexpected series order: %v", ids)
	}

	if _, err := st.Series(models.SeriesID("pressure")); !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("Expected ErrSeriesNotFound, got %v", err)
	}

	lum, err := st.Series(models.Luminosity)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	lum.Merge(observations(time.Now(), 10))

	hum, _ := st.Series(models.Humidity)
	if hum.Len() != 0 {
		t.Error("Series must not share state")
	}

	snaps := st.Snapshots()
	if len(snaps) != 3 || snaps[0].Len() != 1 {
		t.Errorf("Unexpected snapshots: %+v", snaps)
	}
}

func BenchmarkSeriesMerge(b *testing.B) {
	s := NewSeries(models.Luminosity, 0)
	batch := observations(time.Now(), 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Merge(batch)
	}
}

func BenchmarkMean(b *testing.B) {
	values := make([]float64, 10000)
	for i := range values {
		values[i] = float64(i % 100)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Mean(values)
	}
}
