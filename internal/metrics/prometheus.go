// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество HTTP запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensordash_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensordash_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// TicksTotal количество завершенных тиков
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensordash_ticks_total",
			Help: "Total number of completed ingestion ticks",
		},
		[]string{"series", "outcome"},
	)

	// TickDuration длительность тика (fetch, normalize, merge)
	TickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensordash_tick_duration_seconds",
			Help:    "Ingestion tick duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"series"},
	)

	// FetchErrors ошибки получения данных по виду
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensordash_fetch_errors_total",
			Help: "Total number of upstream fetch failures by kind",
		},
		[]string{"series", "kind"},
	)

	// RecordsFetched количество полученных сырых записей
	RecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensordash_records_fetched_total",
			Help: "Total number of raw records fetched from upstream",
		},
		[]string{"series"},
	)

	// RecordsSkipped количество отброшенных некорректных записей
	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensordash_records_skipped_total",
			Help: "Total number of malformed records skipped",
		},
		[]string{"series", "reason"},
	)

	// SeriesLength текущая длина ряда
	SeriesLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sensordash_series_length",
			Help: "Number of accumulated observations per series",
		},
		[]string{"series"},
	)

	// SeriesMean текущее среднее ряда
	SeriesMean = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sensordash_series_mean",
			Help: "Mean of all accumulated observations per series",
		},
		[]string{"series"},
	)

	// MirrorErrors ошибки записи в Redis
	MirrorErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensordash_mirror_errors_total",
			Help: "Total number of failed Redis mirror writes",
		},
	)
)

// UpdateSeriesMetrics обновляет метрики ряда после тика
func UpdateSeriesMetrics(series string, length int, mean *float64) {
	SeriesLength.WithLabelValues(series).Set(float64(length))
	if mean != nil {
		SeriesMean.WithLabelValues(series).Set(*mean)
	}
}
