// Package handlers содержит HTTP обработчики дашборда и API рядов
package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"sensordash/internal/analytics"
	"sensordash/internal/chart"
	"sensordash/internal/logging"
	"sensordash/internal/metrics"
	"sensordash/internal/models"
	"sensordash/internal/scheduler"
)

// MirrorReader читает зеркало тиков
type MirrorReader interface {
	GetLatest(ctx context.Context, id models.SeriesID, count int64) ([]models.Observation, error)
	GetMean(ctx context.Context, id models.SeriesID) (float64, bool, error)
	GetTicks(ctx context.Context, id models.SeriesID) (int64, error)
	Ping(ctx context.Context) error
}

// StateProvider сообщает состояние поллеров
type StateProvider interface {
	States() map[models.SeriesID]scheduler.State
	TotalTicks() int64
}

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	store     *analytics.Store
	states    StateProvider
	mirror    MirrorReader
	refresh   time.Duration
	logger    *slog.Logger
	startTime time.Time
}

// NewHandler создает новый обработчик. states и mirror могут быть nil.
func NewHandler(store *analytics.Store, states StateProvider, mirror MirrorReader, refresh time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	if refresh <= 0 {
		refresh = 10 * time.Second
	}
	return &Handler{
		store:     store,
		states:    states,
		mirror:    mirror,
		refresh:   refresh,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Register регистрирует маршруты
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/", h.DashboardHandler).Methods(http.MethodGet)
	router.HandleFunc("/charts/{series}.svg", h.ChartHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/series", h.ListSeriesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/series/{series}", h.SeriesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/series/{series}/latest", h.LatestHandler).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.StatsHandler).Methods(http.MethodGet)
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta http-equiv="refresh" content="{{.Refresh}}">
<title>Data Viewer</title></head>
<body>
<h1>Data Viewer</h1>
{{range .Series}}<div><img src="/charts/{{.}}.svg" alt="{{.}} chart" /></div>
{{end}}</body></html>`))

// DashboardHandler обрабатывает GET / - страница с графиками всех рядов
func (h *Handler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/", r.Method))
	defer timer.ObserveDuration()

	data := struct {
		Refresh int
		Series  []models.SeriesID
	}{
		Refresh: int(h.refresh.Seconds()),
		Series:  h.store.IDs(),
	}
	if data.Refresh < 1 {
		data.Refresh = 1
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, data); err != nil {
		h.logger.Error("render dashboard", logging.Err(err))
	}
	metrics.RequestsTotal.WithLabelValues("/", r.Method, "200").Inc()
}

// ChartHandler обрабатывает GET /charts/{series}.svg
func (h *Handler) ChartHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/charts/{series}.svg"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	series, ok := h.lookup(w, r, endpoint)
	if !ok {
		return
	}

	svg := chart.Render(series.Snapshot(), chart.StyleFor(series.ID()))

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(svg)
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
}

// ListSeriesHandler обрабатывает GET /api/series - снимки всех рядов
func (h *Handler) ListSeriesHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/api/series", r.Method))
	defer timer.ObserveDuration()

	metrics.RequestsTotal.WithLabelValues("/api/series", r.Method, "200").Inc()
	h.respondJSON(w, h.store.Snapshots(), http.StatusOK)
}

// SeriesHandler обрабатывает GET /api/series/{series} - метки, значения и среднее
func (h *Handler) SeriesHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/series/{series}"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	series, ok := h.lookup(w, r, endpoint)
	if !ok {
		return
	}

	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
	h.respondJSON(w, series.Snapshot(), http.StatusOK)
}

// LatestHandler возвращает последние наблюдения из зеркала Redis
func (h *Handler) LatestHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/series/{series}/latest"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	series, ok := h.lookup(w, r, endpoint)
	if !ok {
		return
	}

	count := int64(50)
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if c, err := strconv.ParseInt(countStr, 10, 64); err == nil && c > 0 && c <= 1000 {
			count = c
		}
	}

	if h.mirror == nil {
		h.respondError(w, "Mirror not available", http.StatusServiceUnavailable)
		metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "503").Inc()
		return
	}

	latest, err := h.mirror.GetLatest(r.Context(), series.ID(), count)
	if err != nil {
		h.logger.Warn("read mirror", "series", string(series.ID()), logging.Err(err))
		h.respondError(w, "Failed to get observations: "+err.Error(), http.StatusInternalServerError)
		metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "500").Inc()
		return
	}

	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
	h.respondJSON(w, latest, http.StatusOK)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disabled"
	if h.mirror != nil {
		redisStatus = "connected"
		if err := h.mirror.Ping(r.Context()); err != nil {
			redisStatus = "disconnected"
		}
	}

	pollers := make(map[string]string)
	if h.states != nil {
		for id, state := range h.states.States() {
			pollers[string(id)] = state.String()
		}
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     redisStatus,
		Uptime:    time.Since(h.startTime).String(),
		Pollers:   pollers,
	}

	h.respondJSON(w, status, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/stats", r.Method))
	defer timer.ObserveDuration()

	response := models.StatsResponse{Series: make(map[string]models.SeriesStats)}
	for _, snap := range h.store.Snapshots() {
		stats := models.SeriesStats{
			Points: snap.Len(),
			Mean:   snap.Mean,
		}
		if h.mirror != nil {
			h.mirrorStats(r.Context(), snap.Series, &stats)
		}
		response.Series[string(snap.Series)] = stats
	}
	if h.states != nil {
		response.TotalTicks = h.states.TotalTicks()
	}

	metrics.RequestsTotal.WithLabelValues("/stats", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// mirrorStats дополняет статистику данными Redis. Ошибки зеркала не ломают ответ.
func (h *Handler) mirrorStats(ctx context.Context, id models.SeriesID, stats *models.SeriesStats) {
	mean, ok, err := h.mirror.GetMean(ctx, id)
	if err != nil {
		h.logger.Warn("read mirror mean", "series", string(id), logging.Err(err))
		return
	}
	if ok {
		stats.MirrorMean = &mean
	}
	ticks, err := h.mirror.GetTicks(ctx, id)
	if err != nil {
		h.logger.Warn("read mirror ticks", "series", string(id), logging.Err(err))
		return
	}
	stats.MirrorTicks = &ticks
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, endpoint string) (*analytics.Series, bool) {
	name := mux.Vars(r)["series"]
	series, err := h.store.Series(models.SeriesID(name))
	if err != nil {
		h.respondError(w, "Series not found: "+name, http.StatusNotFound)
		metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "404").Inc()
		return nil, false
	}
	return series, true
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
