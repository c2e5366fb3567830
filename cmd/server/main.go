// Package main запускает дашборд исторических показаний датчиков
// Сервис реализует:
// - периодический опрос FIWARE STH-Comet по трем рядам (luminosity, humidity, temperature)
// - накопление показаний в памяти и нормализацию меток в пояс отображения
// - SVG графики со средним и JSON API рядов
// - необязательное зеркало последних показаний в Redis
// - экспорт метрик в Prometheus
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sensordash/internal/analytics"
	"sensordash/internal/cache"
	"sensordash/internal/config"
	"sensordash/internal/handlers"
	"sensordash/internal/logging"
	"sensordash/internal/scheduler"
	"sensordash/internal/source"
	"sensordash/internal/timestamp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", logging.Err(err))
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting sensor dashboard",
		"go_version", runtime.Version(),
		"sth", cfg.STHHost,
		"sth_port", cfg.STHPort,
		"poll_interval", cfg.PollInterval.String(),
		"last_n", cfg.LastN,
		"display_tz", cfg.DisplayTZ,
		"series_max_points", cfg.SeriesMaxPoints)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	normalizer, err := timestamp.NewNormalizer(cfg.DisplayTZ)
	if err != nil {
		logger.Error("invalid display time zone", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("display zone loaded", "zone", normalizer.Location().String())

	// Ряды живут только в памяти процесса
	store := analytics.NewStore(cfg.SeriesMaxPoints)

	client := source.NewClient(source.Config{
		Scheme:      cfg.STHScheme,
		Host:        cfg.STHHost,
		Port:        cfg.STHPort,
		Service:     cfg.FiwareService,
		ServicePath: cfg.FiwareSvcPath,
		EntityType:  cfg.EntityType,
		EntityID:    cfg.EntityID,
		Timeout:     cfg.FetchTimeout,
	}, nil)

	redisCache := connectRedis(ctx, cfg, logger)

	var mirror scheduler.Mirror
	var mirrorReader handlers.MirrorReader
	if redisCache != nil {
		mirror = redisCache
		mirrorReader = redisCache
	}

	pollerCfg := scheduler.Config{Interval: cfg.PollInterval, LastN: cfg.LastN}
	var pollers []*scheduler.Poller
	for _, id := range store.IDs() {
		series, err := store.Series(id)
		if err != nil {
			logger.Error("series lookup", logging.Err(err))
			os.Exit(1)
		}
		pollers = append(pollers, scheduler.NewPoller(pollerCfg, series, client, normalizer, mirror, logger))
	}
	sched := scheduler.New(logger, pollers...)

	handler := handlers.NewHandler(store, sched, mirrorReader, cfg.PollInterval, logger)

	router := mux.NewRouter()
	handler.Register(router)
	router.Handle("/prometheus", promhttp.Handler())
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	server := &http.Server{
		Addr: cfg.ServerAddr,
		Handler: gorillahandlers.RecoveryHandler(gorillahandlers.PrintRecoveryStack(true))(
			gorillahandlers.CombinedLoggingHandler(logging.Writer(logger, "http access"), router)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	go func() {
		logger.Info("server listening", "addr", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", logging.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", logging.Err(err))
	}

	<-schedDone

	if redisCache != nil {
		redisCache.Close()
	}

	logger.Info("server stopped")
}

// connectRedis подключает зеркало, если задан REDIS_ADDR. Без Redis сервис работает.
func connectRedis(ctx context.Context, cfg config.Config, logger *slog.Logger) *cache.RedisCache {
	if cfg.RedisAddr == "" {
		logger.Info("redis mirror disabled")
		return nil
	}

	var lastErr error
	for i := 0; i < 5; i++ {
		c, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisMirrorSize)
		if err == nil {
			logger.Info("connected to redis", "addr", cfg.RedisAddr)
			return c
		}
		lastErr = err
		logger.Warn("redis connection attempt failed", "attempt", i+1, logging.Err(err))
		if i < 4 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Duration(i+1) * time.Second):
			}
		}
	}

	logger.Warn("running without redis mirror", logging.Err(lastErr))
	return nil
}
