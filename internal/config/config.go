// Package config загружает конфигурацию сервиса из переменных окружения
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию сервиса
type Config struct {
	STHScheme       string
	STHHost         string
	STHPort         int
	FiwareService   string
	FiwareSvcPath   string
	EntityType      string
	EntityID        string
	ServerAddr      string
	PollInterval    time.Duration
	FetchTimeout    time.Duration
	LastN           int
	DisplayTZ       string
	SeriesMaxPoints int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisMirrorSize int
	LogLevel        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// Load читает .env (если есть) и переменные окружения
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv собирает конфигурацию только из окружения
func FromEnv() (Config, error) {
	var errs []error

	cfg := Config{
		STHScheme:       getEnv("STH_SCHEME", "http"),
		STHHost:         getEnv("STH_HOST", "18.117.118.157"),
		STHPort:         getEnvInt("STH_PORT", 8666, &errs),
		FiwareService:   getEnv("FIWARE_SERVICE", "smart"),
		FiwareSvcPath:   getEnv("FIWARE_SERVICEPATH", "/"),
		EntityType:      getEnv("ENTITY_TYPE", "Lamp"),
		EntityID:        getEnv("ENTITY_ID", "urn:ngsi-ld:Lamp:bit"),
		ServerAddr:      getEnv("SERVER_ADDR", "0.0.0.0:8050"),
		PollInterval:    getEnvDuration("POLL_INTERVAL", 10*time.Second, &errs),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 5*time.Second, &errs),
		LastN:           getEnvInt("LAST_N", 10, &errs),
		DisplayTZ:       getEnv("DISPLAY_TZ", "America/Sao_Paulo"),
		SeriesMaxPoints: getEnvInt("SERIES_MAX_POINTS", 0, &errs),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0, &errs),
		RedisMirrorSize: getEnvInt("REDIS_MIRROR_SIZE", 1000, &errs),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет значения конфигурации
func (c Config) Validate() error {
	switch {
	case c.STHHost == "":
		return errors.New("STH_HOST must not be empty")
	case c.STHPort <= 0 || c.STHPort > 65535:
		return fmt.Errorf("STH_PORT out of range: %d", c.STHPort)
	case c.LastN <= 0:
		return fmt.Errorf("LAST_N must be positive, got %d", c.LastN)
	case c.PollInterval <= 0:
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	case c.FetchTimeout <= 0:
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	case c.SeriesMaxPoints < 0:
		return fmt.Errorf("SERIES_MAX_POINTS must not be negative, got %d", c.SeriesMaxPoints)
	case c.DisplayTZ == "":
		return errors.New("DISPLAY_TZ must not be empty")
	}
	return nil
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения
func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return n
}

// getEnvDuration получает длительность ("10s", "500ms")
func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}
