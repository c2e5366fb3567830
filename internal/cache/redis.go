// Package cache зеркалирует последние наблюдения рядов в Redis
// Зеркало не является хранилищем: при старте из него ничего не восстанавливается
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"sensordash/internal/models"
)

const (
	// ObservationsKeyPrefix префикс для списков наблюдений
	ObservationsKeyPrefix = "series:observations:"
	// MeanKeyPrefix префикс для среднего
	MeanKeyPrefix = "series:mean:"
	// TicksKeyPrefix префикс для счетчиков тиков
	TicksKeyPrefix = "series:ticks:"
	// DefaultMirrorSize сколько последних наблюдений хранить
	DefaultMirrorSize = 1000
	// MeanTTL время жизни среднего
	MeanTTL = 5 * time.Minute
)

// RedisCache реализует зеркало в Redis
type RedisCache struct {
	client     *redis.Client
	mirrorSize int64
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(ctx context.Context, addr, password string, db, mirrorSize int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if mirrorSize <= 0 {
		mirrorSize = DefaultMirrorSize
	}

	return &RedisCache{
		client:     client,
		mirrorSize: int64(mirrorSize),
	}, nil
}

func observationsKey(id models.SeriesID) string {
	return ObservationsKeyPrefix + string(id)
}

// MirrorTick сохраняет новые наблюдения тика и текущее среднее
func (r *RedisCache) MirrorTick(ctx context.Context, id models.SeriesID, batch []models.Observation, mean *float64) error {
	pipe := r.client.TxPipeline()

	if len(batch) > 0 {
		items := make([]interface{}, 0, len(batch))
		for _, o := range batch {
			data, err := json.Marshal(o)
			if err != nil {
				return fmt.Errorf("failed to marshal observation: %w", err)
			}
			items = append(items, data)
		}
		key := observationsKey(id)
		pipe.RPush(ctx, key, items...)
		pipe.LTrim(ctx, key, -r.mirrorSize, -1)
	}
	if mean != nil {
		pipe.Set(ctx, MeanKeyPrefix+string(id), *mean, MeanTTL)
	}
	pipe.Incr(ctx, TicksKeyPrefix+string(id))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror tick: %w", err)
	}
	return nil
}

// GetLatest возвращает последние count наблюдений в порядке поступления
func (r *RedisCache) GetLatest(ctx context.Context, id models.SeriesID, count int64) ([]models.Observation, error) {
	if count <= 0 {
		return []models.Observation{}, nil
	}
	data, err := r.client.LRange(ctx, observationsKey(id), -count, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest observations: %w", err)
	}

	out := make([]models.Observation, 0, len(data))
	for _, d := range data {
		var o models.Observation
		if err := json.Unmarshal([]byte(d), &o); err != nil {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// GetMean возвращает последнее сохраненное среднее
func (r *RedisCache) GetMean(ctx context.Context, id models.SeriesID) (float64, bool, error) {
	val, err := r.client.Get(ctx, MeanKeyPrefix+string(id)).Float64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

// GetTicks возвращает счетчик тиков ряда
func (r *RedisCache) GetTicks(ctx context.Context, id models.SeriesID) (int64, error) {
	val, err := r.client.Get(ctx, TicksKeyPrefix+string(id)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}
