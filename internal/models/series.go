// Package models содержит структуры данных для показаний датчиков и рядов
package models

import "time"

// SeriesID идентифицирует один из наблюдаемых рядов
type SeriesID string

const (
	Luminosity  SeriesID = "luminosity"
	Humidity    SeriesID = "humidity"
	Temperature SeriesID = "temperature"
)

// AllSeries фиксированный набор рядов в порядке отображения
var AllSeries = []SeriesID{Luminosity, Humidity, Temperature}

// RawRecord сырая запись STH до нормализации
type RawRecord struct {
	AttrValue string `json:"attrValue"`
	RecvTime  string `json:"recvTime"`
}

// Observation одно нормализованное показание
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Snapshot содержимое ряда для рендера: все метки, все значения и среднее.
// Mean равно nil, пока ряд пуст.
type Snapshot struct {
	Series     SeriesID    `json:"series"`
	Timestamps []time.Time `json:"timestamps"`
	Values     []float64   `json:"values"`
	Mean       *float64    `json:"mean,omitempty"`
}

// Len возвращает количество точек
func (s Snapshot) Len() int {
	return len(s.Values)
}

// Empty сообщает, есть ли в снимке данные
func (s Snapshot) Empty() bool {
	return len(s.Values) == 0
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Redis     string            `json:"redis"`
	Uptime    string            `json:"uptime"`
	Pollers   map[string]string `json:"pollers"`
}

// SeriesStats статистика по одному ряду
// MirrorMean и MirrorTicks заполняются, только если включен Redis.
type SeriesStats struct {
	Points      int      `json:"points"`
	Mean        *float64 `json:"mean,omitempty"`
	MirrorMean  *float64 `json:"mirror_mean,omitempty"`
	MirrorTicks *int64   `json:"mirror_ticks,omitempty"`
}

// StatsResponse содержит статистику сервиса
type StatsResponse struct {
	Series     map[string]SeriesStats `json:"series"`
	TotalTicks int64                  `json:"total_ticks"`
}
