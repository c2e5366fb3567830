package scheduler

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"sensordash/internal/models"
	"sensordash/internal/timestamp"
)

// Причины отбрасывания записи
const (
	ReasonTimestamp = "timestamp"
	ReasonValue     = "value"
)

var errNonFinite = errors.New("non-finite value")

// SkippedRecord некорректная запись, не попавшая в ряд
type SkippedRecord struct {
	Record models.RawRecord
	Reason string
	Err    error
}

// Convert нормализует сырые записи. Некорректные записи пропускаются,
// остальные сохраняют порядок получения.
func Convert(records []models.RawRecord, n *timestamp.Normalizer) ([]models.Observation, []SkippedRecord) {
	out := make([]models.Observation, 0, len(records))
	var skipped []SkippedRecord

	for _, rec := range records {
		ts, err := n.Normalize(rec.RecvTime)
		if err != nil {
			skipped = append(skipped, SkippedRecord{Record: rec, Reason: ReasonTimestamp, Err: err})
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(rec.AttrValue), 64)
		if err == nil && (math.IsNaN(value) || math.IsInf(value, 0)) {
			err = errNonFinite
		}
		if err != nil {
			skipped = append(skipped, SkippedRecord{
				Record: rec,
				Reason: ReasonValue,
				Err:    fmt.Errorf("parse value %q: %w", rec.AttrValue, err),
			})
			continue
		}
		out = append(out, models.Observation{Timestamp: ts, Value: value})
	}
	return out, skipped
}
