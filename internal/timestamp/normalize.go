// Package timestamp приводит метки времени STH к часовому поясу отображения
package timestamp

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	// LayoutFraction формат с долями секунды
	LayoutFraction = "2006-01-02 15:04:05.999999"
	// LayoutSeconds формат без долей секунды
	LayoutSeconds = "2006-01-02 15:04:05"
)

// maxFractionDigits точность recvTime: не больше микросекунд
const maxFractionDigits = 6

var errFraction = errors.New("fractional seconds must have 1 to 6 digits")

// ParseError возвращается, если метка не подходит ни под один формат
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse timestamp %q: %v", e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Normalizer переводит метки из UTC в заданный пояс
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer создает нормализатор для IANA-пояса
func NewNormalizer(zone string) (*Normalizer, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", zone, err)
	}
	return &Normalizer{loc: loc}, nil
}

// Location возвращает целевой пояс
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize разбирает метку как UTC и переводит в целевой пояс.
// Метка с точкой разбирается с долями секунды, без точки - с целыми секундами.
func (n *Normalizer) Normalize(raw string) (time.Time, error) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(raw, "T", " "), "Z", "")

	layout := LayoutSeconds
	if dot := strings.LastIndexByte(cleaned, '.'); dot >= 0 {
		if digits := len(cleaned) - dot - 1; digits < 1 || digits > maxFractionDigits {
			return time.Time{}, &ParseError{Raw: raw, Err: errFraction}
		}
		layout = LayoutFraction
	}

	t, err := time.ParseInLocation(layout, cleaned, time.UTC)
	if err != nil {
		return time.Time{}, &ParseError{Raw: raw, Err: err}
	}
	return t.In(n.loc), nil
}
