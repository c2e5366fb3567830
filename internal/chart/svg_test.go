package chart

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensordash/internal/models"
)

func wellFormed(t *testing.T, svg []byte) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(string(svg)))
	for {
		_, err := dec.Token()
		if err != nil {
			require.True(t, errors.Is(err, io.EOF), "svg is not well-formed: %v", err)
			return
		}
	}
}

func TestRender_EmptyPlaceholder(t *testing.T) {
	svg := Render(models.Snapshot{Series: models.Humidity}, StyleFor(models.Humidity))

	wellFormed(t, svg)
	s := string(svg)
	assert.Contains(t, s, "Humidity Over Time")
	assert.Contains(t, s, "No data yet")
	assert.NotContains(t, s, "<polyline")
	assert.NotContains(t, s, "class=\"mean\"")
}

func TestRender_SeriesWithMean(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	mean := 21.0
	snap := models.Snapshot{
		Series:     models.Temperature,
		Timestamps: []time.Time{start, start.Add(10 * time.Second), start.Add(20 * time.Second)},
		Values:     []float64{20, 21, 22},
		Mean:       &mean,
	}

	svg := Render(snap, StyleFor(models.Temperature))

	wellFormed(t, svg)
	s := string(svg)
	assert.Contains(t, s, "<polyline class=\"values\"")
	assert.Equal(t, 3, strings.Count(s, "<circle"))
	assert.Contains(t, s, "class=\"mean\"")
	assert.Contains(t, s, "stroke-dasharray")
	assert.Contains(t, s, "stroke=\"green\"")
	assert.Contains(t, s, "stroke=\"purple\"")
	assert.Contains(t, s, "Mean Temperature: 21.00")
	// Линия среднего тянется от первой до последней метки
	assert.Contains(t, s, "x1=\"60.0\"")
	assert.Contains(t, s, "x2=\"780.0\"")
}

func TestRender_SinglePointAndFlatValues(t *testing.T) {
	mean := 5.0
	snap := models.Snapshot{
		Series:     models.Luminosity,
		Timestamps: []time.Time{time.Now()},
		Values:     []float64{5},
		Mean:       &mean,
	}

	svg := Render(snap, StyleFor(models.Luminosity))

	wellFormed(t, svg)
	assert.NotContains(t, string(svg), "NaN")
	assert.Equal(t, 1, strings.Count(string(svg), "<circle"))
}

func TestRender_EscapesStyle(t *testing.T) {
	svg := Render(models.Snapshot{}, Style{Title: "<script>&"})

	wellFormed(t, svg)
	assert.Contains(t, string(svg), "&lt;script&gt;&amp;")
}

func TestStyleFor_Unknown(t *testing.T) {
	style := StyleFor(models.SeriesID("pressure"))
	assert.Equal(t, "pressure", style.Title)
	assert.NotEmpty(t, style.LineColor)
}
