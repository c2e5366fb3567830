// Package chart рисует ряд в SVG: линия с маркерами и пунктир среднего
package chart

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"time"

	"sensordash/internal/models"
)

const (
	Width  = 800
	Height = 320

	marginLeft   = 60
	marginRight  = 20
	marginTop    = 40
	marginBottom = 50
)

// Style оформление графика
type Style struct {
	Title     string
	YLabel    string
	LineColor string
	MeanColor string
	MeanLabel string
}

// DefaultStyles оформление трех рядов
var DefaultStyles = map[models.SeriesID]Style{
	models.Luminosity: {
		Title: "Luminosity Over Time", YLabel: "Luminosity",
		LineColor: "orange", MeanColor: "blue", MeanLabel: "Mean Luminosity",
	},
	models.Humidity: {
		Title: "Humidity Over Time", YLabel: "Humidity",
		LineColor: "blue", MeanColor: "red", MeanLabel: "Mean Humidity",
	},
	models.Temperature: {
		Title: "Temperature Over Time", YLabel: "Temperature",
		LineColor: "green", MeanColor: "purple", MeanLabel: "Mean Temperature",
	},
}

// StyleFor возвращает оформление ряда или нейтральное по умолчанию
func StyleFor(id models.SeriesID) Style {
	if s, ok := DefaultStyles[id]; ok {
		return s
	}
	return Style{Title: string(id), YLabel: string(id), LineColor: "#1f77b4", MeanColor: "#888888", MeanLabel: "Mean"}
}

// Render строит SVG. Пустой снимок дает заглушку без данных.
func Render(snap models.Snapshot, style Style) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "<svg xmlns=\"http://www.w3.org/2000/svg\" width=\"%d\" height=\"%d\" viewBox=\"0 0 %d %d\">\n",
		Width, Height, Width, Height)
	fmt.Fprintf(&buf, "<rect width=\"%d\" height=\"%d\" fill=\"white\"/>\n", Width, Height)
	fmt.Fprintf(&buf, "<text x=\"%d\" y=\"24\" font-family=\"sans-serif\" font-size=\"16\" text-anchor=\"middle\">%s</text>\n",
		Width/2, html.EscapeString(style.Title))

	if snap.Empty() || len(snap.Timestamps) != len(snap.Values) {
		fmt.Fprintf(&buf, "<text x=\"%d\" y=\"%d\" font-family=\"sans-serif\" font-size=\"14\" fill=\"#999\" text-anchor=\"middle\" class=\"placeholder\">No data yet</text>\n",
			Width/2, Height/2)
		buf.WriteString("</svg>")
		return buf.Bytes()
	}

	tMin, tMax := timeBounds(snap.Timestamps)
	vMin, vMax := valueBounds(snap.Values, snap.Mean)

	plotW := float64(Width - marginLeft - marginRight)
	plotH := float64(Height - marginTop - marginBottom)
	span := tMax.Sub(tMin)

	// Координатные преобразования
	timeToX := func(t time.Time) float64 {
		if span <= 0 {
			return marginLeft + plotW/2
		}
		return marginLeft + float64(t.Sub(tMin))/float64(span)*plotW
	}
	valueToY := func(v float64) float64 {
		return marginTop + plotH - (v-vMin)/(vMax-vMin)*plotH
	}

	// Оси и сетка
	buf.WriteString("<g stroke=\"#ddd\" stroke-width=\"1\">\n")
	for i := 0; i <= 4; i++ {
		y := marginTop + plotH*float64(i)/4
		fmt.Fprintf(&buf, "<line x1=\"%d\" y1=\"%.1f\" x2=\"%d\" y2=\"%.1f\"/>\n", marginLeft, y, Width-marginRight, y)
	}
	buf.WriteString("</g>\n")

	buf.WriteString("<g font-family=\"sans-serif\" font-size=\"11\" fill=\"#444\">\n")
	for i := 0; i <= 4; i++ {
		v := vMax - (vMax-vMin)*float64(i)/4
		y := marginTop + plotH*float64(i)/4
		fmt.Fprintf(&buf, "<text x=\"%d\" y=\"%.1f\" text-anchor=\"end\">%s</text>\n", marginLeft-6, y+4, formatValue(v))
	}
	fmt.Fprintf(&buf, "<text x=\"%d\" y=\"%d\" text-anchor=\"start\">%s</text>\n",
		marginLeft, Height-marginBottom+18, tMin.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&buf, "<text x=\"%d\" y=\"%d\" text-anchor=\"end\">%s</text>\n",
		Width-marginRight, Height-marginBottom+18, tMax.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&buf, "<text x=\"%d\" y=\"%d\" text-anchor=\"middle\">Timestamp</text>\n", Width/2, Height-10)
	fmt.Fprintf(&buf, "<text x=\"14\" y=\"%d\" text-anchor=\"middle\" transform=\"rotate(-90 14 %d)\">%s</text>\n",
		Height/2, Height/2, html.EscapeString(style.YLabel))
	buf.WriteString("</g>\n")

	// Линия значений в порядке поступления
	fmt.Fprintf(&buf, "<polyline class=\"values\" fill=\"none\" stroke=\"%s\" stroke-width=\"2\" points=\"", html.EscapeString(style.LineColor))
	for i, t := range snap.Timestamps {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%.1f,%.1f", timeToX(t), valueToY(snap.Values[i]))
	}
	buf.WriteString("\"/>\n")

	fmt.Fprintf(&buf, "<g class=\"markers\" fill=\"%s\">\n", html.EscapeString(style.LineColor))
	for i, t := range snap.Timestamps {
		fmt.Fprintf(&buf, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"3\"/>\n", timeToX(t), valueToY(snap.Values[i]))
	}
	buf.WriteString("</g>\n")

	// Среднее от первой до последней метки
	if snap.Mean != nil {
		y := valueToY(*snap.Mean)
		first, last := snap.Timestamps[0], snap.Timestamps[len(snap.Timestamps)-1]
		fmt.Fprintf(&buf, "<line class=\"mean\" x1=\"%.1f\" y1=\"%.1f\" x2=\"%.1f\" y2=\"%.1f\" stroke=\"%s\" stroke-width=\"2\" stroke-dasharray=\"6 4\"/>\n",
			timeToX(first), y, timeToX(last), y, html.EscapeString(style.MeanColor))
		fmt.Fprintf(&buf, "<text x=\"%d\" y=\"%.1f\" font-family=\"sans-serif\" font-size=\"11\" fill=\"%s\" text-anchor=\"end\">%s: %s</text>\n",
			Width-marginRight, y-6, html.EscapeString(style.MeanColor), html.EscapeString(style.MeanLabel), formatValue(*snap.Mean))
	}

	buf.WriteString("</svg>")
	return buf.Bytes()
}

func timeBounds(ts []time.Time) (time.Time, time.Time) {
	lo, hi := ts[0], ts[0]
	for _, t := range ts[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	return lo, hi
}

func valueBounds(values []float64, mean *float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if mean != nil {
		lo = math.Min(lo, *mean)
		hi = math.Max(hi, *mean)
	}
	if hi-lo < 1e-9 {
		lo, hi = lo-1, hi+1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
