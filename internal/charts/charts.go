// Package charts renders the dashboard's line, bar and scatter charts as PNG.
package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"weodash/internal/models"
)

// ErrNoData is returned instead of drawing an empty chart.
var ErrNoData = errors.New("charts: no data")

const (
	Width  = 1024
	Height = 480
)

func yearFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.Itoa(int(math.Round(f)))
	}
	return ""
}

func valueFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return ""
}

// span returns a range that go-chart can draw even when every sample is equal.
func span(lo, hi float64) *chart.ContinuousRange {
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

// Line draws one line per series over years.
func Line(w io.Writer, title string, series []models.Series) error {
	var out []chart.Series
	xMin, xMax := math.Inf(1), math.Inf(-1)
	yMin, yMax := math.Inf(1), math.Inf(-1)

	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		xs := make([]float64, len(s.Points))
		ys := make([]float64, len(s.Points))
		for j, p := range s.Points {
			xs[j], ys[j] = float64(p.Year), p.Value
			xMin, xMax = math.Min(xMin, xs[j]), math.Max(xMax, xs[j])
			yMin, yMax = math.Min(yMin, ys[j]), math.Max(yMax, ys[j])
		}
		col := chart.GetDefaultColor(i)
		out = append(out, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: col, StrokeWidth: 2, DotColor: col, DotWidth: 3},
		})
	}
	if len(out) == 0 {
		return ErrNoData
	}

	ch := chart.Chart{
		Title:      title,
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "Year", ValueFormatter: yearFormatter, Range: span(xMin, xMax)},
		YAxis:      chart.YAxis{Name: "Value (%)", ValueFormatter: valueFormatter, Range: span(yMin, yMax)},
		Series:     out,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render line chart: %w", err)
	}
	return nil
}

// Bar draws one bar per group mean.
func Bar(w io.Writer, title string, groups []models.GroupMean) error {
	if len(groups) == 0 {
		return ErrNoData
	}

	bars := make([]chart.Value, 0, len(groups))
	lo, hi := 0.0, 0.0
	for _, g := range groups {
		bars = append(bars, chart.Value{Label: g.Name, Value: g.Mean})
		lo, hi = math.Min(lo, g.Mean), math.Max(hi, g.Mean)
	}

	barWidth := (Width - 64) / len(bars)
	if barWidth > 60 {
		barWidth = 60
	}
	if barWidth < 4 {
		barWidth = 4
	}

	bc := chart.BarChart{
		Title:      title,
		Width:      Width,
		Height:     Height,
		BarWidth:   barWidth,
		Background: chart.Style{Padding: chart.Box{Top: 40, Bottom: 80}},
		YAxis:      chart.YAxis{ValueFormatter: valueFormatter, Range: span(lo, hi)},
		Bars:       bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

// Scatter draws forecast (x) against realized (y) values, one colour per
// group, with the 45-degree line where forecasts would be exact.
func Scatter(w io.Writer, title string, groups []models.PairGroup) error {
	var out []chart.Series
	lo, hi := math.Inf(1), math.Inf(-1)

	for i, g := range groups {
		if len(g.Pairs) == 0 {
			continue
		}
		xs := make([]float64, len(g.Pairs))
		ys := make([]float64, len(g.Pairs))
		for j, p := range g.Pairs {
			xs[j], ys[j] = p.X, p.Y
			lo = math.Min(lo, math.Min(p.X, p.Y))
			hi = math.Max(hi, math.Max(p.X, p.Y))
		}
		col := chart.GetDefaultColor(i)
		out = append(out, chart.ContinuousSeries{
			Name:    g.Key,
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeWidth: chart.Disabled, DotWidth: 5, DotColor: col},
		})
	}
	if len(out) == 0 {
		return ErrNoData
	}

	rng := span(lo, hi)
	out = append(out, chart.ContinuousSeries{
		Name:    "45°",
		XValues: []float64{rng.Min, rng.Max},
		YValues: []float64{rng.Min, rng.Max},
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("999999"),
			StrokeWidth:     1,
			StrokeDashArray: []float64{5, 5},
		},
	})

	ch := chart.Chart{
		Title:      title,
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "Forecast (%)", ValueFormatter: valueFormatter, Range: rng},
		YAxis:      chart.YAxis{Name: "Realized (%)", ValueFormatter: valueFormatter, Range: span(rng.Min, rng.Max)},
		Series:     out,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render scatter chart: %w", err)
	}
	return nil
}
