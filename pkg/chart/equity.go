package chart

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	colorEquity   = "#3b82f6"
	colorDrawdown = "#f87171"

	widthPx          = 1200
	equityHeightPx   = 480
	drawdownHeightPx = 240
)

// EquityChart describes an equity curve to be rendered as a standalone HTML page.
type EquityChart struct {
	Title    string
	Subtitle string
	Dates    []string
	Values   []float64
}

func (c EquityChart) Validate() error {
	if len(c.Dates) != len(c.Values) {
		return fmt.Errorf("dates and values length mismatch: %d != %d", len(c.Dates), len(c.Values))
	}
	if len(c.Values) == 0 {
		return fmt.Errorf("empty equity curve")
	}
	return nil
}

// Render writes an HTML page with the equity line and its drawdown below it.
func (c EquityChart) Render(w io.Writer) error {
	if err := c.Validate(); err != nil {
		return err
	}

	page := components.NewPage()
	page.PageTitle = c.Title
	page.AddCharts(c.equityLine(), c.drawdownBar())
	return page.Render(w)
}

func (c EquityChart) equityLine() *charts.Line {
	minV, maxV := bounds(c.Values)
	padding := (maxV - minV) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxV)*0.01)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  fmt.Sprintf("%dpx", widthPx),
			Height: fmt.Sprintf("%dpx", equityHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{Title: c.Title, Subtitle: c.Subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
			Min:   round(minV-padding, 2),
			Max:   round(maxV+padding, 2),
		}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)

	data := make([]opts.LineData, len(c.Values))
	for i, v := range c.Values {
		data[i] = opts.LineData{Value: round(v, 2)}
	}
	line.SetXAxis(c.Dates)
	line.AddSeries("Equity", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	return line
}

func (c EquityChart) drawdownBar() *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  fmt.Sprintf("%dpx", widthPx),
			Height: fmt.Sprintf("%dpx", drawdownHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{Title: "Drawdown %"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	dd := Drawdowns(c.Values)
	data := make([]opts.BarData, len(dd))
	for i, v := range dd {
		data[i] = opts.BarData{Value: round(v*100, 2), ItemStyle: &opts.ItemStyle{Color: colorDrawdown}}
	}
	bar.SetXAxis(c.Dates)
	bar.AddSeries("Drawdown", data)
	return bar
}

// Drawdowns returns the fractional distance of each value from its running peak.
func Drawdowns(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	peak := values[0]
	for i, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			out[i] = (v - peak) / peak
		}
	}
	return out
}

func bounds(values []float64) (float64, float64) {
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	return minV, maxV
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
