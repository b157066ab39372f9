package backtest

import (
	"encoding/json"
	"io"
	"time"
)

// Report is the immutable outcome of a successful run.
type Report struct {
	GeneratedAt    time.Time        `json:"generated_at"`
	Inputs         RunInputs        `json:"inputs"`
	Config         Parameters       `json:"config"`
	DatasourceUsed string           `json:"datasource_used"`
	Metrics        Metrics          `json:"metrics"`
	Trades         []Trade          `json:"trades"`
	EquityCurve    []EquityPoint    `json:"equity_curve"`
	OpenPosition   *PositionState   `json:"open_position,omitempty"`
	Warnings       []AnomalyWarning `json:"warnings,omitempty"`
	RunURL         string           `json:"run_url"`
}

// Simulate validates the inputs, runs the driver and assembles the report.
func Simulate(inputs RunInputs, params Parameters, series PriceSeries, runURL string, now time.Time) (*Report, error) {
	if err := ValidateRun(inputs, params); err != nil {
		return nil, err
	}

	result, err := Run(series, params)
	if err != nil {
		return nil, err
	}
	return NewReport(inputs, params, series.SourceName, result, runURL, now), nil
}

func NewReport(inputs RunInputs, params Parameters, source string, result *Result, runURL string, now time.Time) *Report {
	return &Report{
		GeneratedAt:    now.UTC(),
		Inputs:         inputs,
		Config:         params,
		DatasourceUsed: source,
		Metrics:        Summarize(result.Trades, result.Equity, params.StartingCash, result.FinalValue),
		Trades:         result.Trades,
		EquityCurve:    result.Equity,
		OpenPosition:   result.OpenPosition,
		Warnings:       result.Warnings,
		RunURL:         runURL,
	}
}

// WriteJSON writes the indented report without escaping non-ASCII text.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
