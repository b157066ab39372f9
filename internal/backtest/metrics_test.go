package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "empty", values: nil, want: 0},
		{name: "single", values: []float64{100}, want: 0},
		{name: "never declining", values: []float64{100, 100, 101, 105}, want: 0},
		{name: "drop after new peak", values: []float64{100, 110, 99}, want: -0.1},
		{name: "deepest of several", values: []float64{100, 90, 95, 80, 120}, want: -0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MaxDrawdown(tt.values), 1e-12)
		})
	}
}

func TestSummarize(t *testing.T) {
	trades := []Trade{{PnLNet: 10}, {PnLNet: -5}, {PnLNet: 0}}
	equity := []EquityPoint{{Value: 1000}, {Value: 1100}, {Value: 1050}}

	m := Summarize(trades, equity, 1000, 1050)
	assert.Equal(t, 3, m.Trades)
	assert.InDelta(t, 1.0/3.0, m.WinRate, 1e-12)
	assert.InDelta(t, 0.05, m.TotalReturn, 1e-12)
	assert.InDelta(t, (1050.0-1100.0)/1100.0, m.MaxDrawdown, 1e-12)
	assert.Equal(t, 1000.0, m.StartCash)
	assert.Equal(t, 1050.0, m.EndValue)
}

func TestSummarize_NoTrades(t *testing.T) {
	m := Summarize(nil, nil, 1000, 1000)
	assert.Equal(t, 0, m.Trades)
	assert.Equal(t, 0.0, m.WinRate)
	assert.Equal(t, 0.0, m.MaxDrawdown)
}
