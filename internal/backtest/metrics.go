package backtest

type Metrics struct {
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
	WinRate     float64 `json:"win_rate"`
	Trades      int     `json:"trades"`
	StartCash   float64 `json:"start_cash"`
	EndValue    float64 `json:"end_value"`
}

// Summarize reduces a ledger and an equity curve to headline metrics. A
// position still open at the end of the series is not part of the ledger and
// therefore not counted.
func Summarize(trades []Trade, equity []EquityPoint, startingCash, endingValue float64) Metrics {
	m := Metrics{
		Trades:    len(trades),
		StartCash: startingCash,
		EndValue:  endingValue,
	}
	if startingCash != 0 {
		m.TotalReturn = (endingValue - startingCash) / startingCash
	}

	values := make([]float64, len(equity))
	for i, p := range equity {
		values[i] = p.Value
	}
	m.MaxDrawdown = MaxDrawdown(values)

	if len(trades) > 0 {
		wins := 0
		for _, t := range trades {
			if t.IsWin() {
				wins++
			}
		}
		m.WinRate = float64(wins) / float64(len(trades))
	}
	return m
}

// MaxDrawdown returns the most negative fractional decline from a running
// peak, 0 for an empty or never declining curve.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (v - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
