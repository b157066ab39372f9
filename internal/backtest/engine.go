package backtest

import (
	"github.com/shopspring/decimal"
)

// Result is the raw outcome of a simulation pass.
type Result struct {
	Trades       []Trade          `json:"trades"`
	Equity       []EquityPoint    `json:"equity_curve"`
	FinalValue   float64          `json:"final_value"`
	Warnings     []AnomalyWarning `json:"warnings,omitempty"`
	OpenPosition *PositionState   `json:"open_position,omitempty"`
	Rejected     int              `json:"rejected_orders"`
}

// Run simulates the fixed take-profit / stop-loss / max-hold rule over the
// series in a single pass. Parameters and bars are validated up front, the
// loop itself never fails.
func Run(series PriceSeries, params Parameters) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSeries(series.Bars); err != nil {
		return nil, err
	}

	res := &Result{
		Trades:     []Trade{},
		Equity:     make([]EquityPoint, 0, len(series.Bars)),
		FinalValue: params.StartingCash,
	}

	machine := NewPositionStateMachine(params)
	cash := decimal.NewFromFloat(params.StartingCash)
	rate := decimal.NewFromFloat(params.CommissionRate)

	for i, bar := range series.Bars {
		if st := machine.State(); st.EntryPending {
			cost := notional(bar.Open, params.Stake)
			if cost.Add(cost.Mul(rate)).GreaterThan(cash) {
				machine.CancelPending()
				res.Rejected++
			}
		}

		out := machine.Advance(bar)
		if out.Fill != nil {
			cost := notional(out.Fill.Price, out.Fill.Size)
			cash = cash.Sub(cost).Sub(decimal.NewFromFloat(out.Fill.Commission))
		}
		if out.Trade != nil {
			proceeds := notional(out.Trade.ExitPrice, out.Trade.Size)
			exitCommission := proceeds.Mul(rate)
			cash = cash.Add(proceeds).Sub(exitCommission)
			res.Trades = append(res.Trades, *out.Trade)
		}
		if out.Warning != nil {
			res.Warnings = append(res.Warnings, *out.Warning)
		}

		value := cash
		if st := machine.State(); st.IsOpen() {
			value = value.Add(notional(bar.Close, st.Size))
		}
		res.Equity = append(res.Equity, EquityPoint{
			Index: i,
			Date:  bar.Date.Format(DateLayout),
			Value: value.InexactFloat64(),
		})
	}

	if n := len(res.Equity); n > 0 {
		res.FinalValue = res.Equity[n-1].Value
	}
	if st := machine.State(); st.IsOpen() {
		res.OpenPosition = &st
	}
	return res, nil
}
