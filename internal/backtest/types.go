package backtest

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the YYYY-MM-DD format used for every date in inputs and reports.
const DateLayout = "2006-01-02"

// Bar is one daily OHLCV candle. Prices are unadjusted, volume is in shares.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is an ordered run of daily bars for one instrument.
type PriceSeries struct {
	Symbol     string `json:"symbol"`
	SourceName string `json:"source_name"`
	Bars       []Bar  `json:"bars"`
}

// Len returns the number of bars.
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// ExitReason names the rule that closed a trade.
type ExitReason string

const (
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTakeProfit  ExitReason = "take_profit"
	ExitMaxHoldDays ExitReason = "max_hold_days"
)

const (
	DefaultStartingCash   = 100000.0
	DefaultCommissionRate = 0.0003
	DefaultStake          = 100
	DefaultTakeProfit     = 0.03
	DefaultStopLoss       = -0.05
	DefaultMaxHoldDays    = 10
	MaxHoldDaysLimit      = 200
)

// Parameters is the immutable configuration of a single run.
type Parameters struct {
	TakeProfit     float64 `json:"take_profit" mapstructure:"take_profit"`
	StopLoss       float64 `json:"stop_loss" mapstructure:"stop_loss"`
	MaxHoldDays    int     `json:"max_hold_days" mapstructure:"max_hold_days"`
	Stake          int     `json:"stake" mapstructure:"stake"`
	StartingCash   float64 `json:"cash" mapstructure:"cash"`
	CommissionRate float64 `json:"commission" mapstructure:"commission"`
}

// DefaultParameters returns the built-in run configuration: +3% take profit,
// -5% stop loss, 10 bar hold, 100 shares, 100000 cash, 0.03% commission.
func DefaultParameters() Parameters {
	return Parameters{
		TakeProfit:     DefaultTakeProfit,
		StopLoss:       DefaultStopLoss,
		MaxHoldDays:    DefaultMaxHoldDays,
		Stake:          DefaultStake,
		StartingCash:   DefaultStartingCash,
		CommissionRate: DefaultCommissionRate,
	}
}

// Validate reports every violated field at once.
func (p Parameters) Validate() error {
	verr := &ValidationError{}
	p.collect(verr)
	return verr.OrNil()
}

func (p Parameters) collect(verr *ValidationError) {
	switch {
	case !isFinite(p.TakeProfit):
		verr.Add("take_profit", mustBeFinite)
	case p.TakeProfit <= 0:
		verr.Add("take_profit", "must be > 0")
	}
	switch {
	case !isFinite(p.StopLoss):
		verr.Add("stop_loss", mustBeFinite)
	case p.StopLoss >= 0:
		verr.Add("stop_loss", "must be < 0")
	}
	if p.MaxHoldDays < 1 || p.MaxHoldDays > MaxHoldDaysLimit {
		verr.Add("max_hold_days", fmt.Sprintf("must be between 1 and %d", MaxHoldDaysLimit))
	}
	if p.Stake <= 0 {
		verr.Add("stake", "must be > 0")
	}
	switch {
	case !isFinite(p.StartingCash):
		verr.Add("cash", mustBeFinite)
	case p.StartingCash <= 0:
		verr.Add("cash", "must be > 0")
	}
	switch {
	case !isFinite(p.CommissionRate):
		verr.Add("commission", mustBeFinite)
	case p.CommissionRate < 0:
		verr.Add("commission", "must be >= 0")
	}
}

const mustBeFinite = "must be a finite number"

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Trade is one completed round trip. JSON names follow the report format
// consumed by the notification side.
type Trade struct {
	EntryDate      string     `json:"entry_date"`
	EntryPrice     float64    `json:"entry_price"`
	ExitDate       string     `json:"dt"`
	PnLGross       float64    `json:"pnl"`
	PnLNet         float64    `json:"pnlcomm"`
	Size           int        `json:"size"`
	ExitPrice      float64    `json:"price"`
	NotionalValue  float64    `json:"value"`
	CommissionPaid float64    `json:"commission"`
	ExitReason     ExitReason `json:"exit_reason"`
	HoldBars       int        `json:"hold_bars"`
}

// IsWin reports whether the trade made money after commission.
func (t Trade) IsWin() bool {
	return t.PnLNet > 0
}

// EquityPoint is the account value sampled after a bar was processed.
type EquityPoint struct {
	Index int     `json:"index"`
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// RunInputs carries the caller supplied description of a run.
type RunInputs struct {
	Symbol      string  `json:"symbol"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	TakeProfit  float64 `json:"take_profit"`
	StopLoss    float64 `json:"stop_loss"`
	MaxHoldDays int     `json:"max_hold_days"`
	Cash        float64 `json:"cash"`
	RunNote     string  `json:"run_note"`
	RunID       string  `json:"run_id"`
	Datasource  string  `json:"datasource"`
}
