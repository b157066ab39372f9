package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is whether a position is held.
type Status int

const (
	StatusFlat Status = iota
	StatusOpen
)

func (s Status) String() string {
	switch s {
	case StatusFlat:
		return "flat"
	case StatusOpen:
		return "open"
	default:
		return "unknown"
	}
}

// PositionState is owned by a PositionStateMachine. EntryPending marks a
// flat position with a market entry waiting for the next bar's open.
type PositionState struct {
	Status          Status    `json:"status"`
	EntryPending    bool      `json:"entry_pending"`
	EntryPrice      float64   `json:"entry_price,omitempty"`
	EntryDate       time.Time `json:"entry_date,omitempty"`
	EntryCommission float64   `json:"entry_commission,omitempty"`
	HoldBars        int       `json:"hold_bars"`
	Size            int       `json:"size,omitempty"`
}

// IsOpen reports whether shares are held.
func (s PositionState) IsOpen() bool {
	return s.Status == StatusOpen
}

// Action is the position change produced by one bar.
type Action int

const (
	ActionNone Action = iota
	ActionEntered
	ActionExited
)

func (a Action) String() string {
	switch a {
	case ActionEntered:
		return "entered"
	case ActionExited:
		return "exited"
	default:
		return "none"
	}
}

// Fill describes an executed entry.
type Fill struct {
	Date       time.Time
	Price      float64
	Size       int
	Commission float64
}

// AdvanceResult reports what happened to the position on one bar. Fill and
// Trade are both set when the entry bar also hits an exit.
type AdvanceResult struct {
	Action       Action
	EntryOrdered bool
	Fill         *Fill
	Trade        *Trade
	Warning      *AnomalyWarning
}

// PositionStateMachine tracks one long position from flat through a pending
// entry to open. It is not safe for concurrent use.
type PositionStateMachine struct {
	params Parameters
	state  PositionState
}

// NewPositionStateMachine starts flat with no pending entry. params must
// already be validated.
func NewPositionStateMachine(params Parameters) *PositionStateMachine {
	return &PositionStateMachine{params: params}
}

// State returns a copy of the current position.
func (m *PositionStateMachine) State() PositionState {
	return m.state
}

// CancelPending drops a waiting entry order, e.g. when cash cannot cover it.
func (m *PositionStateMachine) CancelPending() {
	if m.state.Status == StatusFlat {
		m.state.EntryPending = false
	}
}

// Advance moves the position across one bar.
func (m *PositionStateMachine) Advance(bar Bar) AdvanceResult {
	var res AdvanceResult

	if m.state.Status == StatusFlat {
		if !m.state.EntryPending {
			m.state = PositionState{EntryPending: true}
			res.EntryOrdered = true
			return res
		}
		res.Fill = m.fill(bar)
		res.Action = ActionEntered
	}

	m.state.HoldBars++
	if m.state.EntryPrice <= 0 {
		m.state.EntryPrice = bar.Close
		res.Warning = &AnomalyWarning{
			Date:    bar.Date.Format(DateLayout),
			Message: "open position without entry price, using bar close",
		}
	}

	decision := DecideExit(m.state, bar, m.params)
	if !decision.Exit {
		return res
	}

	trade := m.close(bar, decision)
	res.Trade = &trade
	res.Action = ActionExited
	return res
}

func (m *PositionStateMachine) fill(bar Bar) *Fill {
	size := m.params.Stake
	commission := notional(bar.Open, size).Mul(decimal.NewFromFloat(m.params.CommissionRate))

	m.state = PositionState{
		Status:          StatusOpen,
		EntryPrice:      bar.Open,
		EntryDate:       bar.Date,
		EntryCommission: commission.InexactFloat64(),
		Size:            size,
	}
	return &Fill{
		Date:       bar.Date,
		Price:      bar.Open,
		Size:       size,
		Commission: commission.InexactFloat64(),
	}
}

func (m *PositionStateMachine) close(bar Bar, decision ExitDecision) Trade {
	if m.state.Size == 0 {
		m.state.Size = m.params.Stake
	}
	size := decimal.NewFromInt(int64(m.state.Size))
	entry := decimal.NewFromFloat(m.state.EntryPrice)
	exit := decimal.NewFromFloat(decision.Price)
	rate := decimal.NewFromFloat(m.params.CommissionRate)

	gross := exit.Sub(entry).Mul(size)
	commission := decimal.NewFromFloat(m.state.EntryCommission).Add(exit.Mul(size).Mul(rate))
	if m.state.EntryCommission == 0 {
		// entry price was recovered from a close, charge the entry leg on it
		commission = entry.Mul(size).Mul(rate).Add(exit.Mul(size).Mul(rate))
	}

	trade := Trade{
		EntryPrice:     m.state.EntryPrice,
		ExitDate:       bar.Date.Format(DateLayout),
		PnLGross:       gross.InexactFloat64(),
		PnLNet:         gross.Sub(commission).InexactFloat64(),
		Size:           m.state.Size,
		ExitPrice:      decision.Price,
		NotionalValue:  exit.Mul(size).InexactFloat64(),
		CommissionPaid: commission.InexactFloat64(),
		ExitReason:     decision.Reason,
		HoldBars:       m.state.HoldBars,
	}
	if !m.state.EntryDate.IsZero() {
		trade.EntryDate = m.state.EntryDate.Format(DateLayout)
	}

	m.state = PositionState{}
	return trade
}

func notional(price float64, size int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(size)))
}
