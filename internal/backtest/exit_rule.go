package backtest

// ExitDecision is either a hold (Exit == false) or an exit at Price.
type ExitDecision struct {
	Exit   bool
	Reason ExitReason
	Price  float64
}

func Hold() ExitDecision {
	return ExitDecision{}
}

func ExitAt(reason ExitReason, price float64) ExitDecision {
	return ExitDecision{Exit: true, Reason: reason, Price: price}
}

func StopPrice(entry float64, p Parameters) float64 {
	return entry * (1 + p.StopLoss)
}

func TakePrice(entry float64, p Parameters) float64 {
	return entry * (1 + p.TakeProfit)
}

// DecideExit evaluates an open position against one bar. The stop is checked
// first so a bar that touches both levels is treated as a loss.
func DecideExit(state PositionState, bar Bar, p Parameters) ExitDecision {
	stop := StopPrice(state.EntryPrice, p)
	if bar.Low <= stop {
		return ExitAt(ExitStopLoss, stop)
	}

	take := TakePrice(state.EntryPrice, p)
	if bar.High >= take {
		return ExitAt(ExitTakeProfit, take)
	}

	if state.HoldBars >= p.MaxHoldDays {
		return ExitAt(ExitMaxHoldDays, bar.Close)
	}
	return Hold()
}
