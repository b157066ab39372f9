package dto

// RequestBacktestData accumulates the answers of the /backtest conversation.
type RequestBacktestData struct {
	Symbol      string
	StartDate   string
	EndDate     string
	TakeProfit  *float64
	StopLoss    *float64
	MaxHoldDays *int
	ChatID      int64
}

func (r *RequestBacktestData) ToBacktestRequest() *BacktestRequest {
	return &BacktestRequest{
		Symbol:      r.Symbol,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		TakeProfit:  r.TakeProfit,
		StopLoss:    r.StopLoss,
		MaxHoldDays: r.MaxHoldDays,
		RunNote:     TriggerTelegram,
		Trigger:     TriggerTelegram,
	}
}
