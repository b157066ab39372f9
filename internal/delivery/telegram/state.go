package telegram

const (
	UserStateKey = "telegram_user_state:%d"
	UserDataKey  = "telegram_user_data:%d"
)

const (
	StateIdle = iota

	// /backtest states, asked in this order
	StateWaitingBacktestSymbol
	StateWaitingBacktestStartDate
	StateWaitingBacktestEndDate
	StateWaitingBacktestTakeProfit
	StateWaitingBacktestStopLoss
	StateWaitingBacktestMaxHoldDays
)
