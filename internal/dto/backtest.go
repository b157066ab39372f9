package dto

import (
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/model"
	"ashare-backtest/pkg/common"
	"strings"
)

const (
	TriggerAPI      = "api"
	TriggerCLI      = "cli"
	TriggerTelegram = "telegram"
	TriggerBitable  = "bitable"
	TriggerCard     = "card"
)

// BacktestRequest is the caller facing description of a run. Nil numeric
// fields fall back to the configured defaults.
type BacktestRequest struct {
	Symbol      string   `json:"symbol" validate:"required,len=6,numeric"`
	StartDate   string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	TakeProfit  *float64 `json:"take_profit,omitempty" validate:"omitempty,finite,gt=0"`
	StopLoss    *float64 `json:"stop_loss,omitempty" validate:"omitempty,finite,lt=0"`
	MaxHoldDays *int     `json:"max_hold_days,omitempty" validate:"omitempty,min=1,max=200"`
	Cash        *float64 `json:"cash,omitempty" validate:"omitempty,finite,gt=0"`
	Commission  *float64 `json:"commission,omitempty" validate:"omitempty,finite,gte=0"`
	Stake       *int     `json:"stake,omitempty" validate:"omitempty,gt=0"`
	Datasource  string   `json:"datasource,omitempty" validate:"omitempty,oneof=auto tushare akshare eastmoney yahoo"`
	RunNote     string   `json:"run_note,omitempty"`
	RunID       string   `json:"run_id,omitempty"`
	RunURL      string   `json:"run_url,omitempty"`
	Trigger     string   `json:"-"`
}

// Resolve merges the request over defaults and returns the core inputs.
func (r *BacktestRequest) Resolve(defaults backtest.Parameters, defaultDatasource string) (backtest.RunInputs, backtest.Parameters) {
	params := defaults
	if r.TakeProfit != nil {
		params.TakeProfit = *r.TakeProfit
	}
	if r.StopLoss != nil {
		params.StopLoss = *r.StopLoss
	}
	if r.MaxHoldDays != nil {
		params.MaxHoldDays = *r.MaxHoldDays
	}
	if r.Cash != nil {
		params.StartingCash = *r.Cash
	}
	if r.Commission != nil {
		params.CommissionRate = *r.Commission
	}
	if r.Stake != nil {
		params.Stake = *r.Stake
	}

	datasource := strings.ToLower(strings.TrimSpace(r.Datasource))
	if datasource == "" {
		datasource = defaultDatasource
	}
	if datasource == "" {
		datasource = common.DATASOURCE_AUTO
	}

	inputs := backtest.RunInputs{
		Symbol:      strings.TrimSpace(r.Symbol),
		StartDate:   strings.TrimSpace(r.StartDate),
		EndDate:     strings.TrimSpace(r.EndDate),
		TakeProfit:  params.TakeProfit,
		StopLoss:    params.StopLoss,
		MaxHoldDays: params.MaxHoldDays,
		Cash:        params.StartingCash,
		RunNote:     r.RunNote,
		RunID:       r.RunID,
		Datasource:  datasource,
	}
	return inputs, params
}

// BacktestResponse is returned by the HTTP API after a run.
type BacktestResponse struct {
	RunID   string           `json:"run_id"`
	Summary string           `json:"summary"`
	Report  *backtest.Report `json:"report"`
}

type BacktestRunResponse struct {
	ID             string                  `json:"id"`
	Symbol         string                  `json:"symbol"`
	StartDate      string                  `json:"start_date"`
	EndDate        string                  `json:"end_date"`
	Status         model.BacktestRunStatus `json:"status"`
	DatasourceUsed string                  `json:"datasource_used"`
	Trigger        string                  `json:"trigger"`
	Summary        string                  `json:"summary"`
	ErrorMessage   string                  `json:"error_message,omitempty"`
	Report         *backtest.Report        `json:"report,omitempty"`
}

// FetchParam selects the daily bars to load for a run.
type FetchParam struct {
	Symbol     string
	StartDate  string
	EndDate    string
	Datasource string
}
