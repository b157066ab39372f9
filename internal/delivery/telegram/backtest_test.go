package telegram

import (
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/model"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyBacktestAnswer_Conversation(t *testing.T) {
	data := &dto.RequestBacktestData{ChatID: 42}
	answers := []struct {
		text string
		next int
	}{
		{text: " 600519 ", next: StateWaitingBacktestStartDate},
		{text: "2024-01-01", next: StateWaitingBacktestEndDate},
		{text: "2024-03-01", next: StateWaitingBacktestTakeProfit},
		{text: "0.05", next: StateWaitingBacktestStopLoss},
		{text: "-", next: StateWaitingBacktestMaxHoldDays},
		{text: "15", next: StateIdle},
	}

	state := StateWaitingBacktestSymbol
	for _, a := range answers {
		next, err := applyBacktestAnswer(state, a.text, data)
		require.NoError(t, err, "answer %q", a.text)
		require.Equal(t, a.next, next, "answer %q", a.text)
		state = next
	}

	assert.Equal(t, "600519", data.Symbol)
	assert.Equal(t, "2024-01-01", data.StartDate)
	assert.Equal(t, "2024-03-01", data.EndDate)
	require.NotNil(t, data.TakeProfit)
	assert.Equal(t, 0.05, *data.TakeProfit)
	assert.Nil(t, data.StopLoss)
	require.NotNil(t, data.MaxHoldDays)
	assert.Equal(t, 15, *data.MaxHoldDays)

	req := data.ToBacktestRequest()
	assert.Equal(t, dto.TriggerTelegram, req.Trigger)
	assert.Equal(t, "600519", req.Symbol)
}

func TestApplyBacktestAnswer_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		state int
		text  string
		data  dto.RequestBacktestData
	}{
		{name: "short symbol", state: StateWaitingBacktestSymbol, text: "6005"},
		{name: "letters in symbol", state: StateWaitingBacktestSymbol, text: "60051a"},
		{name: "bad start date", state: StateWaitingBacktestStartDate, text: "2024/01/01"},
		{name: "end before start", state: StateWaitingBacktestEndDate, text: "2023-12-01", data: dto.RequestBacktestData{StartDate: "2024-01-01"}},
		{name: "end equals start", state: StateWaitingBacktestEndDate, text: "2024-01-01", data: dto.RequestBacktestData{StartDate: "2024-01-01"}},
		{name: "zero take profit", state: StateWaitingBacktestTakeProfit, text: "0"},
		{name: "positive stop loss", state: StateWaitingBacktestStopLoss, text: "0.05"},
		{name: "stop loss not a number", state: StateWaitingBacktestStopLoss, text: "five"},
		{name: "hold days too long", state: StateWaitingBacktestMaxHoldDays, text: "201"},
		{name: "hold days zero", state: StateWaitingBacktestMaxHoldDays, text: "0"},
		{name: "unknown state", state: 99, text: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			next, err := applyBacktestAnswer(tt.state, tt.text, &data)
			assert.Error(t, err)
			if tt.state != 99 {
				assert.Equal(t, tt.state, next)
			}
		})
	}
}

func TestBacktestPrompt(t *testing.T) {
	defaults := backtest.DefaultParameters()

	assert.Contains(t, backtestPrompt(StateWaitingBacktestSymbol, defaults), "6 位股票代码")
	assert.Contains(t, backtestPrompt(StateWaitingBacktestTakeProfit, defaults), "默认 0.03")
	assert.Contains(t, backtestPrompt(StateWaitingBacktestStopLoss, defaults), "默认 -0.05")
	assert.Contains(t, backtestPrompt(StateWaitingBacktestMaxHoldDays, defaults), "默认 10")
	assert.Empty(t, backtestPrompt(StateIdle, defaults))
}

func TestDigestFromReport(t *testing.T) {
	report := &backtest.Report{
		Inputs:         backtest.RunInputs{Symbol: "600519", StartDate: "2024-01-01", EndDate: "2024-03-01"},
		DatasourceUsed: "tushare",
		Metrics: backtest.Metrics{
			TotalReturn: 0.012,
			MaxDrawdown: -0.03,
			WinRate:     0.5,
			Trades:      4,
			StartCash:   100000,
			EndValue:    101200,
		},
	}

	d := DigestFromReport(report, "run-1")
	assert.Equal(t, "600519", d.Symbol)
	assert.Equal(t, "tushare", d.Datasource)
	assert.Equal(t, 4, d.Trades)
	assert.Equal(t, 101200.0, d.EndValue)
	assert.Equal(t, "run-1", d.RunID)
}

func TestFormatJobDetail(t *testing.T) {
	started := time.Date(2024, 1, 8, 1, 0, 0, 0, time.UTC)
	job := model.Job{
		Name:        "backtest queue",
		Description: "poll the Bitable queue",
		Schedules: []model.TaskSchedule{
			{CronExpression: "*/5 * * * *", NextExecution: sql.NullTime{Time: started.Add(5 * time.Minute), Valid: true}},
		},
		Histories: []model.TaskExecutionHistory{
			{
				StartedAt:   started,
				CompletedAt: sql.NullTime{Time: started.Add(1500 * time.Millisecond), Valid: true},
				Status:      model.StatusCompleted,
				ExitCode:    sql.NullInt32{Int32: 200, Valid: true},
			},
			{StartedAt: started, Status: model.StatusRunning},
		},
	}

	out := FormatJobDetail(job)
	assert.Contains(t, out, "<b>backtest queue</b>")
	assert.Contains(t, out, "poll the Bitable queue")
	assert.Contains(t, out, "<code>*/5 * * * *</code>")
	assert.Contains(t, out, "上次执行 : 无")
	assert.Contains(t, out, "1. 🟢 01/08 09:00 - 200 | COMPLETED (1.5s)")
	assert.Contains(t, out, "2. 🟡 01/08 09:00 - RUNNING")

	empty := FormatJobDetail(model.Job{Name: "idle"})
	assert.Contains(t, empty, "未配置")
	assert.Contains(t, empty, "暂无")
}
