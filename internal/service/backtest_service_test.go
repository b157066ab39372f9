package service

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/model"
	"ashare-backtest/internal/repository"
	"ashare-backtest/pkg/cache"
	"ashare-backtest/pkg/logger"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testServiceConfig() *config.Config {
	return &config.Config{
		Cache: config.Cache{ReportExpDuration: time.Hour},
		Backtest: config.Backtest{
			Datasource:     "auto",
			TaskDatasource: "tushare",
			RunTimeout:     time.Minute,
			TaskLimit:      5,
			MaxConcurrency: 2,
			RunURL:         "https://github.com/o/r/actions/runs/1",
		},
		Feishu: config.Feishu{CallbackMode: CallbackModeDispatch, MaxCallbackPerMinute: 6},
	}
}

func bar(date string, open, high, low, close float64) backtest.Bar {
	d, _ := time.Parse(backtest.DateLayout, date)
	return backtest.Bar{Date: d, Open: open, High: high, Low: low, Close: close, Volume: 1000}
}

// takeProfitSeries enters at 100 on the second bar and exits at 103 on the third.
func takeProfitSeries() backtest.PriceSeries {
	return backtest.PriceSeries{
		Symbol:     "600519",
		SourceName: "tushare",
		Bars: []backtest.Bar{
			bar("2024-01-02", 100, 101, 99, 100),
			bar("2024-01-03", 100, 101, 99, 100.5),
			bar("2024-01-04", 100.5, 104, 100, 103.5),
			bar("2024-01-05", 103.5, 104, 102, 103),
		},
	}
}

func validRequest() *dto.BacktestRequest {
	return &dto.BacktestRequest{
		Symbol:    "600519",
		StartDate: "2024-01-01",
		EndDate:   "2024-03-01",
		Trigger:   dto.TriggerAPI,
	}
}

func newTestBacktestService(md *mockMarketDataRepo, sp *mockSystemParamRepo, runs repository.BacktestRunRepository) *backtestService {
	svc := NewBacktestService(testServiceConfig(), logger.NewNop(), dto.NewValidator(), cache.NewLocalCache(time.Minute, time.Minute), md, sp, runs).(*backtestService)
	svc.now = func() time.Time { return time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestBacktestService_RunBacktest(t *testing.T) {
	md := &mockMarketDataRepo{}
	sp := &mockSystemParamRepo{}
	sp.On("GetDefaultBacktestParams", mock.Anything).Return(backtest.DefaultParameters(), nil)
	md.On("Fetch", mock.Anything, dto.FetchParam{
		Symbol:     "600519",
		StartDate:  "2024-01-01",
		EndDate:    "2024-03-01",
		Datasource: "auto",
	}).Return(takeProfitSeries(), nil)

	svc := newTestBacktestService(md, sp, nil)
	resp, err := svc.RunBacktest(context.Background(), validRequest())
	require.NoError(t, err)

	require.NotNil(t, resp.Report)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "tushare", resp.Report.DatasourceUsed)
	assert.Equal(t, 1, resp.Report.Metrics.Trades)
	assert.Equal(t, backtest.ExitTakeProfit, resp.Report.Trades[0].ExitReason)
	assert.Equal(t, "https://github.com/o/r/actions/runs/1", resp.Report.RunURL)
	assert.Equal(t, backtest.FormatSummary(resp.Report), resp.Summary)

	cached, err := svc.GetReport(context.Background(), resp.RunID)
	require.NoError(t, err)
	assert.Same(t, resp.Report, cached)

	md.AssertExpectations(t)
}

func TestBacktestService_RunBacktest_RequestOverridesDefaults(t *testing.T) {
	md := &mockMarketDataRepo{}
	sp := &mockSystemParamRepo{}
	sp.On("GetDefaultBacktestParams", mock.Anything).Return(backtest.DefaultParameters(), nil)
	md.On("Fetch", mock.Anything, mock.Anything).Return(takeProfitSeries(), nil)

	req := validRequest()
	tp, hold := 0.1, 2
	req.TakeProfit = &tp
	req.MaxHoldDays = &hold

	resp, err := newTestBacktestService(md, sp, nil).RunBacktest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0.1, resp.Report.Config.TakeProfit)
	assert.Equal(t, 2, resp.Report.Config.MaxHoldDays)
	assert.Equal(t, backtest.DefaultStopLoss, resp.Report.Config.StopLoss)
	require.Len(t, resp.Report.Trades, 1)
	assert.Equal(t, backtest.ExitMaxHoldDays, resp.Report.Trades[0].ExitReason)
}

func TestBacktestService_RunBacktest_ValidationError(t *testing.T) {
	tests := []struct {
		name  string
		req   *dto.BacktestRequest
		field string
	}{
		{
			name:  "symbol not numeric",
			req:   &dto.BacktestRequest{Symbol: "abcdef", StartDate: "2024-01-01", EndDate: "2024-03-01"},
			field: "symbol",
		},
		{
			name:  "bad date format",
			req:   &dto.BacktestRequest{Symbol: "600519", StartDate: "2024/01/01", EndDate: "2024-03-01"},
			field: "start_date",
		},
		{
			name:  "start after end",
			req:   &dto.BacktestRequest{Symbol: "600519", StartDate: "2024-03-01", EndDate: "2024-01-01"},
			field: "start_date",
		},
		{
			name:  "positive stop loss",
			req:   &dto.BacktestRequest{Symbol: "600519", StartDate: "2024-01-01", EndDate: "2024-03-01", StopLoss: floatPtr(0.05)},
			field: "stop_loss",
		},
		{
			name:  "infinite cash",
			req:   &dto.BacktestRequest{Symbol: "600519", StartDate: "2024-01-01", EndDate: "2024-03-01", Cash: floatPtr(math.Inf(1))},
			field: "cash",
		},
		{
			name:  "infinite commission",
			req:   &dto.BacktestRequest{Symbol: "600519", StartDate: "2024-01-01", EndDate: "2024-03-01", Commission: floatPtr(math.Inf(1))},
			field: "commission",
		},
		{
			name:  "nan take profit",
			req:   &dto.BacktestRequest{Symbol: "600519", StartDate: "2024-01-01", EndDate: "2024-03-01", TakeProfit: floatPtr(math.NaN())},
			field: "take_profit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := &mockMarketDataRepo{}
			sp := &mockSystemParamRepo{}
			sp.On("GetDefaultBacktestParams", mock.Anything).Return(backtest.DefaultParameters(), nil)

			_, err := newTestBacktestService(md, sp, nil).RunBacktest(context.Background(), tt.req)
			var verr *backtest.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.HasField(tt.field), verr.Error())
			md.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
		})
	}
}

func TestBacktestService_RunBacktest_PersistsFailure(t *testing.T) {
	md := &mockMarketDataRepo{}
	sp := &mockSystemParamRepo{}
	runs := &mockBacktestRunRepo{}
	sp.On("GetDefaultBacktestParams", mock.Anything).Return(backtest.DefaultParameters(), nil)
	dataErr := &backtest.DataUnavailableError{Symbol: "600519", Reason: "all providers failed"}
	md.On("Fetch", mock.Anything, mock.Anything).Return(backtest.PriceSeries{}, dataErr)
	runs.On("Create", mock.Anything, mock.MatchedBy(func(run *model.BacktestRun) bool {
		return run.Status == model.BacktestRunFailed &&
			run.Symbol == "600519" &&
			run.Trigger == dto.TriggerAPI &&
			run.Summary == backtest.FailureMessage(dataErr)
	})).Return(nil).Once()

	_, err := newTestBacktestService(md, sp, runs).RunBacktest(context.Background(), validRequest())
	assert.ErrorIs(t, err, dataErr)
	assert.Equal(t, "DataUnavailableError", backtest.ErrorType(err))
	runs.AssertExpectations(t)
}

func TestBacktestService_RunBacktest_StorageErrorDoesNotFailRun(t *testing.T) {
	md := &mockMarketDataRepo{}
	sp := &mockSystemParamRepo{}
	runs := &mockBacktestRunRepo{}
	sp.On("GetDefaultBacktestParams", mock.Anything).Return(backtest.Parameters{}, errors.New("db down"))
	md.On("Fetch", mock.Anything, mock.Anything).Return(takeProfitSeries(), nil)
	runs.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	svc := newTestBacktestService(md, sp, runs)
	req := validRequest()
	req.TakeProfit = floatPtr(0.03)
	req.StopLoss = floatPtr(-0.05)
	req.MaxHoldDays = intPtr(10)
	req.Cash = floatPtr(100000)
	req.Stake = intPtr(100)
	req.Commission = floatPtr(0.0003)

	resp, err := svc.RunBacktest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Report.Metrics.Trades)
}

func TestBacktestService_GetRun_FromStorage(t *testing.T) {
	report := &backtest.Report{
		Inputs:         backtest.RunInputs{Symbol: "600519", StartDate: "2024-01-01", EndDate: "2024-03-01"},
		DatasourceUsed: "eastmoney",
		Metrics:        backtest.Metrics{Trades: 2},
	}
	raw, err := json.Marshal(report)
	require.NoError(t, err)

	runs := &mockBacktestRunRepo{}
	runs.On("FindByID", mock.Anything, "run-1").Return(&model.BacktestRun{
		ID:             "run-1",
		Symbol:         "600519",
		Status:         model.BacktestRunCompleted,
		DatasourceUsed: "eastmoney",
		Report:         raw,
	}, nil)
	runs.On("FindByID", mock.Anything, "missing").Return(nil, repository.ErrBacktestRunNotFound)

	svc := newTestBacktestService(&mockMarketDataRepo{}, &mockSystemParamRepo{}, runs)

	run, err := svc.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, run.Report)
	assert.Equal(t, 2, run.Report.Metrics.Trades)
	assert.Equal(t, "eastmoney", run.DatasourceUsed)

	got, err := svc.GetReport(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "600519", got.Inputs.Symbol)

	_, err = svc.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrBacktestRunNotFound)
}

func TestBacktestService_PersistUnencodableParams(t *testing.T) {
	runs := &mockBacktestRunRepo{}
	runs.On("Create", mock.Anything, mock.MatchedBy(func(run *model.BacktestRun) bool {
		return run.ID == "run-x" && run.Params == nil && run.Status == model.BacktestRunFailed
	})).Return(nil).Once()

	svc := newTestBacktestService(&mockMarketDataRepo{}, &mockSystemParamRepo{}, runs)
	params := backtest.DefaultParameters()
	params.StartingCash = math.Inf(1)

	require.NotPanics(t, func() {
		svc.persist(context.Background(), "run-x", dto.TriggerCLI, backtest.RunInputs{Symbol: "600519"}, params, nil, errors.New("boom"))
	})
	runs.AssertExpectations(t)
}

func TestBacktestService_ListRuns(t *testing.T) {
	runs := &mockBacktestRunRepo{}
	symbol := "600519"
	param := model.GetBacktestRunParam{Symbol: &symbol}
	runs.On("Get", mock.Anything, param).Return([]model.BacktestRun{
		{ID: "run-2", Symbol: "600519", Status: model.BacktestRunFailed, ErrorMessage: "no data"},
		{ID: "run-1", Symbol: "600519", Status: model.BacktestRunCompleted, Trigger: dto.TriggerCLI},
	}, nil)

	got, err := newTestBacktestService(&mockMarketDataRepo{}, &mockSystemParamRepo{}, runs).ListRuns(context.Background(), param)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-2", got[0].ID)
	assert.Equal(t, "no data", got[0].ErrorMessage)
	assert.Equal(t, dto.TriggerCLI, got[1].Trigger)
	assert.Nil(t, got[1].Report)

	_, err = newTestBacktestService(&mockMarketDataRepo{}, &mockSystemParamRepo{}, nil).ListRuns(context.Background(), param)
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestBacktestService_GetReport_WithoutStorage(t *testing.T) {
	svc := newTestBacktestService(&mockMarketDataRepo{}, &mockSystemParamRepo{}, nil)
	_, err := svc.GetReport(context.Background(), "unknown")
	assert.ErrorIs(t, err, repository.ErrBacktestRunNotFound)
}

func TestBacktestService_RenderChart(t *testing.T) {
	md := &mockMarketDataRepo{}
	sp := &mockSystemParamRepo{}
	sp.On("GetDefaultBacktestParams", mock.Anything).Return(backtest.DefaultParameters(), nil)
	md.On("Fetch", mock.Anything, mock.Anything).Return(takeProfitSeries(), nil)

	svc := newTestBacktestService(md, sp, nil)
	resp, err := svc.RunBacktest(context.Background(), validRequest())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.RenderChart(context.Background(), resp.RunID, &buf))
	assert.Contains(t, buf.String(), "2024-01-04")
}

func TestEquityChartFromReport(t *testing.T) {
	report := &backtest.Report{
		Inputs:         backtest.RunInputs{Symbol: "000001", StartDate: "2024-01-01", EndDate: "2024-02-01"},
		Config:         backtest.DefaultParameters(),
		DatasourceUsed: "yahoo",
		EquityCurve: []backtest.EquityPoint{
			{Index: 0, Date: "2024-01-02", Value: 100000},
			{Index: 1, Date: "2024-01-03", Value: 100100},
		},
	}

	c := EquityChartFromReport(report)
	assert.Equal(t, []string{"2024-01-02", "2024-01-03"}, c.Dates)
	assert.Equal(t, []float64{100000, 100100}, c.Values)
	assert.Contains(t, c.Subtitle, "TP=3.00% SL=-5.00% Hold=10")
	assert.Contains(t, c.Subtitle, "yahoo")
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
