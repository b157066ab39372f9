package service

import (
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/logger"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCell(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want interface{}
	}{
		{name: "nil", in: nil, want: nil},
		{name: "blank string", in: "  ", want: nil},
		{name: "plain string", in: "600519", want: "600519"},
		{name: "number", in: 0.05, want: 0.05},
		{name: "text object", in: map[string]interface{}{"text": "600519"}, want: "600519"},
		{name: "value object", in: map[string]interface{}{"value": 5.0}, want: 5.0},
		{name: "unknown object", in: map[string]interface{}{"link": "x"}, want: nil},
		{
			name: "rich text segments",
			in: []interface{}{
				map[string]interface{}{"type": "text", "text": "600"},
				map[string]interface{}{"type": "text", "text": "519"},
			},
			want: "600519",
		},
		{name: "empty segments", in: []interface{}{}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeCell(tt.in))
		})
	}
}

func TestDecodeBacktestTask(t *testing.T) {
	t.Run("plain cells", func(t *testing.T) {
		req, err := DecodeBacktestTask(map[string]interface{}{
			"symbol":        "600519",
			"start_date":    "2024-01-01",
			"end_date":      "20240301",
			"take_profit":   "0.05",
			"stop_loss":     -0.04,
			"max_hold_days": "7",
			"status":        "待回测",
		}, "tushare")
		require.NoError(t, err)

		assert.Equal(t, "600519", req.Symbol)
		assert.Equal(t, "2024-01-01", req.StartDate)
		assert.Equal(t, "2024-03-01", req.EndDate)
		require.NotNil(t, req.TakeProfit)
		assert.Equal(t, 0.05, *req.TakeProfit)
		require.NotNil(t, req.StopLoss)
		assert.Equal(t, -0.04, *req.StopLoss)
		require.NotNil(t, req.MaxHoldDays)
		assert.Equal(t, 7, *req.MaxHoldDays)
		assert.Nil(t, req.Cash)
		assert.Equal(t, "tushare", req.Datasource)
		assert.Equal(t, dto.TriggerBitable, req.Trigger)
	})

	t.Run("rich cells and millisecond dates", func(t *testing.T) {
		req, err := DecodeBacktestTask(map[string]interface{}{
			"symbol":        []interface{}{map[string]interface{}{"type": "text", "text": "000001"}},
			"start_date":    float64(1704038400000),
			"end_date":      map[string]interface{}{"value": "2024-06-30"},
			"max_hold_days": map[string]interface{}{"value": 5.0},
			"datasource":    "Eastmoney",
		}, "tushare")
		require.NoError(t, err)

		assert.Equal(t, "000001", req.Symbol)
		assert.Equal(t, "2024-01-01", req.StartDate)
		assert.Equal(t, "2024-06-30", req.EndDate)
		require.NotNil(t, req.MaxHoldDays)
		assert.Equal(t, 5, *req.MaxHoldDays)
		assert.Equal(t, "eastmoney", req.Datasource)
	})

	t.Run("missing dates", func(t *testing.T) {
		_, err := DecodeBacktestTask(map[string]interface{}{"symbol": "600519", "end_date": ""}, "tushare")
		var verr *backtest.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.HasField("start_date"))
		assert.True(t, verr.HasField("end_date"))
	})

	t.Run("infinite cash fails validation", func(t *testing.T) {
		req, err := DecodeBacktestTask(map[string]interface{}{
			"symbol":     "600519",
			"start_date": "2024-01-01",
			"end_date":   "2024-03-01",
			"cash":       "inf",
		}, "tushare")
		if err == nil {
			err = dto.ValidateStruct(dto.NewValidator(), req)
		}
		var verr *backtest.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.HasField("cash"), verr.Error())
	})

	t.Run("non numeric take profit", func(t *testing.T) {
		_, err := DecodeBacktestTask(map[string]interface{}{
			"symbol":      "600519",
			"start_date":  "2024-01-01",
			"end_date":    "2024-03-01",
			"take_profit": "abc",
		}, "tushare")
		var verr *backtest.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

type taskQueueFixture struct {
	bitable  *mockBitableRepo
	backtest *mockBacktestService
	notifier *mockNotifier
	svc      TaskQueueService
}

func newTaskQueueFixture() *taskQueueFixture {
	f := &taskQueueFixture{
		bitable:  &mockBitableRepo{},
		backtest: &mockBacktestService{},
		notifier: &mockNotifier{},
	}
	f.svc = NewTaskQueueService(testServiceConfig(), logger.NewNop(), f.bitable, f.backtest, f.notifier)
	return f
}

func statusIs(status dto.BacktestTaskStatus) interface{} {
	return mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["status"] == string(status)
	})
}

func TestTaskQueueService_PollAndRun(t *testing.T) {
	f := newTaskQueueFixture()
	records := []dto.FeishuBitableRecord{
		{RecordID: "rec_ok", Fields: map[string]interface{}{"symbol": "600519", "start_date": "2024-01-01", "end_date": "2024-03-01"}},
		{RecordID: "rec_bad", Fields: map[string]interface{}{"symbol": "600519", "start_date": "someday", "end_date": "2024-03-01"}},
		{RecordID: "", Fields: map[string]interface{}{"symbol": "600519"}},
	}
	f.bitable.On("ListRecordsByStatus", mock.Anything, dto.TaskStatusPending, 5).Return(records, nil)
	f.bitable.On("UpdateRecord", mock.Anything, mock.Anything, statusIs(dto.TaskStatusRunning)).Return(nil)
	f.bitable.On("UpdateRecord", mock.Anything, "rec_ok", mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["status"] == string(dto.TaskStatusCompleted) && fields["result"] == "summary text"
	})).Return(nil).Once()
	f.bitable.On("UpdateRecord", mock.Anything, "rec_bad", mock.MatchedBy(func(fields map[string]interface{}) bool {
		result, _ := fields["result"].(string)
		return fields["status"] == string(dto.TaskStatusFailed) && strings.HasPrefix(result, "失败：ValidationError: ")
	})).Return(nil).Once()

	f.backtest.On("RunBacktest", mock.Anything, mock.MatchedBy(func(req *dto.BacktestRequest) bool {
		return req.Symbol == "600519" && req.Datasource == "tushare" && req.Trigger == dto.TriggerBitable
	})).Return(&dto.BacktestResponse{RunID: "run-1", Summary: "summary text"}, nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.PollAndRun(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Items, 3)
	assert.Equal(t, "run-1", result.Items[0].RunID)
	assert.Equal(t, dto.TaskStatusFailed, result.Items[1].Status)

	f.bitable.AssertNumberOfCalls(t, "UpdateRecord", 4)
	f.notifier.AssertNumberOfCalls(t, "Notify", 2)
	f.backtest.AssertExpectations(t)
}

func TestTaskQueueService_PollAndRun_RunFailure(t *testing.T) {
	f := newTaskQueueFixture()
	f.bitable.On("ListRecordsByStatus", mock.Anything, dto.TaskStatusPending, 1).Return([]dto.FeishuBitableRecord{
		{RecordID: "rec_1", Fields: map[string]interface{}{"symbol": "600519", "start_date": "2024-01-01", "end_date": "2024-03-01"}},
	}, nil)
	f.bitable.On("UpdateRecord", mock.Anything, "rec_1", mock.Anything).Return(nil)
	dataErr := &backtest.DataUnavailableError{Symbol: "600519", Reason: "empty series"}
	f.backtest.On("RunBacktest", mock.Anything, mock.Anything).Return(nil, dataErr)
	f.notifier.On("Notify", mock.Anything, "失败：DataUnavailableError: "+dataErr.Error()).Return(errors.New("webhook down"))

	result, err := f.svc.PollAndRun(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	f.notifier.AssertExpectations(t)
}

func TestTaskQueueService_PollAndRun_ClaimFailure(t *testing.T) {
	f := newTaskQueueFixture()
	f.bitable.On("ListRecordsByStatus", mock.Anything, dto.TaskStatusPending, 5).Return([]dto.FeishuBitableRecord{
		{RecordID: "rec_1", Fields: map[string]interface{}{"symbol": "600519"}},
	}, nil)
	f.bitable.On("UpdateRecord", mock.Anything, "rec_1", statusIs(dto.TaskStatusRunning)).Return(errors.New("forbidden"))

	result, err := f.svc.PollAndRun(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Contains(t, result.Items[0].Message, "claim failed")
	f.backtest.AssertNotCalled(t, "RunBacktest", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestTaskQueueService_PollAndRun_Empty(t *testing.T) {
	f := newTaskQueueFixture()
	f.bitable.On("ListRecordsByStatus", mock.Anything, dto.TaskStatusPending, 5).Return(nil, nil)

	result, err := f.svc.PollAndRun(context.Background(), -1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	f.bitable.AssertNotCalled(t, "UpdateRecord", mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskQueueService_PollAndRun_ListError(t *testing.T) {
	f := newTaskQueueFixture()
	f.bitable.On("ListRecordsByStatus", mock.Anything, dto.TaskStatusPending, 5).Return(nil, errors.New("token expired"))

	_, err := f.svc.PollAndRun(context.Background(), 0)
	assert.ErrorContains(t, err, "token expired")
}

func TestTaskQueueService_PollAndRun_PanicMarksTaskFailed(t *testing.T) {
	f := newTaskQueueFixture()
	f.bitable.On("ListRecordsByStatus", mock.Anything, dto.TaskStatusPending, 5).Return([]dto.FeishuBitableRecord{
		{RecordID: "rec_1", Fields: map[string]interface{}{"symbol": "600519", "start_date": "2024-01-01", "end_date": "2024-03-01"}},
		{RecordID: "rec_2", Fields: map[string]interface{}{"symbol": "000001", "start_date": "2024-01-01", "end_date": "2024-03-01"}},
	}, nil)
	f.bitable.On("UpdateRecord", mock.Anything, mock.Anything, statusIs(dto.TaskStatusRunning)).Return(nil)
	f.bitable.On("UpdateRecord", mock.Anything, "rec_1", mock.MatchedBy(func(fields map[string]interface{}) bool {
		result, _ := fields["result"].(string)
		return fields["status"] == string(dto.TaskStatusFailed) && strings.Contains(result, "backtest panicked: boom")
	})).Return(nil).Once()
	f.bitable.On("UpdateRecord", mock.Anything, "rec_2", statusIs(dto.TaskStatusCompleted)).Return(nil).Once()

	f.backtest.On("RunBacktest", mock.Anything, mock.MatchedBy(func(req *dto.BacktestRequest) bool {
		return req.Symbol == "600519"
	})).Run(func(mock.Arguments) { panic("boom") })
	f.backtest.On("RunBacktest", mock.Anything, mock.MatchedBy(func(req *dto.BacktestRequest) bool {
		return req.Symbol == "000001"
	})).Return(&dto.BacktestResponse{RunID: "run-2", Summary: "ok"}, nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	var result *dto.TaskQueueResult
	var err error
	require.NotPanics(t, func() { result, err = f.svc.PollAndRun(context.Background(), 0) })
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Completed)
	f.bitable.AssertExpectations(t)
}
