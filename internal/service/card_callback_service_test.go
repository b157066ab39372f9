package service

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/cache"
	"ashare-backtest/pkg/logger"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type cardCallbackFixture struct {
	cfg      *config.Config
	dispatch *mockDispatchRepo
	params   *mockSystemParamRepo
	backtest *mockBacktestService
	notifier *mockNotifier
}

func newCardCallbackFixture(mutate func(cfg *config.Config)) (*cardCallbackFixture, CardCallbackService) {
	f := &cardCallbackFixture{
		cfg:      testServiceConfig(),
		dispatch: &mockDispatchRepo{},
		params:   &mockSystemParamRepo{},
		backtest: &mockBacktestService{},
		notifier: &mockNotifier{},
	}
	if mutate != nil {
		mutate(f.cfg)
	}
	f.params.On("GetDefaultBacktestParams", mock.Anything).Return(backtest.DefaultParameters(), nil)
	svc := NewCardCallbackService(f.cfg, logger.NewNop(), dto.NewValidator(), cache.NewLocalCache(time.Minute, time.Minute),
		f.dispatch, f.params, f.backtest, f.notifier)
	return f, svc
}

const validCardPayload = `{
	"schema": "2.0",
	"header": {"event_id": "evt-1", "token": "verify-me", "event_type": "card.action.trigger"},
	"event": {
		"operator": {"open_id": "ou_1"},
		"action": {"tag": "button", "form_value": {
			"symbol": "600519", "start_date": "2024-01-01", "end_date": "2024-03-01",
			"take_profit": "0.05", "stop_loss": "", "max_hold_days": "", "cash": ""
		}}
	}
}`

func TestCardCallbackService_URLVerification(t *testing.T) {
	_, svc := newCardCallbackFixture(nil)
	resp := svc.HandleCardCallback(context.Background(), []byte(`{"type":"url_verification","challenge":"abc123","token":"x"}`))
	assert.True(t, resp.OK)
	assert.Equal(t, "abc123", resp.Challenge)
}

func TestCardCallbackService_InvalidJSON(t *testing.T) {
	_, svc := newCardCallbackFixture(nil)
	resp := svc.HandleCardCallback(context.Background(), []byte(`{not json`))
	assert.False(t, resp.OK)
	assert.True(t, strings.HasPrefix(resp.Msg, "触发失败：ValidationError: "), resp.Msg)
}

func TestCardCallbackService_Dispatch(t *testing.T) {
	f, svc := newCardCallbackFixture(func(cfg *config.Config) {
		cfg.Feishu.VerificationToken = "verify-me"
	})
	f.dispatch.On("DispatchWorkflow", mock.Anything, map[string]string{
		"symbol":        "600519",
		"start_date":    "2024-01-01",
		"end_date":      "2024-03-01",
		"datasource":    "auto",
		"take_profit":   "0.05",
		"stop_loss":     "-0.05",
		"max_hold_days": "10",
		"cash":          "100000",
	}).Return(nil).Once()

	resp := svc.HandleCardCallback(context.Background(), []byte(validCardPayload))
	assert.True(t, resp.OK, resp.Msg)
	assert.Equal(t, "已触发回测", resp.Msg)
	f.dispatch.AssertExpectations(t)
	f.backtest.AssertNotCalled(t, "RunBacktest", mock.Anything, mock.Anything)
}

func TestCardCallbackService_DispatchError(t *testing.T) {
	f, svc := newCardCallbackFixture(nil)
	f.dispatch.On("DispatchWorkflow", mock.Anything, mock.Anything).Return(errors.New("github returned 404"))

	resp := svc.HandleCardCallback(context.Background(), []byte(validCardPayload))
	assert.False(t, resp.OK)
	assert.Equal(t, "触发失败：Error: github returned 404", resp.Msg)
}

func TestCardCallbackService_Local(t *testing.T) {
	f, svc := newCardCallbackFixture(func(cfg *config.Config) {
		cfg.Feishu.CallbackMode = CallbackModeLocal
	})
	done := make(chan string, 1)
	f.backtest.On("RunBacktest", mock.Anything, mock.MatchedBy(func(req *dto.BacktestRequest) bool {
		return req.Symbol == "600519" && req.Trigger == dto.TriggerCard && *req.TakeProfit == 0.05 && *req.MaxHoldDays == 10
	})).Return(&dto.BacktestResponse{RunID: "run-1", Summary: "done"}, nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		done <- args.String(1)
	}).Return(nil)

	resp := svc.HandleCardCallback(context.Background(), []byte(validCardPayload))
	require.True(t, resp.OK, resp.Msg)

	select {
	case text := <-done:
		assert.Equal(t, "done", text)
	case <-time.After(2 * time.Second):
		t.Fatal("local backtest did not notify")
	}
	f.dispatch.AssertNotCalled(t, "DispatchWorkflow", mock.Anything, mock.Anything)
}

func TestCardCallbackService_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		payload string
		prefix  string
	}{
		{
			name:    "wrong verification token",
			mutate:  func(cfg *config.Config) { cfg.Feishu.VerificationToken = "other" },
			payload: validCardPayload,
			prefix:  "触发失败：Error: invalid verification token",
		},
		{
			name:    "invalid symbol",
			payload: `{"action":{"form_value":{"symbol":"abc","start_date":"2024-01-01","end_date":"2024-03-01"}}}`,
			prefix:  "触发失败：ValidationError: ",
		},
		{
			name:    "start after end",
			payload: `{"form_value":{"symbol":"600519","start_date":"2024-05-01","end_date":"2024-03-01"}}`,
			prefix:  "触发失败：ValidationError: ",
		},
		{
			name:    "non numeric take profit",
			payload: `{"formValue":{"symbol":"600519","start_date":"2024-01-01","end_date":"2024-03-01","take_profit":"high"}}`,
			prefix:  "触发失败：ValidationError: invalid input: take_profit must be a number",
		},
		{
			name:    "max hold days out of range",
			payload: `{"action":{"value":{"symbol":"600519","start_date":"2024-01-01","end_date":"2024-03-01","max_hold_days":"500"}}}`,
			prefix:  "触发失败：ValidationError: ",
		},
		{
			name:    "no form",
			payload: `{"action":{"tag":"button"}}`,
			prefix:  "触发失败：ValidationError: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, svc := newCardCallbackFixture(tt.mutate)
			resp := svc.HandleCardCallback(context.Background(), []byte(tt.payload))
			assert.False(t, resp.OK)
			assert.True(t, strings.HasPrefix(resp.Msg, tt.prefix), resp.Msg)
			f.dispatch.AssertNotCalled(t, "DispatchWorkflow", mock.Anything, mock.Anything)
		})
	}
}

func TestCardCallbackService_DuplicateEvent(t *testing.T) {
	f, svc := newCardCallbackFixture(nil)
	f.dispatch.On("DispatchWorkflow", mock.Anything, mock.Anything).Return(nil).Once()

	first := svc.HandleCardCallback(context.Background(), []byte(validCardPayload))
	second := svc.HandleCardCallback(context.Background(), []byte(validCardPayload))

	assert.True(t, first.OK)
	assert.False(t, second.OK)
	assert.Contains(t, second.Msg, ErrDuplicateCallback.Error())
	f.dispatch.AssertNumberOfCalls(t, "DispatchWorkflow", 1)
}

func TestCardCallbackService_ConcurrentDuplicateEvent(t *testing.T) {
	f, svc := newCardCallbackFixture(func(cfg *config.Config) {
		cfg.Feishu.MaxCallbackPerMinute = 0
	})
	f.dispatch.On("DispatchWorkflow", mock.Anything, mock.Anything).Return(nil)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.HandleCardCallback(context.Background(), []byte(validCardPayload)).OK {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	f.dispatch.AssertNumberOfCalls(t, "DispatchWorkflow", 1)
}

func TestCardCallbackService_RateLimit(t *testing.T) {
	f, svc := newCardCallbackFixture(func(cfg *config.Config) {
		cfg.Feishu.MaxCallbackPerMinute = 1
	})
	f.dispatch.On("DispatchWorkflow", mock.Anything, mock.Anything).Return(nil)

	payload := func(eventID string) []byte {
		return []byte(strings.Replace(validCardPayload, "evt-1", eventID, 1))
	}
	assert.True(t, svc.HandleCardCallback(context.Background(), payload("evt-a")).OK)

	limited := svc.HandleCardCallback(context.Background(), payload("evt-b"))
	assert.False(t, limited.OK)
	assert.Contains(t, limited.Msg, ErrCallbackRateLimited.Error())
}

func TestDispatchInputs(t *testing.T) {
	req := &dto.BacktestRequest{
		Symbol:      "000001",
		StartDate:   "2023-01-01",
		EndDate:     "2023-12-31",
		TakeProfit:  floatPtr(0.1),
		MaxHoldDays: intPtr(20),
	}
	assert.Equal(t, map[string]string{
		"symbol":        "000001",
		"start_date":    "2023-01-01",
		"end_date":      "2023-12-31",
		"datasource":    "auto",
		"take_profit":   "0.1",
		"max_hold_days": "20",
	}, DispatchInputs(req))
}

func TestBuildBacktestCard(t *testing.T) {
	card := BuildBacktestCard(backtest.DefaultParameters())
	assert.Equal(t, "2.0", card["schema"])

	body := card["body"].(map[string]interface{})
	form := body["elements"].([]interface{})[0].(map[string]interface{})
	elements := form["elements"].([]interface{})
	require.Len(t, elements, 8)

	defaults := map[string]interface{}{}
	for _, e := range elements {
		el := e.(map[string]interface{})
		if v, ok := el["default_value"]; ok {
			defaults[el["name"].(string)] = v
		}
	}
	assert.Equal(t, map[string]interface{}{
		"take_profit":   "0.03",
		"stop_loss":     "-0.05",
		"max_hold_days": "10",
		"cash":          "100000",
	}, defaults)
}
