package service

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/repository"
	"ashare-backtest/pkg/cache"
	"ashare-backtest/pkg/common"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/ratelimit"
	"ashare-backtest/pkg/utils"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

const (
	CallbackModeDispatch = "dispatch"
	CallbackModeLocal    = "local"

	callbackEventTTL = 10 * time.Minute
)

var (
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrCallbackRateLimited      = errors.New("too many requests, try again later")
	ErrDuplicateCallback        = errors.New("duplicate callback event")
)

// formPaths lists where the submitted form may live, depending on the card
// schema version.
var formPaths = []string{
	"event.action.form_value",
	"event.action.value",
	"action.form_value",
	"action.formValue",
	"action.value",
	"form_value",
	"formValue",
	"form",
}

type CardCallbackService interface {
	HandleCardCallback(ctx context.Context, payload []byte) dto.CardCallbackResponse
}

type cardCallbackService struct {
	cfg             *config.Config
	log             *logger.Logger
	validator       *goValidator.Validate
	inmemoryCache   cache.Cache
	limiter         *ratelimit.LimiterStore
	dispatchRepo    repository.GithubDispatchRepository
	systemParamRepo repository.SystemParamRepository
	backtestService BacktestService
	notifier        NotificationService
}

func NewCardCallbackService(
	cfg *config.Config,
	log *logger.Logger,
	validator *goValidator.Validate,
	inmemoryCache cache.Cache,
	dispatchRepo repository.GithubDispatchRepository,
	systemParamRepo repository.SystemParamRepository,
	backtestService BacktestService,
	notifier NotificationService,
) CardCallbackService {
	return &cardCallbackService{
		cfg:             cfg,
		log:             log,
		validator:       validator,
		inmemoryCache:   inmemoryCache,
		limiter:         ratelimit.PerMinute(cfg.Feishu.MaxCallbackPerMinute),
		dispatchRepo:    dispatchRepo,
		systemParamRepo: systemParamRepo,
		backtestService: backtestService,
		notifier:        notifier,
	}
}

func (s *cardCallbackService) HandleCardCallback(ctx context.Context, payload []byte) dto.CardCallbackResponse {
	if !gjson.ValidBytes(payload) {
		return callbackFailure(backtest.NewValidationError("payload", "invalid json"))
	}
	root := gjson.ParseBytes(payload)

	if root.Get("type").String() == "url_verification" {
		return dto.CardCallbackResponse{OK: true, Msg: "ok", Challenge: root.Get("challenge").String()}
	}

	if err := s.verify(root); err != nil {
		s.log.WarnContext(ctx, "Rejected card callback", logger.ErrorField(err))
		return callbackFailure(err)
	}

	operator := firstString(root, "open_id", "operator.open_id", "event.operator.open_id")
	if operator != "" && !s.limiter.Allow(operator) {
		s.log.WarnContext(ctx, "Card callback rate limited", logger.StringField("open_id", operator))
		return callbackFailure(ErrCallbackRateLimited)
	}

	if eventID := firstString(root, "header.event_id", "event_id"); eventID != "" && s.inmemoryCache != nil {
		key := fmt.Sprintf(common.KEY_CARD_CALLBACK_EVENT, eventID)
		if !s.inmemoryCache.Add(key, true, callbackEventTTL) {
			return callbackFailure(ErrDuplicateCallback)
		}
	}

	req, err := s.parseForm(ctx, root)
	if err != nil {
		s.log.InfoContext(ctx, "Invalid card form", logger.ErrorField(err), logger.StringField("open_id", operator))
		return callbackFailure(err)
	}

	switch s.cfg.Feishu.CallbackMode {
	case CallbackModeLocal:
		s.runLocal(req)
	default:
		if err := s.dispatchRepo.DispatchWorkflow(ctx, DispatchInputs(req)); err != nil {
			s.log.ErrorContext(ctx, "Failed to dispatch backtest workflow", logger.ErrorField(err), logger.StringField("symbol", req.Symbol))
			return callbackFailure(err)
		}
	}

	s.log.InfoContext(ctx, "Backtest triggered from card",
		logger.StringField("symbol", req.Symbol),
		logger.StringField("mode", s.cfg.Feishu.CallbackMode),
		logger.StringField("open_id", operator),
	)
	return dto.CardCallbackResponse{OK: true, Msg: "已触发回测"}
}

func (s *cardCallbackService) verify(root gjson.Result) error {
	expected := s.cfg.Feishu.VerificationToken
	if expected == "" {
		return nil
	}
	if firstString(root, "header.token", "token") != expected {
		return ErrInvalidVerificationToken
	}
	return nil
}

// parseForm extracts the submitted form and resolves it against the current
// defaults. Missing optional values keep their defaults.
func (s *cardCallbackService) parseForm(ctx context.Context, root gjson.Result) (*dto.BacktestRequest, error) {
	var form gjson.Result
	for _, path := range formPaths {
		if v := root.Get(path); v.Exists() && v.IsObject() {
			form = v
			break
		}
	}

	field := func(name string) string {
		return strings.TrimSpace(form.Get(name).String())
	}

	verr := &backtest.ValidationError{}
	req := &dto.BacktestRequest{
		Symbol:     field("symbol"),
		StartDate:  field("start_date"),
		EndDate:    field("end_date"),
		Datasource: common.DATASOURCE_AUTO,
		RunNote:    dto.TriggerCard,
		Trigger:    dto.TriggerCard,
	}
	req.TakeProfit = parseFloatField(verr, "take_profit", field("take_profit"))
	req.StopLoss = parseFloatField(verr, "stop_loss", field("stop_loss"))
	req.Cash = parseFloatField(verr, "cash", field("cash"))
	if raw := field("max_hold_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add("max_hold_days", "must be an integer")
		} else {
			req.MaxHoldDays = &n
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := dto.ValidateStruct(s.validator, req); err != nil {
		return nil, err
	}
	defaults, err := s.systemParamRepo.GetDefaultBacktestParams(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to load default backtest params", logger.ErrorField(err))
	}
	inputs, params := req.Resolve(defaults, common.DATASOURCE_AUTO)
	if err := backtest.ValidateRun(inputs, params); err != nil {
		return nil, err
	}

	// Pin the resolved values so the dispatched run sees what was validated.
	req.TakeProfit = &params.TakeProfit
	req.StopLoss = &params.StopLoss
	req.MaxHoldDays = &params.MaxHoldDays
	req.Cash = &params.StartingCash
	return req, nil
}

func (s *cardCallbackService) runLocal(req *dto.BacktestRequest) {
	utils.GoSafe(func() {
		timeout := s.cfg.Backtest.RunTimeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		resp, err := s.backtestService.RunBacktest(ctx, req)
		text := ""
		if err != nil {
			s.log.WarnContext(ctx, "Card triggered backtest failed", logger.ErrorField(err), logger.StringField("symbol", req.Symbol))
			text = backtest.FailureMessage(err)
		} else {
			text = resp.Summary
		}
		if err := s.notifier.Notify(ctx, text); err != nil {
			s.log.WarnContext(ctx, "Failed to notify card triggered backtest", logger.ErrorField(err))
		}
	})
}

// DispatchInputs renders the workflow_dispatch inputs. GitHub only accepts
// string values.
func DispatchInputs(req *dto.BacktestRequest) map[string]string {
	inputs := map[string]string{
		"symbol":     req.Symbol,
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
		"datasource": req.Datasource,
	}
	if req.Datasource == "" {
		inputs["datasource"] = common.DATASOURCE_AUTO
	}
	if req.TakeProfit != nil {
		inputs["take_profit"] = formatFloat(*req.TakeProfit)
	}
	if req.StopLoss != nil {
		inputs["stop_loss"] = formatFloat(*req.StopLoss)
	}
	if req.MaxHoldDays != nil {
		inputs["max_hold_days"] = strconv.Itoa(*req.MaxHoldDays)
	}
	if req.Cash != nil {
		inputs["cash"] = formatFloat(*req.Cash)
	}
	return inputs
}

func callbackFailure(err error) dto.CardCallbackResponse {
	return dto.CardCallbackResponse{OK: false, Msg: fmt.Sprintf("触发失败：%s: %v", backtest.ErrorType(err), err)}
}

func parseFloatField(verr *backtest.ValidationError, name, raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		verr.Add(name, "must be a number")
		return nil
	}
	return &v
}

func firstString(root gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := root.Get(path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
