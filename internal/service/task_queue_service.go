package service

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/repository"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/utils"
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/sync/errgroup"
)

// resultMaxRunes bounds the text written back to the Bitable result cell.
const resultMaxRunes = 900

type TaskQueueService interface {
	PollAndRun(ctx context.Context, limit int) (*dto.TaskQueueResult, error)
}

type taskQueueService struct {
	cfg             *config.Config
	log             *logger.Logger
	bitableRepo     repository.FeishuBitableRepository
	backtestService BacktestService
	notifier        NotificationService
}

func NewTaskQueueService(
	cfg *config.Config,
	log *logger.Logger,
	bitableRepo repository.FeishuBitableRepository,
	backtestService BacktestService,
	notifier NotificationService,
) TaskQueueService {
	return &taskQueueService{
		cfg:             cfg,
		log:             log,
		bitableRepo:     bitableRepo,
		backtestService: backtestService,
		notifier:        notifier,
	}
}

func (s *taskQueueService) PollAndRun(ctx context.Context, limit int) (*dto.TaskQueueResult, error) {
	if limit <= 0 {
		limit = s.cfg.Backtest.TaskLimit
	}

	records, err := s.bitableRepo.ListRecordsByStatus(ctx, dto.TaskStatusPending, limit)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to list pending backtest tasks", logger.ErrorField(err))
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}

	result := &dto.TaskQueueResult{Total: len(records), Items: make([]dto.TaskQueueItemResult, len(records))}
	if len(records) == 0 {
		s.log.InfoContext(ctx, "No pending backtest tasks")
		return result, nil
	}
	s.log.InfoContext(ctx, "Processing backtest tasks",
		logger.IntField("task_count", len(records)),
		logger.IntField("max_concurrency", s.cfg.Backtest.MaxConcurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Backtest.MaxConcurrency > 0 {
		g.SetLimit(s.cfg.Backtest.MaxConcurrency)
	}
	for i, record := range records {
		if !utils.ShouldContinue(gctx, s.log) {
			result.Items[i] = dto.TaskQueueItemResult{RecordID: record.RecordID, Message: "cancelled"}
			continue
		}
		i, record := i, record
		g.Go(func() error {
			// A failing task never cancels its siblings.
			result.Items[i] = s.processRecord(gctx, record)
			return nil
		})
	}
	_ = g.Wait()

	for _, item := range result.Items {
		switch item.Status {
		case dto.TaskStatusCompleted:
			result.Completed++
		case dto.TaskStatusFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}

	s.log.InfoContext(ctx, "Backtest tasks processed",
		logger.IntField("total", result.Total),
		logger.IntField("completed", result.Completed),
		logger.IntField("failed", result.Failed),
		logger.IntField("skipped", result.Skipped),
	)
	return result, nil
}

func (s *taskQueueService) processRecord(ctx context.Context, record dto.FeishuBitableRecord) dto.TaskQueueItemResult {
	item := dto.TaskQueueItemResult{RecordID: record.RecordID}
	if record.RecordID == "" || record.Fields == nil {
		item.Message = "record without id or fields"
		return item
	}

	log := s.log.With(logger.StringField("record_id", record.RecordID))
	if err := s.bitableRepo.UpdateRecord(ctx, record.RecordID, map[string]interface{}{"status": string(dto.TaskStatusRunning)}); err != nil {
		log.ErrorContext(ctx, "Failed to claim backtest task", logger.ErrorField(err))
		item.Message = fmt.Sprintf("claim failed: %v", err)
		return item
	}

	req, err := DecodeBacktestTask(record.Fields, s.cfg.Backtest.TaskDatasource)
	if err == nil {
		item.Symbol = req.Symbol
		var resp *dto.BacktestResponse
		resp, err = s.runTask(ctx, req)
		if err == nil {
			item.RunID = resp.RunID
			item.Status = dto.TaskStatusCompleted
			item.Message = resp.Summary
		}
	}
	if err != nil {
		item.Status = dto.TaskStatusFailed
		item.Message = fmt.Sprintf("失败：%s: %v", backtest.ErrorType(err), err)
		log.WarnContext(ctx, "Backtest task failed", logger.ErrorField(err))
	}

	fields := map[string]interface{}{
		"status": string(item.Status),
		"result": utils.TruncateRunes(item.Message, resultMaxRunes),
	}
	if updateErr := s.bitableRepo.UpdateRecord(ctx, record.RecordID, fields); updateErr != nil {
		log.ErrorContextWithAlert(ctx, "Failed to write back backtest task result", logger.ErrorField(updateErr))
	}
	if notifyErr := s.notifier.Notify(ctx, item.Message); notifyErr != nil {
		log.WarnContext(ctx, "Failed to notify backtest task result", logger.ErrorField(notifyErr))
	}
	return item
}

// runTask turns a panic inside one run into a task failure so the other
// workers and the process keep going.
func (s *taskQueueService) runTask(ctx context.Context, req *dto.BacktestRequest) (resp *dto.BacktestResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContextWithAlert(ctx, "Backtest task panicked",
				logger.StringField("symbol", req.Symbol),
				logger.StringField("panic", fmt.Sprint(r)),
			)
			resp, err = nil, fmt.Errorf("backtest panicked: %v", r)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Backtest.RunTimeout)
	defer cancel()
	return s.backtestService.RunBacktest(runCtx, req)
}

// DecodeBacktestTask turns raw Bitable cells into a backtest request. Cells
// may be plain values, {text} / {value} objects, or rich text segment lists.
func DecodeBacktestTask(raw map[string]interface{}, defaultDatasource string) (*dto.BacktestRequest, error) {
	normalized := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if cell := normalizeCell(v); cell != nil {
			normalized[k] = cell
		}
	}

	var fields dto.BacktestTaskFields
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &fields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task decoder: %w", err)
	}
	if err := decoder.Decode(normalized); err != nil {
		return nil, backtest.NewValidationError("fields", err.Error())
	}

	verr := &backtest.ValidationError{}
	startDate, err := utils.ParseFlexibleDate(fields.StartDate)
	if err != nil {
		verr.Add("start_date", err.Error())
	}
	endDate, err := utils.ParseFlexibleDate(fields.EndDate)
	if err != nil {
		verr.Add("end_date", err.Error())
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	datasource := strings.TrimSpace(fields.Datasource)
	if datasource == "" {
		datasource = defaultDatasource
	}
	return &dto.BacktestRequest{
		Symbol:      strings.TrimSpace(fields.Symbol),
		StartDate:   startDate,
		EndDate:     endDate,
		TakeProfit:  fields.TakeProfit,
		StopLoss:    fields.StopLoss,
		MaxHoldDays: fields.MaxHoldDays,
		Cash:        fields.Cash,
		Datasource:  strings.ToLower(datasource),
		RunNote:     dto.TriggerBitable,
		Trigger:     dto.TriggerBitable,
	}, nil
}

func normalizeCell(v interface{}) interface{} {
	switch cell := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(cell) == "" {
			return nil
		}
		return cell
	case map[string]interface{}:
		if text, ok := cell["text"]; ok {
			return normalizeCell(text)
		}
		if value, ok := cell["value"]; ok {
			return normalizeCell(value)
		}
		return nil
	case []interface{}:
		var sb strings.Builder
		for _, segment := range cell {
			if m, ok := segment.(map[string]interface{}); ok {
				if text, ok := m["text"].(string); ok {
					sb.WriteString(text)
				}
			}
		}
		return normalizeCell(sb.String())
	default:
		return cell
	}
}
