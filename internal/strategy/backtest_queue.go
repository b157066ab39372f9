package strategy

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/model"
	"ashare-backtest/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
)

// TaskQueuePoller runs one pass over the pending backtest task queue.
type TaskQueuePoller interface {
	PollAndRun(ctx context.Context, limit int) (*dto.TaskQueueResult, error)
}

type BacktestQueuePayload struct {
	Limit int `json:"limit"`
}

type BacktestQueueStrategy struct {
	cfg    *config.Config
	log    *logger.Logger
	poller TaskQueuePoller
}

func NewBacktestQueueStrategy(cfg *config.Config, log *logger.Logger, poller TaskQueuePoller) JobExecutionStrategy {
	return &BacktestQueueStrategy{
		cfg:    cfg,
		log:    log,
		poller: poller,
	}
}

func (s *BacktestQueueStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	var payload BacktestQueuePayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			s.log.ErrorContext(ctx, "Failed to unmarshal job payload", logger.ErrorField(err), logger.IntField("job_id", int(job.ID)))
			return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to unmarshal job payload: %v", err)}, fmt.Errorf("failed to unmarshal job payload: %w", err)
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = s.cfg.Backtest.TaskLimit
	}

	result, err := s.poller.PollAndRun(ctx, payload.Limit)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: err.Error()}, err
	}

	output, err := json.Marshal(result)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal output message: %v", err)}, fmt.Errorf("failed to marshal output message: %w", err)
	}
	return JobResult{ExitCode: queueExitCode(result), Output: string(output)}, nil
}

func queueExitCode(result *dto.TaskQueueResult) int32 {
	switch {
	case result.Total == 0:
		return JOB_EXIT_CODE_SKIPPED
	case result.Failed > 0 && result.Completed > 0:
		return JOB_EXIT_CODE_PARTIAL_SUCCESS
	case result.Completed == 0 && result.Failed > 0:
		return JOB_EXIT_CODE_FAILED
	default:
		return JOB_EXIT_CODE_SUCCESS
	}
}

func (s *BacktestQueueStrategy) GetType() JobType {
	return JobTypeBacktestQueuePoll
}
