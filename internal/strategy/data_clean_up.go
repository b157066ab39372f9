package strategy

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/model"
	"ashare-backtest/internal/repository"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/utils"
	"context"
	"encoding/json"
	"fmt"
)

const defaultRetentionDays = 30

type DataCleanUpPayload struct {
	RetentionDays int `json:"retention_days"`
}

type DataCleanUpResult struct {
	Table string `json:"table"`
	Total int64  `json:"total"`
}

type DataCleanUpStrategy struct {
	cfg             *config.Config
	log             *logger.Logger
	unitOfWork      repository.UnitOfWork
	backtestRunRepo repository.BacktestRunRepository
	jobRepo         repository.JobRepository
}

func NewDataCleanUpStrategy(cfg *config.Config, log *logger.Logger, unitOfWork repository.UnitOfWork, backtestRunRepo repository.BacktestRunRepository, jobRepo repository.JobRepository) JobExecutionStrategy {
	return &DataCleanUpStrategy{
		cfg:             cfg,
		log:             log,
		unitOfWork:      unitOfWork,
		backtestRunRepo: backtestRunRepo,
		jobRepo:         jobRepo,
	}
}

// Execute removes stored runs and task history older than the retention
// window. Both deletes commit or roll back together.
func (s *DataCleanUpStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	s.log.InfoContext(ctx, "Starting data clean up")

	var payload DataCleanUpPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			s.log.ErrorContext(ctx, "Failed to unmarshal job payload", logger.ErrorField(err), logger.IntField("job_id", int(job.ID)))
			return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to unmarshal job payload: %v", err)}, fmt.Errorf("failed to unmarshal job payload: %w", err)
		}
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = defaultRetentionDays
	}

	date := utils.TimeNowCST().AddDate(0, 0, -payload.RetentionDays)
	var outputMsg []DataCleanUpResult
	err := s.unitOfWork.Run(func(opts ...utils.DBOption) error {
		totalRuns, err := s.backtestRunRepo.DeleteOlderThan(ctx, date, opts...)
		if err != nil {
			return fmt.Errorf("failed to delete backtest runs older than %s: %w", utils.PrettyDate(date), err)
		}
		totalHistory, err := s.jobRepo.DeleteTaskHistoryOlderThan(ctx, date, opts...)
		if err != nil {
			return fmt.Errorf("failed to delete task history older than %s: %w", utils.PrettyDate(date), err)
		}
		outputMsg = []DataCleanUpResult{
			{Table: "backtest_runs", Total: totalRuns},
			{Table: "task_execution_history", Total: totalHistory},
		}
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to clean up data", logger.ErrorField(err), logger.IntField("job_id", int(job.ID)))
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: err.Error()}, err
	}

	res, err := json.Marshal(outputMsg)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to marshal output message", logger.ErrorField(err), logger.IntField("job_id", int(job.ID)))
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal output message: %v", err)}, fmt.Errorf("failed to marshal output message: %w", err)
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: string(res)}, nil
}

func (s *DataCleanUpStrategy) GetType() JobType {
	return JobTypeDataCleanUp
}
