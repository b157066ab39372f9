package service

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/model"
	"ashare-backtest/internal/repository"
	"ashare-backtest/internal/strategy"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/utils"
	"context"
	"errors"
	"fmt"
)

type TaskExecutor interface {
	Execute(ctx context.Context, taskHistory *model.TaskExecutionHistory) error
}

type taskExecutor struct {
	cfg                *config.Config
	log                *logger.Logger
	jobRepo            repository.JobRepository
	executorStrategies map[strategy.JobType]strategy.JobExecutionStrategy
}

func NewTaskExecutor(cfg *config.Config, log *logger.Logger, jobRepo repository.JobRepository, executorStrategies map[strategy.JobType]strategy.JobExecutionStrategy) TaskExecutor {
	return &taskExecutor{
		jobRepo:            jobRepo,
		cfg:                cfg,
		log:                log,
		executorStrategies: executorStrategies,
	}
}

func (t *taskExecutor) Execute(ctx context.Context, taskHistory *model.TaskExecutionHistory) error {
	t.log.InfoContext(ctx, "Processing job", logger.IntField("job_id", int(taskHistory.JobID)), logger.IntField("history_id", int(taskHistory.ID)))

	job, err := t.jobRepo.FindByID(ctx, taskHistory.JobID)
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to find job", logger.ErrorField(err), logger.IntField("job_id", int(taskHistory.JobID)))
		return fmt.Errorf("failed to find job: %w", err)
	}

	executor := t.executorStrategies[strategy.JobType(job.Type)]
	if executor == nil {
		t.log.ErrorContext(ctx, "Job type not found", logger.IntField("job_id", int(taskHistory.JobID)), logger.StringField("job_type", job.Type))
		taskHistory.Finish(utils.TimeNowCST(), strategy.JOB_EXIT_CODE_FAILED, "", fmt.Errorf("job type %q not found", job.Type), false)
	} else {
		result, err := executor.Execute(ctx, job)
		if err != nil {
			t.log.ErrorContext(ctx, "Failed to execute job", logger.ErrorField(err), logger.IntField("job_id", int(taskHistory.JobID)))
		}
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
		taskHistory.Finish(utils.TimeNowCST(), result.ExitCode, result.Output, err, timedOut)
	}

	// The job context may already be done; the history row is written regardless.
	if err := t.jobRepo.UpdateTaskExecutionHistory(context.WithoutCancel(ctx), taskHistory); err != nil {
		t.log.ErrorContext(ctx, "Failed to update task execution history", logger.ErrorField(err), logger.IntField("job_id", int(taskHistory.JobID)))
		return fmt.Errorf("failed to update task execution history: %w", err)
	}

	return nil
}
