package service

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/model"
	"ashare-backtest/internal/repository"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/utils"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrJobNotFound = errors.New("job not found")

type SchedulerService interface {
	Execute(ctx context.Context) error
	GetJobSchedule(ctx context.Context, param model.GetJobParam) ([]model.Job, error)
	RunJobTask(ctx context.Context, jobID uint) error
}

type schedulerService struct {
	cfg          *config.Config
	log          *logger.Logger
	cronParser   cron.Parser
	jobRepo      repository.JobRepository
	taskExecutor TaskExecutor
	semaphore    chan struct{}
	now          func() time.Time
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	jobRepo repository.JobRepository,
	taskExecutor TaskExecutor,
) SchedulerService {
	maxConcurrency := cfg.Scheduler.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &schedulerService{
		cfg:          cfg,
		log:          log,
		jobRepo:      jobRepo,
		cronParser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		taskExecutor: taskExecutor,
		semaphore:    make(chan struct{}, maxConcurrency),
		now:          utils.TimeNowCST,
	}
}

func (s *schedulerService) Execute(ctx context.Context) error {
	if s.jobRepo == nil {
		return ErrStorageDisabled
	}

	jobs, err := s.jobRepo.FindJobsToSchedule(ctx, s.now(), utils.WithPreload("Job"))
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to find jobs to schedule", logger.ErrorField(err))
		return fmt.Errorf("failed to find jobs to schedule: %w", err)
	}

	if len(jobs) == 0 {
		s.log.InfoContext(ctx, "No jobs to schedule")
		return nil
	}
	s.log.InfoContext(ctx, "Start running jobs",
		logger.IntField("job_count", len(jobs)),
		logger.IntField("max_concurrency", cap(s.semaphore)),
	)

	for _, job := range jobs {
		if !utils.ShouldContinue(ctx, s.log) {
			return nil
		}

		if err := s.executeJob(ctx, job); err != nil {
			s.log.ErrorContextWithAlert(ctx, "Failed to execute job",
				logger.ErrorField(err),
				logger.IntField("job_id", int(job.JobID)),
				logger.IntField("schedule_id", int(job.ID)),
				logger.StringField("job_name", job.Job.Name),
				logger.StringField("job_type", job.Job.Type),
			)
			continue
		}

		s.log.InfoContext(ctx, "Job dispatched",
			logger.IntField("job_id", int(job.JobID)),
			logger.IntField("schedule_id", int(job.ID)),
			logger.StringField("job_name", job.Job.Name),
		)
	}

	return nil
}

// executeJob records a running history row, hands the job to a worker bounded
// by the semaphore and moves the schedule to its next cron time.
func (s *schedulerService) executeJob(ctx context.Context, task model.TaskSchedule) error {
	s.log.DebugContext(ctx, "Executing job",
		logger.IntField("job_id", int(task.JobID)),
		logger.IntField("schedule_id", int(task.ID)),
		logger.StringField("job_name", task.Job.Name),
		logger.StringField("job_type", task.Job.Type),
		logger.IntField("timeout", task.Job.Timeout),
		logger.IntField("active_concurrency", len(s.semaphore)),
		logger.IntField("max_concurrency", cap(s.semaphore)),
	)

	cronSchedule, err := s.cronParser.Parse(task.CronExpression)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to parse cron expression", logger.ErrorField(err), logger.IntField("schedule_id", int(task.ID)))
		return fmt.Errorf("failed to parse cron expression: %w", err)
	}

	now := s.now()
	history := &model.TaskExecutionHistory{
		JobID:      task.JobID,
		ScheduleID: task.ID,
		Status:     model.StatusRunning,
		StartedAt:  now,
	}
	if err := s.jobRepo.CreateTaskExecutionHistory(ctx, history); err != nil {
		s.log.ErrorContext(ctx, "Failed to create task history", logger.ErrorField(err), logger.IntField("schedule_id", int(task.ID)))
		return fmt.Errorf("failed to create task history: %w", err)
	}

	timeout := time.Duration(task.Job.Timeout) * time.Second
	if timeout <= 0 {
		timeout = s.cfg.Scheduler.TimeoutDuration
	}

	s.semaphore <- struct{}{}
	utils.GoSafe(func() {
		defer func() {
			<-s.semaphore
		}()

		jobCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.taskExecutor.Execute(jobCtx, history); err != nil {
			s.log.ErrorContextWithAlert(jobCtx, "Failed to execute task", logger.ErrorField(err), logger.IntField("schedule_id", int(task.ID)))
		}
	})

	task.LastExecution = sql.NullTime{Time: now, Valid: true}
	task.NextExecution = sql.NullTime{Time: cronSchedule.Next(now), Valid: true}
	if err := s.jobRepo.UpdateTaskSchedule(ctx, &task); err != nil {
		s.log.ErrorContext(ctx, "Failed to update task schedule", logger.ErrorField(err), logger.IntField("schedule_id", int(task.ID)))
		return fmt.Errorf("failed to update task schedule: %w", err)
	}
	return nil
}

func (s *schedulerService) GetJobSchedule(ctx context.Context, param model.GetJobParam) ([]model.Job, error) {
	if s.jobRepo == nil {
		return nil, ErrStorageDisabled
	}
	return s.jobRepo.Get(ctx, &param)
}

func (s *schedulerService) RunJobTask(ctx context.Context, jobID uint) error {
	if s.jobRepo == nil {
		return ErrStorageDisabled
	}

	s.log.InfoContext(ctx, "Running job task", logger.IntField("job_id", int(jobID)))
	jobs, err := s.jobRepo.Get(ctx, &model.GetJobParam{IDs: []uint{jobID}})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to find job", logger.ErrorField(err), logger.IntField("job_id", int(jobID)))
		return fmt.Errorf("failed to find job: %w", err)
	}
	if len(jobs) == 0 {
		return fmt.Errorf("%w: %d", ErrJobNotFound, jobID)
	}
	if len(jobs[0].Schedules) == 0 {
		return fmt.Errorf("schedule not found for job %d", jobID)
	}

	schedule := jobs[0].Schedules[0]
	schedule.Job = jobs[0]
	return s.executeJob(ctx, schedule)
}
