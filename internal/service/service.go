package service

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/repository"
	"ashare-backtest/internal/strategy"
	"ashare-backtest/pkg/cache"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/telegram"

	goValidator "github.com/go-playground/validator/v10"
)

type Service struct {
	BacktestService     BacktestService
	NotificationService NotificationService
	TaskQueueService    TaskQueueService
	CardCallbackService CardCallbackService
	SchedulerService    SchedulerService
	TaskExecutor        TaskExecutor
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	validator *goValidator.Validate,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	telegram *telegram.TelegramRateLimiter,
) *Service {
	backtestService := NewBacktestService(cfg, log, validator, inmemoryCache, repo.MarketDataRepo, repo.SystemParamRepo, repo.BacktestRunRepo)
	notificationService := NewNotificationService(cfg, log, repo.FeishuMessageRepo, repo.SystemParamRepo, telegram)
	taskQueueService := NewTaskQueueService(cfg, log, repo.FeishuBitableRepo, backtestService, notificationService)
	cardCallbackService := NewCardCallbackService(cfg, log, validator, inmemoryCache, repo.GithubDispatchRepo, repo.SystemParamRepo, backtestService, notificationService)

	executorStrategies := make(map[strategy.JobType]strategy.JobExecutionStrategy)
	executorStrategies[strategy.JobTypeBacktestQueuePoll] = strategy.NewBacktestQueueStrategy(cfg, log, taskQueueService)
	if repo.UnitOfWork != nil {
		executorStrategies[strategy.JobTypeDataCleanUp] = strategy.NewDataCleanUpStrategy(cfg, log, repo.UnitOfWork, repo.BacktestRunRepo, repo.JobRepo)
	}

	taskExecutor := NewTaskExecutor(cfg, log, repo.JobRepo, executorStrategies)
	schedulerService := NewSchedulerService(cfg, log, repo.JobRepo, taskExecutor)

	return &Service{
		BacktestService:     backtestService,
		NotificationService: notificationService,
		TaskQueueService:    taskQueueService,
		CardCallbackService: cardCallbackService,
		SchedulerService:    schedulerService,
		TaskExecutor:        taskExecutor,
	}
}
