package repository

import (
	"ashare-backtest/config"
	"ashare-backtest/pkg/cache"
	"ashare-backtest/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	MarketDataRepo     MarketDataRepository
	FeishuAuthRepo     FeishuAuthRepository
	FeishuBitableRepo  FeishuBitableRepository
	FeishuMessageRepo  FeishuMessageRepository
	GithubDispatchRepo GithubDispatchRepository
	SystemParamRepo    SystemParamRepository

	// Storage backed repositories are nil when the database is disabled.
	JobRepo         JobRepository
	BacktestRunRepo BacktestRunRepository
	UnitOfWork      UnitOfWork
}

func NewRepository(cfg *config.Config, inmemoryCache cache.Cache, db *gorm.DB, log *logger.Logger) (*Repository, error) {
	feishuAuth := NewFeishuAuthRepository(cfg, log, inmemoryCache)

	repo := &Repository{
		MarketDataRepo: NewMarketDataRepository(log,
			NewTushareRepository(cfg, log),
			NewEastmoneyRepository(cfg, log),
			NewYahooFinanceRepository(cfg, log),
		),
		FeishuAuthRepo:     feishuAuth,
		FeishuBitableRepo:  NewFeishuBitableRepository(cfg, log, feishuAuth),
		FeishuMessageRepo:  NewFeishuMessageRepository(cfg, log, feishuAuth),
		GithubDispatchRepo: NewGithubDispatchRepository(cfg, log),
		SystemParamRepo:    NewSystemParamRepository(cfg, inmemoryCache, db),
	}

	if db != nil {
		repo.JobRepo = NewJobRepository(db)
		repo.BacktestRunRepo = NewBacktestRunRepository(db)
		repo.UnitOfWork = NewUnitOfWork(db)
	}
	return repo, nil
}
