package repository

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/model"
	"ashare-backtest/pkg/cache"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type SystemParamRepository interface {
	Get(ctx context.Context, name string, destValue interface{}) error
	GetDefaultBacktestParams(ctx context.Context) (backtest.Parameters, error)
}

type systemParamRepository struct {
	cfg           *config.Config
	inmemoryCache cache.Cache
	db            *gorm.DB
}

// NewSystemParamRepository falls back to the configured defaults when db is nil.
func NewSystemParamRepository(cfg *config.Config, inmemoryCache cache.Cache, db *gorm.DB) SystemParamRepository {
	return &systemParamRepository{cfg: cfg, inmemoryCache: inmemoryCache, db: db}
}

func (s *systemParamRepository) Get(ctx context.Context, name string, destValue interface{}) error {
	var param model.SystemParameter

	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&param).Error; err != nil {
		return err
	}
	return json.Unmarshal(param.Value, destValue)
}

func (s *systemParamRepository) configDefaults() backtest.Parameters {
	bt := s.cfg.Backtest
	return backtest.Parameters{
		TakeProfit:     bt.TakeProfit,
		StopLoss:       bt.StopLoss,
		MaxHoldDays:    bt.MaxHoldDays,
		Stake:          bt.Stake,
		StartingCash:   bt.Cash,
		CommissionRate: bt.Commission,
	}
}

// GetDefaultBacktestParams overlays the DEFAULT_BACKTEST_PARAMS row on the
// configured defaults. A missing row is not an error.
func (s *systemParamRepository) GetDefaultBacktestParams(ctx context.Context) (backtest.Parameters, error) {
	return cache.GetOrLoad(s.inmemoryCache, model.SysParamDefaultBacktestParams, s.cfg.Cache.SysParamExpDuration,
		func() (backtest.Parameters, error) {
			params := s.configDefaults()
			if s.db == nil {
				return params, nil
			}
			err := s.Get(ctx, model.SysParamDefaultBacktestParams, &params)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return params, fmt.Errorf("failed to load %s: %w", model.SysParamDefaultBacktestParams, err)
			}
			return params, nil
		})
}
