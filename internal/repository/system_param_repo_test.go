package repository

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/model"
	"ashare-backtest/pkg/cache"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemParamRepository_DefaultsWithoutDB(t *testing.T) {
	cfg := &config.Config{
		Backtest: config.Backtest{
			Cash: 50000, Commission: 0.0005, Stake: 200,
			TakeProfit: 0.05, StopLoss: -0.03, MaxHoldDays: 7,
		},
		Cache: config.Cache{SysParamExpDuration: time.Minute},
	}
	c := cache.NewLocalCache(time.Minute, time.Minute)
	repo := NewSystemParamRepository(cfg, c, nil)

	params, err := repo.GetDefaultBacktestParams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50000.0, params.StartingCash)
	assert.Equal(t, 0.0005, params.CommissionRate)
	assert.Equal(t, 200, params.Stake)
	assert.Equal(t, 7, params.MaxHoldDays)

	_, cached := c.Get(model.SysParamDefaultBacktestParams)
	assert.True(t, cached)
}
