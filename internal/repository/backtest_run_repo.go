package repository

import (
	"ashare-backtest/internal/model"
	"ashare-backtest/pkg/utils"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrBacktestRunNotFound = errors.New("backtest run not found")

type BacktestRunRepository interface {
	Create(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error
	FindByID(ctx context.Context, id string) (*model.BacktestRun, error)
	Get(ctx context.Context, param model.GetBacktestRunParam, opts ...utils.DBOption) ([]model.BacktestRun, error)
	DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error)
}

type backtestRunRepository struct {
	db *gorm.DB
}

func NewBacktestRunRepository(db *gorm.DB) BacktestRunRepository {
	return &backtestRunRepository{db: db}
}

func (r *backtestRunRepository) Create(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(run).Error
}

func (r *backtestRunRepository) FindByID(ctx context.Context, id string) (*model.BacktestRun, error) {
	var run model.BacktestRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBacktestRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *backtestRunRepository) Get(ctx context.Context, param model.GetBacktestRunParam, opts ...utils.DBOption) ([]model.BacktestRun, error) {
	var runs []model.BacktestRun
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Model(&model.BacktestRun{})
	if param.Symbol != nil {
		db = db.Where("symbol = ?", *param.Symbol)
	}
	if param.Status != nil {
		db = db.Where("status = ?", *param.Status)
	}
	if param.Limit != nil {
		db = db.Limit(*param.Limit)
	}
	if err := db.Omit("report").Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *backtestRunRepository) DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	result := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("created_at < ?", date).
		Delete(&model.BacktestRun{})
	return result.RowsAffected, result.Error
}
