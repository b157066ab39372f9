package model

import (
	"time"

	"gorm.io/datatypes"
)

type BacktestRunStatus string

const (
	BacktestRunCompleted BacktestRunStatus = "completed"
	BacktestRunFailed    BacktestRunStatus = "failed"
)

type BacktestRun struct {
	ID             string            `gorm:"type:varchar(64);primaryKey" json:"id"`
	Symbol         string            `gorm:"type:varchar(16);not null;index" json:"symbol"`
	StartDate      string            `gorm:"type:varchar(10);not null" json:"start_date"`
	EndDate        string            `gorm:"type:varchar(10);not null" json:"end_date"`
	Datasource     string            `gorm:"type:varchar(32)" json:"datasource"`
	DatasourceUsed string            `gorm:"type:varchar(32)" json:"datasource_used"`
	Trigger        string            `gorm:"type:varchar(32)" json:"trigger"`
	Status         BacktestRunStatus `gorm:"type:varchar(20);not null" json:"status"`
	Summary        string            `gorm:"type:text" json:"summary"`
	ErrorMessage   string            `gorm:"type:text" json:"error_message,omitempty"`
	Params         datatypes.JSON    `gorm:"type:jsonb" json:"params"`
	Report         datatypes.JSON    `gorm:"type:jsonb" json:"report,omitempty"`
	TotalReturn    float64           `json:"total_return"`
	MaxDrawdown    float64           `json:"max_drawdown"`
	WinRate        float64           `json:"win_rate"`
	Trades         int               `json:"trades"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BacktestRun) TableName() string {
	return "backtest_runs"
}

type GetBacktestRunParam struct {
	Symbol *string
	Status *BacktestRunStatus
	Limit  *int
}
