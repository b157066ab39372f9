package service

import (
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/model"
	"ashare-backtest/pkg/utils"
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
)

type mockMarketDataRepo struct{ mock.Mock }

func (m *mockMarketDataRepo) Fetch(ctx context.Context, param dto.FetchParam) (backtest.PriceSeries, error) {
	args := m.Called(ctx, param)
	return args.Get(0).(backtest.PriceSeries), args.Error(1)
}

type mockSystemParamRepo struct{ mock.Mock }

func (m *mockSystemParamRepo) Get(ctx context.Context, name string, destValue interface{}) error {
	return m.Called(ctx, name, destValue).Error(0)
}

func (m *mockSystemParamRepo) GetDefaultBacktestParams(ctx context.Context) (backtest.Parameters, error) {
	args := m.Called(ctx)
	return args.Get(0).(backtest.Parameters), args.Error(1)
}

type mockBacktestRunRepo struct{ mock.Mock }

func (m *mockBacktestRunRepo) Create(ctx context.Context, run *model.BacktestRun, opts ...utils.DBOption) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockBacktestRunRepo) FindByID(ctx context.Context, id string) (*model.BacktestRun, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*model.BacktestRun)
	return run, args.Error(1)
}

func (m *mockBacktestRunRepo) Get(ctx context.Context, param model.GetBacktestRunParam, opts ...utils.DBOption) ([]model.BacktestRun, error) {
	args := m.Called(ctx, param)
	runs, _ := args.Get(0).([]model.BacktestRun)
	return runs, args.Error(1)
}

func (m *mockBacktestRunRepo) DeleteOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(int64), args.Error(1)
}

type mockBitableRepo struct{ mock.Mock }

func (m *mockBitableRepo) ListRecordsByStatus(ctx context.Context, status dto.BacktestTaskStatus, limit int) ([]dto.FeishuBitableRecord, error) {
	args := m.Called(ctx, status, limit)
	records, _ := args.Get(0).([]dto.FeishuBitableRecord)
	return records, args.Error(1)
}

func (m *mockBitableRepo) UpdateRecord(ctx context.Context, recordID string, fields map[string]interface{}) error {
	return m.Called(ctx, recordID, fields).Error(0)
}

type mockFeishuMessageRepo struct{ mock.Mock }

func (m *mockFeishuMessageRepo) SendWebhookText(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *mockFeishuMessageRepo) SendCard(ctx context.Context, chatID string, card interface{}) (string, error) {
	args := m.Called(ctx, chatID, card)
	return args.String(0), args.Error(1)
}

type mockDispatchRepo struct{ mock.Mock }

func (m *mockDispatchRepo) DispatchWorkflow(ctx context.Context, inputs map[string]string) error {
	return m.Called(ctx, inputs).Error(0)
}

type mockTelegramSender struct{ mock.Mock }

func (m *mockTelegramSender) SendMessageChat(ctx context.Context, chatID int64, message string, opts ...interface{}) error {
	return m.Called(ctx, chatID, message).Error(0)
}

type mockBacktestService struct{ mock.Mock }

func (m *mockBacktestService) RunBacktest(ctx context.Context, req *dto.BacktestRequest) (*dto.BacktestResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*dto.BacktestResponse)
	return resp, args.Error(1)
}

func (m *mockBacktestService) GetRun(ctx context.Context, id string) (*dto.BacktestRunResponse, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*dto.BacktestRunResponse)
	return resp, args.Error(1)
}

func (m *mockBacktestService) ListRuns(ctx context.Context, param model.GetBacktestRunParam) ([]dto.BacktestRunResponse, error) {
	args := m.Called(ctx, param)
	runs, _ := args.Get(0).([]dto.BacktestRunResponse)
	return runs, args.Error(1)
}

func (m *mockBacktestService) GetReport(ctx context.Context, id string) (*backtest.Report, error) {
	args := m.Called(ctx, id)
	report, _ := args.Get(0).(*backtest.Report)
	return report, args.Error(1)
}

func (m *mockBacktestService) RenderChart(ctx context.Context, id string, w io.Writer) error {
	return m.Called(ctx, id, w).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *mockNotifier) NotifyResult(ctx context.Context, report *backtest.Report, runErr error) error {
	return m.Called(ctx, report, runErr).Error(0)
}

func (m *mockNotifier) SendBacktestCard(ctx context.Context, chatID string) (string, error) {
	args := m.Called(ctx, chatID)
	return args.String(0), args.Error(1)
}

type mockJobRepo struct{ mock.Mock }

func (m *mockJobRepo) FindJobsToSchedule(ctx context.Context, now time.Time, opts ...utils.DBOption) ([]model.TaskSchedule, error) {
	args := m.Called(ctx, now)
	schedules, _ := args.Get(0).([]model.TaskSchedule)
	return schedules, args.Error(1)
}

func (m *mockJobRepo) CreateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockJobRepo) UpdateTaskSchedule(ctx context.Context, schedule *model.TaskSchedule, opts ...utils.DBOption) error {
	return m.Called(ctx, schedule).Error(0)
}

func (m *mockJobRepo) FindByID(ctx context.Context, id uint) (*model.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*model.Job)
	return job, args.Error(1)
}

func (m *mockJobRepo) UpdateTaskExecutionHistory(ctx context.Context, history *model.TaskExecutionHistory, opts ...utils.DBOption) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockJobRepo) Get(ctx context.Context, param *model.GetJobParam, opts ...utils.DBOption) ([]model.Job, error) {
	args := m.Called(ctx, param)
	jobs, _ := args.Get(0).([]model.Job)
	return jobs, args.Error(1)
}

func (m *mockJobRepo) DeleteTaskHistoryOlderThan(ctx context.Context, date time.Time, opts ...utils.DBOption) (int64, error) {
	args := m.Called(ctx, date)
	return args.Get(0).(int64), args.Error(1)
}

type mockTaskExecutor struct{ mock.Mock }

func (m *mockTaskExecutor) Execute(ctx context.Context, taskHistory *model.TaskExecutionHistory) error {
	return m.Called(ctx, taskHistory).Error(0)
}
