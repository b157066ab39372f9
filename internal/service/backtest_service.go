package service

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/model"
	"ashare-backtest/internal/repository"
	"ashare-backtest/pkg/cache"
	"ashare-backtest/pkg/chart"
	"ashare-backtest/pkg/common"
	"ashare-backtest/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrStorageDisabled is returned by run lookups when no database is configured.
var ErrStorageDisabled = errors.New("run storage is disabled")

// BacktestService runs backtests and serves stored runs and their reports.
type BacktestService interface {
	RunBacktest(ctx context.Context, req *dto.BacktestRequest) (*dto.BacktestResponse, error)
	GetRun(ctx context.Context, id string) (*dto.BacktestRunResponse, error)
	ListRuns(ctx context.Context, param model.GetBacktestRunParam) ([]dto.BacktestRunResponse, error)
	GetReport(ctx context.Context, id string) (*backtest.Report, error)
	RenderChart(ctx context.Context, id string, w io.Writer) error
}

type backtestService struct {
	cfg             *config.Config
	log             *logger.Logger
	validator       *goValidator.Validate
	inmemoryCache   cache.Cache
	marketDataRepo  repository.MarketDataRepository
	systemParamRepo repository.SystemParamRepository
	backtestRunRepo repository.BacktestRunRepository
	now             func() time.Time
}

// NewBacktestService builds the service. backtestRunRepo may be nil, in which
// case runs are only kept in the report cache.
func NewBacktestService(
	cfg *config.Config,
	log *logger.Logger,
	validator *goValidator.Validate,
	inmemoryCache cache.Cache,
	marketDataRepo repository.MarketDataRepository,
	systemParamRepo repository.SystemParamRepository,
	backtestRunRepo repository.BacktestRunRepository,
) BacktestService {
	return &backtestService{
		cfg:             cfg,
		log:             log,
		validator:       validator,
		inmemoryCache:   inmemoryCache,
		marketDataRepo:  marketDataRepo,
		systemParamRepo: systemParamRepo,
		backtestRunRepo: backtestRunRepo,
		now:             time.Now,
	}
}

// RunBacktest validates the request, fetches bars and simulates the run. The
// outcome is persisted when storage is enabled, failures included.
func (s *backtestService) RunBacktest(ctx context.Context, req *dto.BacktestRequest) (*dto.BacktestResponse, error) {
	if err := dto.ValidateStruct(s.validator, req); err != nil {
		return nil, err
	}

	defaults, err := s.systemParamRepo.GetDefaultBacktestParams(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to load default backtest params, using config defaults", logger.ErrorField(err))
	}
	inputs, params := req.Resolve(defaults, s.cfg.Backtest.Datasource)

	runKey := uuid.NewString()
	if inputs.RunID == "" {
		inputs.RunID = s.cfg.Backtest.RunID
	}
	if inputs.RunID == "" {
		inputs.RunID = runKey
	}
	runURL := req.RunURL
	if runURL == "" {
		runURL = s.cfg.Backtest.RunURL
	}

	if err := backtest.ValidateRun(inputs, params); err != nil {
		return nil, err
	}

	log := s.log.With(
		logger.StringField("run_key", runKey),
		logger.StringField("symbol", inputs.Symbol),
		logger.StringField("trigger", req.Trigger),
	)
	log.InfoContext(ctx, "Starting backtest",
		logger.StringField("start_date", inputs.StartDate),
		logger.StringField("end_date", inputs.EndDate),
		logger.StringField("datasource", inputs.Datasource),
	)

	report, err := s.simulate(ctx, inputs, params, runURL)
	if err != nil {
		log.WarnContext(ctx, "Backtest failed",
			logger.ErrorField(err),
			logger.StringField("error_type", backtest.ErrorType(err)),
		)
		s.persist(ctx, runKey, req.Trigger, inputs, params, nil, err)
		return nil, err
	}

	summary := backtest.FormatSummary(report)
	s.inmemoryCache.Set(fmt.Sprintf(common.KEY_BACKTEST_REPORT, runKey), report, s.cfg.Cache.ReportExpDuration)
	s.persist(ctx, runKey, req.Trigger, inputs, params, report, nil)

	log.InfoContext(ctx, "Backtest completed",
		logger.StringField("datasource_used", report.DatasourceUsed),
		logger.IntField("trades", report.Metrics.Trades),
		logger.FloatField("total_return", report.Metrics.TotalReturn),
		logger.FloatField("max_drawdown", report.Metrics.MaxDrawdown),
	)
	return &dto.BacktestResponse{RunID: runKey, Summary: summary, Report: report}, nil
}

func (s *backtestService) simulate(ctx context.Context, inputs backtest.RunInputs, params backtest.Parameters, runURL string) (*backtest.Report, error) {
	series, err := s.marketDataRepo.Fetch(ctx, dto.FetchParam{
		Symbol:     inputs.Symbol,
		StartDate:  inputs.StartDate,
		EndDate:    inputs.EndDate,
		Datasource: inputs.Datasource,
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, err := backtest.Simulate(inputs, params, series, runURL, s.now())
	if err != nil {
		return nil, err
	}
	for _, w := range report.Warnings {
		s.log.WarnContext(ctx, "Backtest anomaly", logger.StringField("symbol", inputs.Symbol), logger.StringField("warning", w.String()))
	}
	return report, nil
}

// persist stores the run when storage is enabled. Storage failures are logged
// and never fail the run.
func (s *backtestService) persist(ctx context.Context, runKey, trigger string, inputs backtest.RunInputs, params backtest.Parameters, report *backtest.Report, runErr error) {
	if s.backtestRunRepo == nil {
		return
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to encode backtest params", logger.ErrorField(err), logger.StringField("run_key", runKey))
		paramsJSON = nil
	}
	run := &model.BacktestRun{
		ID:         runKey,
		Symbol:     inputs.Symbol,
		StartDate:  inputs.StartDate,
		EndDate:    inputs.EndDate,
		Datasource: inputs.Datasource,
		Trigger:    trigger,
		Params:     paramsJSON,
	}
	if runErr != nil {
		run.Status = model.BacktestRunFailed
		run.ErrorMessage = runErr.Error()
		run.Summary = backtest.FailureMessage(runErr)
	} else {
		reportJSON, err := json.Marshal(report)
		if err != nil {
			s.log.ErrorContext(ctx, "Failed to encode report", logger.ErrorField(err), logger.StringField("run_key", runKey))
			return
		}
		run.Status = model.BacktestRunCompleted
		run.Report = reportJSON
		run.Summary = backtest.FormatSummary(report)
		run.DatasourceUsed = report.DatasourceUsed
		run.TotalReturn = report.Metrics.TotalReturn
		run.MaxDrawdown = report.Metrics.MaxDrawdown
		run.WinRate = report.Metrics.WinRate
		run.Trades = report.Metrics.Trades
	}

	if err := s.backtestRunRepo.Create(ctx, run); err != nil {
		s.log.ErrorContext(ctx, "Failed to persist backtest run", logger.ErrorField(err), logger.StringField("run_key", runKey))
	}
}

// GetRun returns a stored run with its report. Without storage it falls back
// to the report cache.
func (s *backtestService) GetRun(ctx context.Context, id string) (*dto.BacktestRunResponse, error) {
	if s.backtestRunRepo == nil {
		report, err := s.GetReport(ctx, id)
		if err != nil {
			return nil, err
		}
		return &dto.BacktestRunResponse{
			ID:             id,
			Symbol:         report.Inputs.Symbol,
			StartDate:      report.Inputs.StartDate,
			EndDate:        report.Inputs.EndDate,
			Status:         model.BacktestRunCompleted,
			DatasourceUsed: report.DatasourceUsed,
			Summary:        backtest.FormatSummary(report),
			Report:         report,
		}, nil
	}

	run, err := s.backtestRunRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toRunResponse(*run)
	if len(run.Report) > 0 {
		var report backtest.Report
		if err := json.Unmarshal(run.Report, &report); err != nil {
			return nil, fmt.Errorf("failed to decode stored report: %w", err)
		}
		resp.Report = &report
	}
	return &resp, nil
}

// ListRuns returns stored runs, newest first, without their reports.
func (s *backtestService) ListRuns(ctx context.Context, param model.GetBacktestRunParam) ([]dto.BacktestRunResponse, error) {
	if s.backtestRunRepo == nil {
		return nil, ErrStorageDisabled
	}
	runs, err := s.backtestRunRepo.Get(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("failed to list backtest runs: %w", err)
	}
	resp := make([]dto.BacktestRunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}
	return resp, nil
}

func toRunResponse(run model.BacktestRun) dto.BacktestRunResponse {
	return dto.BacktestRunResponse{
		ID:             run.ID,
		Symbol:         run.Symbol,
		StartDate:      run.StartDate,
		EndDate:        run.EndDate,
		Status:         run.Status,
		DatasourceUsed: run.DatasourceUsed,
		Trigger:        run.Trigger,
		Summary:        run.Summary,
		ErrorMessage:   run.ErrorMessage,
	}
}

// GetReport serves recent reports from the cache before falling back to storage.
func (s *backtestService) GetReport(ctx context.Context, id string) (*backtest.Report, error) {
	key := fmt.Sprintf(common.KEY_BACKTEST_REPORT, id)
	if report, ok := cache.Get[*backtest.Report](s.inmemoryCache, key); ok {
		return report, nil
	}
	if s.backtestRunRepo == nil {
		return nil, repository.ErrBacktestRunNotFound
	}

	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Report == nil {
		return nil, fmt.Errorf("run %s has no report: %s", id, run.ErrorMessage)
	}
	s.inmemoryCache.Set(key, run.Report, s.cfg.Cache.ReportExpDuration)
	return run.Report, nil
}

// RenderChart writes the equity curve of a run as an HTML page.
func (s *backtestService) RenderChart(ctx context.Context, id string, w io.Writer) error {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return err
	}
	return EquityChartFromReport(report).Render(w)
}

func EquityChartFromReport(report *backtest.Report) chart.EquityChart {
	dates := make([]string, len(report.EquityCurve))
	values := make([]float64, len(report.EquityCurve))
	for i, p := range report.EquityCurve {
		dates[i] = p.Date
		values[i] = p.Value
	}
	return chart.EquityChart{
		Title: fmt.Sprintf("%s 回测资金曲线", report.Inputs.Symbol),
		Subtitle: fmt.Sprintf("%s ~ %s | TP=%.2f%% SL=%.2f%% Hold=%d | %s",
			report.Inputs.StartDate, report.Inputs.EndDate,
			report.Config.TakeProfit*100, report.Config.StopLoss*100, report.Config.MaxHoldDays,
			report.DatasourceUsed),
		Dates:  dates,
		Values: values,
	}
}
