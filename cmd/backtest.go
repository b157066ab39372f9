package cmd

import (
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/service"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
)

type backtestOptions struct {
	symbol      string
	startDate   string
	endDate     string
	takeProfit  float64
	stopLoss    float64
	maxHoldDays int
	cash        float64
	runNote     string
	runID       string
	datasource  string
	reportPath  string
	tradesPath  string
	chartPath   string
	notify      bool
}

var backtestOpts backtestOptions

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run one backtest and write report.json",
	RunE:  RunBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&backtestOpts.symbol, "symbol", "", "6 digit A-share code, e.g. 600519")
	f.StringVar(&backtestOpts.startDate, "start_date", "", "YYYY-MM-DD")
	f.StringVar(&backtestOpts.endDate, "end_date", "", "YYYY-MM-DD")
	f.Float64Var(&backtestOpts.takeProfit, "take_profit", backtest.DefaultTakeProfit, "take profit ratio, > 0")
	f.Float64Var(&backtestOpts.stopLoss, "stop_loss", backtest.DefaultStopLoss, "stop loss ratio, < 0")
	f.IntVar(&backtestOpts.maxHoldDays, "max_hold_days", backtest.DefaultMaxHoldDays, "exit after this many bars")
	f.Float64Var(&backtestOpts.cash, "cash", backtest.DefaultStartingCash, "starting cash")
	f.StringVar(&backtestOpts.runNote, "run_note", "", "free text shown in the summary")
	f.StringVar(&backtestOpts.runID, "run_id", "", "CI run id shown in the summary")
	f.StringVar(&backtestOpts.datasource, "datasource", "", "auto | tushare | akshare | eastmoney | yahoo")
	f.StringVar(&backtestOpts.reportPath, "report_path", "report.json", "where to write the JSON report")
	f.StringVar(&backtestOpts.tradesPath, "trades_path", "", "optional trades CSV output")
	f.StringVar(&backtestOpts.chartPath, "chart_path", "", "optional equity chart HTML output")
	f.BoolVar(&backtestOpts.notify, "notify", true, "send the summary or failure to the configured channels")
	_ = backtestCmd.MarkFlagRequired("symbol")
	_ = backtestCmd.MarkFlagRequired("start_date")
	_ = backtestCmd.MarkFlagRequired("end_date")
}

// request keeps optional parameters nil unless set on the command line so
// configured defaults apply.
func (o backtestOptions) request(cmd *cobra.Command) *dto.BacktestRequest {
	req := &dto.BacktestRequest{
		Symbol:     o.symbol,
		StartDate:  o.startDate,
		EndDate:    o.endDate,
		Datasource: o.datasource,
		RunNote:    o.runNote,
		RunID:      o.runID,
		Trigger:    dto.TriggerCLI,
	}
	flags := cmd.Flags()
	if flags.Changed("take_profit") {
		req.TakeProfit = &o.takeProfit
	}
	if flags.Changed("stop_loss") {
		req.StopLoss = &o.stopLoss
	}
	if flags.Changed("max_hold_days") {
		req.MaxHoldDays = &o.maxHoldDays
	}
	if flags.Changed("cash") {
		req.Cash = &o.cash
	}
	return req
}

func RunBacktest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		return fmt.Errorf("failed to create app dependency: %w", err)
	}
	defer appDep.Close()

	_, services, err := appDep.NewServices()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, appDep.cfg.Backtest.RunTimeout)
	defer cancel()

	resp, err := services.BacktestService.RunBacktest(runCtx, backtestOpts.request(cmd))
	if err != nil {
		if backtestOpts.notify {
			_ = services.NotificationService.NotifyResult(ctx, nil, err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), backtest.FailureMessage(err))
		return err
	}

	if err := writeArtifacts(resp.Report, backtestOpts); err != nil {
		return err
	}

	if backtestOpts.notify {
		if err := services.NotificationService.Notify(ctx, resp.Summary); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "notification failed: %v\n", err)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Summary)
	return nil
}

func writeArtifacts(report *backtest.Report, o backtestOptions) error {
	if err := writeFile(o.reportPath, report.WriteJSON); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if o.tradesPath != "" {
		err := writeFile(o.tradesPath, func(w io.Writer) error {
			return backtest.WriteTradesCSV(w, report.Trades)
		})
		if err != nil {
			return fmt.Errorf("failed to write trades: %w", err)
		}
	}
	if o.chartPath != "" {
		chart := service.EquityChartFromReport(report)
		if err := writeFile(o.chartPath, chart.Render); err != nil {
			return fmt.Errorf("failed to write chart: %w", err)
		}
	}
	return nil
}

func writeFile(path string, write func(w io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
