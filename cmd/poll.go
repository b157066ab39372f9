package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var pollLimit int

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run pending backtest tasks from the Feishu Bitable queue once",
	RunE:  RunPoll,
}

func init() {
	pollCmd.Flags().IntVar(&pollLimit, "limit", 0, "max tasks to pick up, 0 uses backtest.task_limit")
}

func RunPoll(cmd *cobra.Command, args []string) error {
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

	result, err := services.TaskQueueService.PollAndRun(ctx, pollLimit)
	if err != nil {
		return fmt.Errorf("failed to poll task queue: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
