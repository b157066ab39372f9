package cmd

import (
	"ashare-backtest/internal/delivery/http"
	"ashare-backtest/internal/delivery/telegram"
	"context"
	"errors"
	"log"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the HTTP API, Feishu callback and Telegram bot",
	Run:   Start,
}

func Start(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}

	_, services, err := appDep.NewServices()
	if err != nil {
		log.Fatalf("Failed to create services: %v", err)
	}

	httpHandler := http.NewHttpAPIHandler(appDep.echo, appDep.log, services)

	var telegramHandler *telegram.TelegramBotHandler
	if appDep.telegramBot != nil {
		telegramHandler = telegram.NewTelegramBotHandler(
			ctx,
			appDep.cfg,
			appDep.log,
			appDep.telegramBot,
			appDep.telegram,
			appDep.echo,
			appDep.cache,
			services,
		)
		telegramHandler.RegisterHandlers()
		go telegramHandler.Start()
	} else {
		appDep.log.Info("Telegram bot token is empty, bot disabled")
	}

	apiServer := NewHTTPServer(appDep, httpHandler)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, httpNet.ErrServerClosed) {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	if telegramHandler != nil {
		telegramHandler.Stop()
	}

	if err := apiServer.Stop(); err != nil {
		log.Printf("Failed to stop HTTP server: %v", err)
	}

	if err := appDep.Close(); err != nil {
		log.Fatalf("Failed to close app dependency: %v", err)
	}
}
