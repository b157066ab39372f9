package telegram

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/service"
	"ashare-backtest/pkg/cache"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/telegram"
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"gopkg.in/telebot.v3"
)

type TelegramBotHandler struct {
	ctx           context.Context
	cfg           *config.Config
	bot           *telebot.Bot
	log           *logger.Logger
	telegram      *telegram.TelegramRateLimiter
	echo          *echo.Echo
	inmemoryCache cache.Cache
	service       *service.Service
}

func NewTelegramBotHandler(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
	bot *telebot.Bot,
	telegram *telegram.TelegramRateLimiter,
	echo *echo.Echo,
	inmemoryCache cache.Cache,
	service *service.Service,
) *TelegramBotHandler {
	return &TelegramBotHandler{
		ctx:           ctx,
		cfg:           cfg,
		log:           log,
		bot:           bot,
		telegram:      telegram,
		echo:          echo,
		inmemoryCache: inmemoryCache,
		service:       service,
	}
}

// Start either installs the webhook or blocks on long polling when no webhook
// URL is configured. RegisterHandlers must have been called before.
func (t *TelegramBotHandler) Start() {
	t.log.Info("Starting Telegram bot...")
	t.telegram.StartCleanupExpired(t.ctx)

	if t.cfg.Telegram.WebhookURL == "" {
		t.log.Info("Telegram webhook is disabled, using long polling")
		t.bot.Start()
		return
	}

	t.log.Info("Setting webhook URL", logger.StringField("webhook_url", t.cfg.Telegram.WebhookURL))
	if err := t.bot.SetWebhook(&telebot.Webhook{
		Endpoint: &telebot.WebhookEndpoint{
			PublicURL: t.cfg.Telegram.WebhookURL,
		},
	}); err != nil {
		t.log.Error("Failed to set telegram webhook", logger.ErrorField(err))
	}
}

func (t *TelegramBotHandler) Stop() {
	t.log.Info("Stopping Telegram bot...")
	defer t.telegram.StopCleanupExpired()

	if t.cfg.Telegram.WebhookURL != "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopDone := make(chan struct{})
	go func() {
		t.bot.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.log.Info("Telegram bot stopped successfully")
	case <-ctx.Done():
		t.log.Warn("Timeout while stopping bot, forcing shutdown")
	}
}
