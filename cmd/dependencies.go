package cmd

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/repository"
	"ashare-backtest/internal/service"
	"ashare-backtest/pkg/cache"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/middleware"
	"ashare-backtest/pkg/postgres"
	"ashare-backtest/pkg/telegram"
	"context"
	"fmt"
	"time"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap/zapcore"
	"gopkg.in/telebot.v3"
	"gorm.io/gorm"
)

type AppDependency struct {
	db          *postgres.DB
	cfg         *config.Config
	log         *logger.Logger
	validator   *goValidator.Validate
	echo        *echo.Echo
	cache       cache.Cache
	telegram    *telegram.TelegramRateLimiter
	telegramBot *telebot.Bot
}

// NewAppDependency wires the process wide dependencies. The database, the
// Telegram bot and the alert sink are optional and only created when
// configured.
func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, err
	}
	if cfg.Feishu.WebhookURL != "" {
		minLevel, err := zapcore.ParseLevel(cfg.Log.AlertMinLevel)
		if err != nil {
			minLevel = zapcore.ErrorLevel
		}
		log = log.WithAlert(logger.NewWebhookAlertSender(cfg.Feishu.WebhookURL, cfg.Feishu.Timeout), minLevel)
	}

	dep := &AppDependency{
		cfg:       cfg,
		log:       log,
		validator: dto.NewValidator(),
		cache:     cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval),
	}

	if cfg.DB.Enabled {
		db, err := postgres.NewDB(ctx, cfg.DB, log)
		if err != nil {
			log.Error("Failed to connect to database", logger.ErrorField(err))
			return nil, err
		}
		dep.db = db
	} else {
		log.Info("Database is disabled, runs will not be stored")
	}

	if cfg.Telegram.BotToken != "" {
		pref := telebot.Settings{
			Token:  cfg.Telegram.BotToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				log.Error("Telegram bot error", logger.ErrorField(err))
			},
		}
		bot, err := telebot.NewBot(pref)
		if err != nil {
			log.Error("Failed to create telegram bot", logger.ErrorField(err))
			return nil, err
		}
		dep.telegramBot = bot
		dep.telegram = telegram.NewTelegramRateLimiter(&cfg.Telegram, log, bot)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.NewRateLimiterMiddleware(middleware.RateLimitConfig{
		PerSecond:    cfg.API.RateLimit,
		Burst:        cfg.API.RateLimitBurst,
		ExpiresIn:    3 * time.Minute,
		SkipPrefixes: []string{"/feishu/", "/api/v1/telegram/"},
	}))
	dep.echo = e

	return dep, nil
}

func (d *AppDependency) gormDB() *gorm.DB {
	if d.db == nil {
		return nil
	}
	return d.db.DB
}

// NewServices builds the repositories and services on top of the dependencies.
func (d *AppDependency) NewServices() (*repository.Repository, *service.Service, error) {
	repo, err := repository.NewRepository(d.cfg, d.cache, d.gormDB(), d.log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create repository: %w", err)
	}
	return repo, service.NewService(d.cfg, d.log, d.validator, repo, d.cache, d.telegram), nil
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	defer func() {
		_ = d.log.Sync()
	}()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
