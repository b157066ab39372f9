package service

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/repository"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/telegram"
	"context"
	"errors"
	"fmt"
	"strconv"
)

type NotificationService interface {
	// Notify fans the text out to every configured channel.
	Notify(ctx context.Context, text string) error
	NotifyResult(ctx context.Context, report *backtest.Report, runErr error) error
	SendBacktestCard(ctx context.Context, chatID string) (string, error)
}

// telegramSender is the part of pkg/telegram used for push notifications.
type telegramSender interface {
	SendMessageChat(ctx context.Context, chatID int64, message string, opts ...interface{}) error
}

type notificationService struct {
	cfg             *config.Config
	log             *logger.Logger
	feishuMessage   repository.FeishuMessageRepository
	systemParamRepo repository.SystemParamRepository
	telegram        telegramSender
}

func NewNotificationService(
	cfg *config.Config,
	log *logger.Logger,
	feishuMessage repository.FeishuMessageRepository,
	systemParamRepo repository.SystemParamRepository,
	tg *telegram.TelegramRateLimiter,
) NotificationService {
	s := &notificationService{
		cfg:             cfg,
		log:             log,
		feishuMessage:   feishuMessage,
		systemParamRepo: systemParamRepo,
	}
	if tg != nil {
		s.telegram = tg
	}
	return s
}

func (s *notificationService) Notify(ctx context.Context, text string) error {
	var errs []error

	if err := s.feishuMessage.SendWebhookText(ctx, text); err != nil {
		s.log.ErrorContext(ctx, "Failed to send feishu notification", logger.ErrorField(err))
		errs = append(errs, err)
	}

	if s.telegram != nil && s.cfg.Telegram.ChatID != "" {
		chatID, err := strconv.ParseInt(s.cfg.Telegram.ChatID, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid telegram chat id %q: %w", s.cfg.Telegram.ChatID, err))
		} else if err := s.telegram.SendMessageChat(ctx, chatID, text); err != nil {
			s.log.ErrorContext(ctx, "Failed to send telegram notification", logger.ErrorField(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *notificationService) NotifyResult(ctx context.Context, report *backtest.Report, runErr error) error {
	if runErr != nil {
		return s.Notify(ctx, backtest.FailureMessage(runErr))
	}
	return s.Notify(ctx, backtest.FormatSummary(report))
}

func (s *notificationService) SendBacktestCard(ctx context.Context, chatID string) (string, error) {
	defaults, err := s.systemParamRepo.GetDefaultBacktestParams(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to load default backtest params for card", logger.ErrorField(err))
	}
	return s.feishuMessage.SendCard(ctx, chatID, BuildBacktestCard(defaults))
}
