package telegram

import (
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/middleware"
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gopkg.in/telebot.v3"
)

func (t *TelegramBotHandler) WithContext(handler func(ctx context.Context, c telebot.Context) error) func(c telebot.Context) error {
	timeout := t.cfg.Backtest.RunTimeout + time.Minute
	return middleware.WithContext(t.ctx, timeout, handler)
}

func (t *TelegramBotHandler) RegisterHandlers() {
	t.echo.POST("/api/v1/telegram/webhook", func(c echo.Context) error {
		var update telebot.Update
		if err := c.Bind(&update); err != nil {
			t.log.ErrorContext(t.ctx, "Cannot bind JSON", logger.ErrorField(err))
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
		}
		t.bot.ProcessUpdate(update)
		return c.JSON(http.StatusOK, dto.NewBaseResponse(http.StatusOK, "ok", nil))
	})

	t.bot.Handle("/start", t.WithContext(t.handleStart), t.IsOnConversationMiddleware())
	t.bot.Handle("/help", t.WithContext(t.handleHelp), t.IsOnConversationMiddleware())
	t.bot.Handle("/cancel", t.WithContext(t.handleCancel))
	t.bot.Handle("/backtest", t.WithContext(t.handleBacktest), t.IsOnConversationMiddleware())
	t.bot.Handle("/scheduler", t.WithContext(t.handleScheduler), t.IsOnConversationMiddleware())
	t.bot.Handle(telebot.OnText, t.WithContext(t.handleConversation))

	t.bot.Handle(&btnDeleteMessage, t.WithContext(t.handleBtnDeleteMessage))
	t.bot.Handle(&btnDetailJob, t.WithContext(t.handleBtnDetailJob))
	t.bot.Handle(&btnActionRunJob, t.WithContext(t.handleBtnActionRunJob))
	t.bot.Handle(&btnActionBackToJobList, t.WithContext(t.handleBtnActionBackToJobList))
}
