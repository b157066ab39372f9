package telegram

import (
	"ashare-backtest/pkg/cache"
	"ashare-backtest/pkg/logger"
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/telebot.v3"
)

func (t *TelegramBotHandler) handleConversation(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID
	state, ok := cache.Get[int](t.inmemoryCache, fmt.Sprintf(UserStateKey, userID))
	if !ok || state == StateIdle {
		return t.handleTextMessage(ctx, c)
	}

	switch {
	case state >= StateWaitingBacktestSymbol && state <= StateWaitingBacktestMaxHoldDays:
		return t.handleBacktestConversation(ctx, c, state)
	default:
		t.ResetUserState(userID)
		_, err := t.telegram.Send(ctx, c, "当前没有进行中的对话，发送 /help 查看可用命令。")
		return err
	}
}

func (t *TelegramBotHandler) handleTextMessage(ctx context.Context, c telebot.Context) error {
	if !strings.HasPrefix(c.Text(), "/") {
		_, err := t.telegram.Send(ctx, c, "无法识别的指令，发送 /help 查看可用命令。")
		return err
	}
	return nil
}

func (t *TelegramBotHandler) ResetUserState(userID int64) {
	t.inmemoryCache.Delete(fmt.Sprintf(UserStateKey, userID))
	t.inmemoryCache.Delete(fmt.Sprintf(UserDataKey, userID))
}

// IsOnConversationMiddleware drops a pending conversation when the user
// switches to another command.
func (t *TelegramBotHandler) IsOnConversationMiddleware() telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if state, ok := cache.Get[int](t.inmemoryCache, fmt.Sprintf(UserStateKey, c.Sender().ID)); ok && state != StateIdle {
				t.ResetUserState(c.Sender().ID)
			}
			return next(c)
		}
	}
}

func (t *TelegramBotHandler) handleCancel(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID
	defer t.ResetUserState(userID)

	if state, ok := cache.Get[int](t.inmemoryCache, fmt.Sprintf(UserStateKey, userID)); ok && state != StateIdle {
		_, err := t.telegram.Send(ctx, c, "✅ 对话已取消。")
		return err
	}
	_, err := t.telegram.Send(ctx, c, "当前没有进行中的对话。")
	return err
}

func (t *TelegramBotHandler) handleBtnDeleteMessage(ctx context.Context, c telebot.Context) error {
	if _, err := t.telegram.Edit(ctx, c, c.Message(), "✅ 消息即将删除...."); err != nil {
		t.log.WarnContext(ctx, "Failed to edit message before delete", logger.ErrorField(err))
	}
	time.Sleep(1 * time.Second)
	return t.telegram.Delete(ctx, c, c.Message())
}
