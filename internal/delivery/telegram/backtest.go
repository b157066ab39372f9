package telegram

import (
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/cache"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/telegram"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/telebot.v3"
)

func (t *TelegramBotHandler) handleBacktest(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	t.inmemoryCache.Set(fmt.Sprintf(UserStateKey, userID), StateWaitingBacktestSymbol, t.cfg.Cache.TelegramStateExpDuration)
	t.inmemoryCache.Set(fmt.Sprintf(UserDataKey, userID), &dto.RequestBacktestData{ChatID: c.Chat().ID}, t.cfg.Cache.TelegramStateExpDuration)

	_, err := t.telegram.Send(ctx, c, backtestPrompt(StateWaitingBacktestSymbol, t.defaultParameters()), telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) handleBacktestConversation(ctx context.Context, c telebot.Context, state int) error {
	userID := c.Sender().ID
	data, ok := cache.Get[*dto.RequestBacktestData](t.inmemoryCache, fmt.Sprintf(UserDataKey, userID))
	if !ok {
		t.ResetUserState(userID)
		_, err := t.telegram.Send(ctx, c, commonErrorInternalBacktest)
		return err
	}

	next, err := applyBacktestAnswer(state, c.Text(), data)
	if err != nil {
		_, sendErr := t.telegram.Send(ctx, c, "⚠️ "+err.Error())
		return sendErr
	}

	if next == StateIdle {
		t.ResetUserState(userID)
		return t.runBacktest(ctx, c, data)
	}

	t.inmemoryCache.Set(fmt.Sprintf(UserStateKey, userID), next, t.cfg.Cache.TelegramStateExpDuration)
	t.inmemoryCache.Set(fmt.Sprintf(UserDataKey, userID), data, t.cfg.Cache.TelegramStateExpDuration)
	_, err = t.telegram.Send(ctx, c, backtestPrompt(next, t.defaultParameters()), telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) runBacktest(ctx context.Context, c telebot.Context, data *dto.RequestBacktestData) error {
	loading, err := t.telegram.Send(ctx, c, fmt.Sprintf("⏳ 正在回测 %s（%s ~ %s），请稍候...", data.Symbol, data.StartDate, data.EndDate))
	if err != nil {
		t.log.WarnContext(ctx, "Failed to send loading message", logger.ErrorField(err))
	}

	runCtx, cancel := context.WithTimeout(ctx, t.cfg.Backtest.RunTimeout)
	defer cancel()

	text := ""
	resp, err := t.service.BacktestService.RunBacktest(runCtx, data.ToBacktestRequest())
	if err != nil {
		t.log.WarnContext(ctx, "Telegram backtest failed", logger.ErrorField(err), logger.StringField("symbol", data.Symbol))
		text = backtest.FailureMessage(err)
	} else {
		text = telegram.FormatBacktestDigest(DigestFromReport(resp.Report, resp.RunID))
	}

	if loading != nil {
		_, err = t.telegram.Edit(ctx, c, loading, text)
		return err
	}
	_, err = t.telegram.Send(ctx, c, text)
	return err
}

func (t *TelegramBotHandler) defaultParameters() backtest.Parameters {
	return backtest.Parameters{
		TakeProfit:  t.cfg.Backtest.TakeProfit,
		StopLoss:    t.cfg.Backtest.StopLoss,
		MaxHoldDays: t.cfg.Backtest.MaxHoldDays,
	}
}

func DigestFromReport(report *backtest.Report, runID string) telegram.BacktestDigest {
	return telegram.BacktestDigest{
		Symbol:      report.Inputs.Symbol,
		StartDate:   report.Inputs.StartDate,
		EndDate:     report.Inputs.EndDate,
		Datasource:  report.DatasourceUsed,
		TotalReturn: report.Metrics.TotalReturn,
		MaxDrawdown: report.Metrics.MaxDrawdown,
		WinRate:     report.Metrics.WinRate,
		Trades:      report.Metrics.Trades,
		StartCash:   report.Metrics.StartCash,
		EndValue:    report.Metrics.EndValue,
		RunID:       runID,
	}
}

func backtestPrompt(state int, defaults backtest.Parameters) string {
	switch state {
	case StateWaitingBacktestSymbol:
		return "📈 请输入 6 位股票代码 <i>（例如 600519）</i>："
	case StateWaitingBacktestStartDate:
		return "📅 开始日期？<i>（YYYY-MM-DD）</i>"
	case StateWaitingBacktestEndDate:
		return "📅 结束日期？<i>（YYYY-MM-DD，需晚于开始日期）</i>"
	case StateWaitingBacktestTakeProfit:
		return fmt.Sprintf("🎯 止盈比例？<i>（例如 0.03，回复 %s 使用默认 %s）</i>", keepDefault, strconv.FormatFloat(defaults.TakeProfit, 'f', -1, 64))
	case StateWaitingBacktestStopLoss:
		return fmt.Sprintf("🛑 止损比例？<i>（负数，例如 -0.05，回复 %s 使用默认 %s）</i>", keepDefault, strconv.FormatFloat(defaults.StopLoss, 'f', -1, 64))
	case StateWaitingBacktestMaxHoldDays:
		return fmt.Sprintf("⏳ 最长持有天数？<i>（1~200，回复 %s 使用默认 %d）</i>", keepDefault, defaults.MaxHoldDays)
	default:
		return ""
	}
}

// applyBacktestAnswer stores one answer on data and returns the next state.
// StateIdle means every step is answered. On error the step is asked again.
func applyBacktestAnswer(state int, text string, data *dto.RequestBacktestData) (int, error) {
	text = strings.TrimSpace(text)
	keep := text == "" || text == keepDefault

	switch state {
	case StateWaitingBacktestSymbol:
		if !backtest.IsValidSymbol(text) {
			return state, errors.New("股票代码必须为 6 位数字，例如 600519")
		}
		data.Symbol = text
		return StateWaitingBacktestStartDate, nil

	case StateWaitingBacktestStartDate:
		if _, err := time.Parse(backtest.DateLayout, text); err != nil {
			return state, errors.New("日期格式不正确，请使用 YYYY-MM-DD")
		}
		data.StartDate = text
		return StateWaitingBacktestEndDate, nil

	case StateWaitingBacktestEndDate:
		if _, _, err := backtest.ParseDateRange(data.StartDate, text); err != nil {
			return state, fmt.Errorf("结束日期无效：%v", err)
		}
		data.EndDate = text
		return StateWaitingBacktestTakeProfit, nil

	case StateWaitingBacktestTakeProfit:
		if !keep {
			v, err := strconv.ParseFloat(text, 64)
			if err != nil || v <= 0 {
				return state, errors.New("止盈比例必须为大于 0 的数字，例如 0.03")
			}
			data.TakeProfit = &v
		}
		return StateWaitingBacktestStopLoss, nil

	case StateWaitingBacktestStopLoss:
		if !keep {
			v, err := strconv.ParseFloat(text, 64)
			if err != nil || v >= 0 {
				return state, errors.New("止损比例必须为小于 0 的数字，例如 -0.05")
			}
			data.StopLoss = &v
		}
		return StateWaitingBacktestMaxHoldDays, nil

	case StateWaitingBacktestMaxHoldDays:
		if !keep {
			v, err := strconv.Atoi(text)
			if err != nil || v < 1 || v > backtest.MaxHoldDaysLimit {
				return state, fmt.Errorf("最长持有天数必须为 1~%d 的整数", backtest.MaxHoldDaysLimit)
			}
			data.MaxHoldDays = &v
		}
		return StateIdle, nil
	}
	return StateIdle, fmt.Errorf("unknown conversation state %d", state)
}
