package telegram

import (
	"context"

	"gopkg.in/telebot.v3"
)

func (t *TelegramBotHandler) handleStart(ctx context.Context, c telebot.Context) error {
	message := `👋 *欢迎使用 A股 TP/SL 回测机器人* 🤖
给定一只股票和区间，我会按"止盈 / 止损 / 最长持有天数"规则做单票回测，并回报收益、回撤与胜率。

🔧 可用命令：

📈 /backtest - 交互式发起一次回测
🔄 /scheduler - 查看定时任务并手动运行

💡 帮助：
🆘 /help - 查看使用说明
❌ /cancel - 取消当前对话

🚀 试试发送 /backtest 开始第一次回测！`
	_, err := t.telegram.Send(ctx, c, message, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	return err
}

func (t *TelegramBotHandler) handleHelp(ctx context.Context, c telebot.Context) error {
	message := `❓ *使用说明*

/backtest 会依次询问：
1. 股票代码（6 位数字，例如 600519）
2. 开始日期（YYYY-MM-DD）
3. 结束日期（YYYY-MM-DD，需晚于开始日期）
4. 止盈比例（例如 0.03）
5. 止损比例（负数，例如 -0.05）
6. 最长持有天数（1~200）

第 4~6 步回复 *-* 使用默认值。

📌 规则：空仓时在下一根 K 线开盘买入；止损优先于止盈；持有满 N 根 K 线按收盘价卖出。
回测结果仅供参考，不构成投资建议。`
	_, err := t.telegram.Send(ctx, c, message, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	return err
}
