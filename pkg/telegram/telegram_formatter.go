package telegram

import (
	"fmt"
	"strings"

	"ashare-backtest/pkg/utils"
)

// BacktestDigest is the subset of a report rendered into a chat reply.
type BacktestDigest struct {
	Symbol      string
	StartDate   string
	EndDate     string
	Datasource  string
	TotalReturn float64
	MaxDrawdown float64
	WinRate     float64
	Trades      int
	StartCash   float64
	EndValue    float64
	RunID       string
}

func FormatBacktestDigest(d BacktestDigest) string {
	var b strings.Builder

	emoji := "📈"
	if d.TotalReturn < 0 {
		emoji = "📉"
	}
	b.WriteString(fmt.Sprintf("%s 回测完成 %s\n", emoji, d.Symbol))
	b.WriteString(fmt.Sprintf("🗓 %s ~ %s\n", d.StartDate, d.EndDate))
	b.WriteString(fmt.Sprintf("💰 总收益 %s | 最大回撤 %s\n", utils.FormatPercentage(d.TotalReturn), utils.FormatPercentage(-d.MaxDrawdown)))
	b.WriteString(fmt.Sprintf("🎯 胜率 %.2f%% | 交易 %d 次\n", d.WinRate*100, d.Trades))
	b.WriteString(fmt.Sprintf("🏦 %.0f -> %.0f\n", d.StartCash, d.EndValue))
	b.WriteString(fmt.Sprintf("📡 数据源 %s", d.Datasource))
	if d.RunID != "" {
		b.WriteString(fmt.Sprintf("\n🔖 %s", d.RunID))
	}
	return b.String()
}
