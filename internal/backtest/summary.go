package backtest

import (
	"fmt"
	"strings"
)

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// FormatSummary renders the chat message sent after a successful run.
func FormatSummary(r *Report) string {
	in := r.Inputs
	m := r.Metrics

	var b strings.Builder
	b.WriteString("回测完成\n")
	fmt.Fprintf(&b, "标的：%s\n", in.Symbol)
	fmt.Fprintf(&b, "区间：%s ~ %s\n", in.StartDate, in.EndDate)
	fmt.Fprintf(&b, "参数：TP=%s SL=%s Hold=%d Cash=%.0f\n",
		pct(r.Config.TakeProfit), pct(r.Config.StopLoss), r.Config.MaxHoldDays, r.Config.StartingCash)
	fmt.Fprintf(&b, "数据源：%s\n", r.DatasourceUsed)
	fmt.Fprintf(&b, "结果：总收益=%s 最大回撤=%s 胜率=%s 交易次数=%d 资金：%.0f -> %.0f",
		pct(m.TotalReturn), pct(m.MaxDrawdown), pct(m.WinRate), m.Trades, m.StartCash, m.EndValue)
	b.WriteString(runMeta(in.RunID, in.RunNote, r.RunURL))
	return b.String()
}

func runMeta(runID, note, url string) string {
	parts := make([]string, 0, 3)
	if runID != "" {
		parts = append(parts, "RunID="+runID)
	}
	if note != "" {
		parts = append(parts, "Note="+note)
	}
	if url != "" {
		parts = append(parts, "URL="+url)
	}
	if len(parts) == 0 {
		return ""
	}
	return " | " + strings.Join(parts, " ")
}

// FailureMessage renders the chat message sent when a run fails.
func FailureMessage(err error) string {
	return fmt.Sprintf("回测失败：%s: %v", ErrorType(err), err)
}
