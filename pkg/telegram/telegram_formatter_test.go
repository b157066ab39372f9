package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBacktestDigest(t *testing.T) {
	tests := []struct {
		name     string
		digest   BacktestDigest
		contains []string
	}{
		{
			name: "gain",
			digest: BacktestDigest{
				Symbol: "600519", StartDate: "2024-01-01", EndDate: "2024-03-01", Datasource: "tushare",
				TotalReturn: 0.031, MaxDrawdown: 0.02, WinRate: 0.5, Trades: 4, StartCash: 100000, EndValue: 103100, RunID: "abc",
			},
			contains: []string{"📈 回测完成 600519", "+3.10%", "-2.00%", "50.00%", "交易 4 次", "100000 -> 103100", "🔖 abc"},
		},
		{
			name:     "loss",
			digest:   BacktestDigest{Symbol: "000001", TotalReturn: -0.005, StartCash: 100000, EndValue: 99500},
			contains: []string{"📉 回测完成 000001", "-0.50%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatBacktestDigest(tt.digest)
			for _, c := range tt.contains {
				assert.Contains(t, out, c)
			}
		})
	}
}
