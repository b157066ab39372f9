package service

import (
	"ashare-backtest/internal/backtest"
	"strconv"
)

func cardInput(name, label, placeholder, defaultValue string, required bool) map[string]interface{} {
	input := map[string]interface{}{
		"tag":      "input",
		"name":     name,
		"required": required,
		"label":    map[string]interface{}{"tag": "plain_text", "content": label},
		"placeholder": map[string]interface{}{
			"tag":     "plain_text",
			"content": placeholder,
		},
	}
	if defaultValue != "" {
		input["default_value"] = defaultValue
	}
	return input
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BuildBacktestCard renders the interactive card whose form submission is
// handled by the card callback endpoint.
func BuildBacktestCard(defaults backtest.Parameters) map[string]interface{} {
	elements := []interface{}{
		cardInput("symbol", "股票代码", "6 位数字，例如 600519", "", true),
		cardInput("start_date", "开始日期", "YYYY-MM-DD", "", true),
		cardInput("end_date", "结束日期", "YYYY-MM-DD", "", true),
		cardInput("take_profit", "止盈", "例如 0.03", formatFloat(defaults.TakeProfit), false),
		cardInput("stop_loss", "止损", "例如 -0.05", formatFloat(defaults.StopLoss), false),
		cardInput("max_hold_days", "最长持有天数", "1~200", strconv.Itoa(defaults.MaxHoldDays), false),
		cardInput("cash", "初始资金", "例如 100000", formatFloat(defaults.StartingCash), false),
		map[string]interface{}{
			"tag":         "button",
			"name":        "submit",
			"type":        "primary",
			"action_type": "form_submit",
			"text":        map[string]interface{}{"tag": "plain_text", "content": "开始回测"},
		},
	}

	return map[string]interface{}{
		"schema": "2.0",
		"header": map[string]interface{}{
			"title":    map[string]interface{}{"tag": "plain_text", "content": "A股 TP/SL 回测"},
			"template": "blue",
		},
		"body": map[string]interface{}{
			"elements": []interface{}{
				map[string]interface{}{
					"tag":      "form",
					"name":     "backtest_form",
					"elements": elements,
				},
			},
		},
	}
}
