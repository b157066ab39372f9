package repository

import (
	"ashare-backtest/internal/backtest"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MarketDataProvider loads unadjusted daily bars for a 6 digit A-share code.
// An empty slice with a nil error means the upstream had no rows.
type MarketDataProvider interface {
	Name() string
	GetDailyBars(ctx context.Context, symbol, startDate, endDate string) ([]backtest.Bar, error)
}

// providerToggle is implemented by providers that need credentials.
type providerToggle interface {
	Enabled() bool
}

func isShanghai(symbol string) bool {
	return strings.HasPrefix(symbol, "6") || strings.HasPrefix(symbol, "9") || strings.HasPrefix(symbol, "5")
}

func TushareCode(symbol string) string {
	if isShanghai(symbol) {
		return symbol + ".SH"
	}
	return symbol + ".SZ"
}

func EastmoneySecID(symbol string) string {
	if isShanghai(symbol) {
		return "1." + symbol
	}
	return "0." + symbol
}

func YahooTicker(symbol string) string {
	if isShanghai(symbol) {
		return symbol + ".SS"
	}
	return symbol + ".SZ"
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// sortAndClip orders bars by date and keeps those inside [start, end].
func sortAndClip(bars []backtest.Bar, startDate, endDate string) []backtest.Bar {
	start, errS := time.Parse(backtest.DateLayout, startDate)
	end, errE := time.Parse(backtest.DateLayout, endDate)

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
	if errS != nil || errE != nil {
		return bars
	}

	out := bars[:0]
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func parseBarDate(layout, value string) (time.Time, error) {
	t, err := time.Parse(layout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid trade date %q: %w", value, err)
	}
	return t, nil
}
