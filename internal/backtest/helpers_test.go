package backtest

import "time"

func day(i int) time.Time {
	return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func mkBar(i int, open, high, low, close float64) Bar {
	return Bar{Date: day(i), Open: open, High: high, Low: low, Close: close, Volume: 1000}
}

func flatBars(n int, price float64) []Bar {
	bars := make([]Bar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, mkBar(i, price, price+1, price-1, price))
	}
	return bars
}

// stopLossScenario enters at 100 on bar 1 and hits the 95 stop on bar 3.
func stopLossScenario() []Bar {
	return []Bar{
		mkBar(0, 100, 101, 99, 100),
		mkBar(1, 100, 101, 99, 100.5),
		mkBar(2, 100.5, 101, 97, 98),
		mkBar(3, 98, 103.5, 94.9, 96),
	}
}
