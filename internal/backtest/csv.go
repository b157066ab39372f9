package backtest

import (
	"encoding/csv"
	"io"
	"strconv"
)

var tradeCSVHeader = []string{
	"entry_date", "entry_price", "dt", "price", "size", "value",
	"pnl", "pnlcomm", "commission", "exit_reason", "hold_bars",
}

// WriteTradesCSV writes the ledger with one row per completed trade.
func WriteTradesCSV(w io.Writer, trades []Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeCSVHeader); err != nil {
		return err
	}

	for _, t := range trades {
		row := []string{
			t.EntryDate,
			formatFloat(t.EntryPrice),
			t.ExitDate,
			formatFloat(t.ExitPrice),
			strconv.Itoa(t.Size),
			formatFloat(t.NotionalValue),
			formatFloat(t.PnLGross),
			formatFloat(t.PnLNet),
			formatFloat(t.CommissionPaid),
			string(t.ExitReason),
			strconv.Itoa(t.HoldBars),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
