package backtest

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

var tradeHeader = []string{"date", "action", "price", "quantity", "fund", "bank", "reason"}

// WriteTradesCSV writes the trade list with a header row.
func WriteTradesCSV(w io.Writer, trades []domain.TradeEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return errors.Wrap(err, "write header")
	}

	for _, t := range trades {
		bank := ""
		if t.Bank.Valid {
			bank = t.Bank.Decimal.StringFixed(2)
		}

		record := []string{
			t.Date.Format(domain.DateLayout),
			t.Action.String(),
			t.Price.String(),
			t.Quantity.StringFixed(4),
			t.Fund.StringFixed(2),
			bank,
			t.Reason,
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write trade")
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush trades")
}
