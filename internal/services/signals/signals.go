// Package signals attaches lagged moving averages to aligned price rows.
package signals

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/pkg/indicators"
)

// Row is a joint record with the indicators known at its open.
// SMA and WMA are computed over the window rows strictly before Date and are
// absent until that many rows exist.
type Row struct {
	domain.JointRecord
	SMA decimal.NullDecimal
	WMA decimal.NullDecimal
}

// Ready reports whether both indicators are available.
func (r Row) Ready() bool {
	return r.SMA.Valid && r.WMA.Valid
}

// Compute returns one Row per record with SMA of A's open and WMA of B's open,
// both shifted by one row so that no row sees its own prices.
func Compute(records []domain.JointRecord, window int) ([]Row, error) {
	if window < 1 {
		return nil, fmt.Errorf("window must be at least 1, got %d", window)
	}

	rows := make([]Row, len(records))
	for i := range records {
		rows[i].JointRecord = records[i]
	}

	// the last row never feeds a window that belongs to an existing row
	history := records
	if len(history) > 0 {
		history = history[:len(history)-1]
	}
	if len(history) < window {
		return rows, nil
	}

	sma, err := indicators.CalculateSMA(domain.OpensA(history), window)
	if err != nil {
		return nil, errors.Wrap(err, "calculate SMA")
	}
	wma, err := indicators.CalculateWMA(domain.OpensB(history), window)
	if err != nil {
		return nil, errors.Wrap(err, "calculate WMA")
	}

	// sma[k] covers rows k..k+window-1 and is known at the open of row k+window
	for k := range sma {
		rows[k+window].SMA = decimal.NewNullDecimal(sma[k])
	}
	for k := range wma {
		rows[k+window].WMA = decimal.NewNullDecimal(wma[k])
	}

	return rows, nil
}

// Lagged returns the row lag positions before i, if it exists.
func Lagged(rows []Row, i, lag int) (Row, bool) {
	j := i - lag
	if j < 0 || j >= len(rows) {
		return Row{}, false
	}
	return rows[j], true
}

// Latest returns the last row.
func Latest(rows []Row) (Row, bool) {
	if len(rows) == 0 {
		return Row{}, false
	}
	return rows[len(rows)-1], true
}
