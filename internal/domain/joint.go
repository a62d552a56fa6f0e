package domain

import (
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// JointRecord is a single date on which both instruments traded.
type JointRecord struct {
	Date time.Time
	A    PriceBar
	B    PriceBar
}

// Align inner-joins two series on calendar date and returns the joint rows in ascending
// date order. Dates present in only one series are dropped, nothing is filled.
func Align(a, b Series) ([]JointRecord, error) {
	indexA, err := a.byDate()
	if err != nil {
		return nil, err
	}
	indexB, err := b.byDate()
	if err != nil {
		return nil, err
	}

	records := make([]JointRecord, 0, min(len(indexA), len(indexB)))
	for day, barA := range indexA {
		barB, ok := indexB[day]
		if !ok {
			continue
		}
		records = append(records, JointRecord{Date: day, A: barA, B: barB})
	}

	slices.SortFunc(records, func(x, y JointRecord) int {
		return x.Date.Compare(y.Date)
	})

	return records, nil
}

func (s Series) byDate() (map[time.Time]PriceBar, error) {
	index := make(map[time.Time]PriceBar, len(s.Bars))
	for _, bar := range s.Bars {
		if bar.Date.IsZero() {
			return nil, &MissingColumnError{Source: s.Symbol, Column: "date"}
		}
		// a non-positive open only appears when the column was empty or absent
		if !bar.Open.IsPositive() {
			return nil, &MissingColumnError{Source: s.Symbol, Column: "open"}
		}

		day := Day(bar.Date)
		if _, dup := index[day]; dup {
			return nil, errors.Wrapf(ErrDuplicateDate, "%s %s", s.Symbol, day.Format(DateLayout))
		}
		index[day] = bar
	}

	return index, nil
}

// OpensA returns the opening prices of instrument A in row order.
func OpensA(records []JointRecord) []decimal.Decimal {
	opens := make([]decimal.Decimal, len(records))
	for i, r := range records {
		opens[i] = r.A.Open
	}
	return opens
}

// OpensB returns the opening prices of instrument B in row order.
func OpensB(records []JointRecord) []decimal.Decimal {
	opens := make([]decimal.Decimal, len(records))
	for i, r := range records {
		opens[i] = r.B.Open
	}
	return opens
}
