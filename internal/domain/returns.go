package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const daysPerYear = 365.25

// AnnualizedReturn returns the compound annual growth from start to end, in percent:
// ((end/start)^(1/years) - 1) * 100 with years = calendar days / 365.25.
func AnnualizedReturn(start, end decimal.Decimal, from, to time.Time) (float64, error) {
	if !start.IsPositive() {
		return 0, ErrNonPositiveCapital
	}

	years := YearsBetween(from, to)
	if years <= 0 {
		return 0, ErrNonPositivePeriod
	}

	growth := end.Div(start).InexactFloat64()
	return (math.Pow(growth, 1/years) - 1) * 100, nil
}

// TotalReturn returns (end/start - 1) * 100.
func TotalReturn(start, end decimal.Decimal) (float64, error) {
	if !start.IsPositive() {
		return 0, ErrNonPositiveCapital
	}

	return end.Div(start).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).InexactFloat64(), nil
}

// YearsBetween counts calendar days between two dates in 365.25-day years.
func YearsBetween(from, to time.Time) float64 {
	days := Day(to).Sub(Day(from)).Hours() / 24
	return days / daysPerYear
}
