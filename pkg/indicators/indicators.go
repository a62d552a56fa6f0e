// Package indicators provides rolling moving averages (SMA, WMA) over decimal series.
package indicators

import (
	"fmt"
	"slices"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

// resultPrecision is the number of decimal places kept from the float computation.
const resultPrecision = 10

// CalculateSMA calculates the Simple Moving Average for the given period.
// The result holds one value per complete window: result[i] averages values[i : i+period].
func CalculateSMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if err := checkLength(values, period); err != nil {
		return nil, err
	}

	return perWindow(values, period, false, func(in <-chan float64) <-chan float64 {
		return trend.NewSmaWithPeriod[float64](period).Compute(in)
	}), nil
}

// CalculateWMA calculates the linearly Weighted Moving Average for the given period.
// Inside each window the most recent value weighs period, the oldest weighs 1, and the
// sum is divided by period*(period+1)/2.
func CalculateWMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if err := checkLength(values, period); err != nil {
		return nil, err
	}

	// cinar weighs the first value of a window heaviest, so windows go in newest first
	return perWindow(values, period, true, func(in <-chan float64) <-chan float64 {
		return trend.NewWmaWith[float64](period).Compute(in)
	}), nil
}

// perWindow runs compute on every complete window separately, so no value carries
// rounding from a running sum over earlier windows.
func perWindow(values []decimal.Decimal, period int, newestFirst bool, compute func(<-chan float64) <-chan float64) []decimal.Decimal {
	floats := decimalsToFloat64(values)
	result := make([]decimal.Decimal, 0, len(values)-period+1)

	window := make([]float64, period)
	for i := 0; i+period <= len(floats); i++ {
		copy(window, floats[i:i+period])
		if newestFirst {
			slices.Reverse(window)
		}

		out := helper.ChanToSlice(compute(helper.SliceToChan(window)))
		if len(out) == 0 {
			continue
		}
		result = append(result, decimal.NewFromFloat(out[len(out)-1]).Round(resultPrecision))
	}

	return result
}

// WMAWeights returns the normalized WMA weights, oldest first.
func WMAWeights(period int) []float64 {
	if period < 1 {
		return nil
	}

	denominator := float64(period*(period+1)) / 2
	weights := make([]float64, period)
	for i := range weights {
		weights[i] = float64(i+1) / denominator
	}

	return weights
}

func checkLength(values []decimal.Decimal, period int) error {
	if period < 1 {
		return fmt.Errorf("period must be at least 1, got %d", period)
	}
	if len(values) < period {
		return fmt.Errorf("not enough data points: need %d, got %d", period, len(values))
	}
	return nil
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}
