// Package money rounds and formats currency amounts at presentation boundaries.
// Costing runs on float64 at full precision; only responses and persisted snapshots are rounded.
package money

import (
	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Format renders an amount with two decimals followed by the currency code.
func Format(v float64, currency string) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// Sum adds amounts in decimal arithmetic, so 0.1+0.2 stays 0.3.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Float64()
	return f
}
