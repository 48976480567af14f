package common

import "github.com/shopspring/decimal"

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Round rounds v half away from zero to the given decimal places. Rounding
// goes through decimal so 2.675 becomes 2.68, not 2.67.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// PercentChange is (current-previous)/previous*100, or 0 when previous <= 0.
func PercentChange(previous, current float64) float64 {
	if previous <= 0 {
		return 0
	}
	return (current - previous) / previous * 100
}
