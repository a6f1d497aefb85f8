// Package money holds the rounding rules for currency figures surfaced to
// callers. Internal arithmetic stays in float64 at full precision; values are
// rounded only when they leave the service.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds half-to-even to two decimal places.
func Round2(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return decimal.NewFromFloat(v).RoundBank(2).InexactFloat64()
}

// Round1 rounds half-to-even to one decimal place. Used for percentages.
func Round1(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return decimal.NewFromFloat(v).RoundBank(1).InexactFloat64()
}

// Floor truncates toward negative infinity to a whole currency unit.
func Floor(v float64) float64 {
	return decimal.NewFromFloat(v).Floor().InexactFloat64()
}

// FloorCents truncates toward negative infinity to two decimal places.
func FloorCents(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return decimal.NewFromFloat(v).RoundFloor(2).InexactFloat64()
}

// Format renders an amount with exactly two decimals.
func Format(v float64) string {
	return decimal.NewFromFloat(v).RoundBank(2).StringFixed(2)
}

// Percent renders a ratio as a percentage with one decimal, e.g. 0.5 -> "50.0%".
func Percent(ratio float64) string {
	if math.IsInf(ratio, 1) {
		return "inf%"
	}
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).RoundBank(1).StringFixed(1) + "%"
}

// FloorShare returns floor(v * num / den) computed in decimal, so exact
// products such as 1000 * 0.3 do not land one unit low.
func FloorShare(v float64, num, den int64) float64 {
	if den == 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return decimal.NewFromFloat(v).Mul(decimal.NewFromInt(num)).Div(decimal.NewFromInt(den)).Floor().InexactFloat64()
}
