// Package money holds the decimal helpers shared by every finance component.
//
// Percent-valued configuration (tax_rate_pct, commission values) is stored as
// whole numbers (30 means 30%), while instructor_earnings.commission_rate is a
// fraction (0.30). PercentToFraction and FractionToPercent are the only places
// that cross between the two.
package money

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places kept for currency amounts.
const Places = 2

var (
	// Epsilon is the reconciliation tolerance in currency units.
	Epsilon = decimal.RequireFromString("0.01")

	hundred = decimal.NewFromInt(100)
)

// Round rounds a currency amount to Places, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// PercentToFraction converts a whole-number percentage into a fraction.
func PercentToFraction(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(hundred)
}

// FractionToPercent converts a fraction into a whole-number percentage.
func FractionToPercent(fraction decimal.Decimal) decimal.Decimal {
	return fraction.Mul(hundred)
}

// ApplyPercent returns amount × pct/100, unrounded.
func ApplyPercent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(PercentToFraction(pct))
}

// WithinEpsilon reports whether |a − b| <= eps.
func WithinEpsilon(a, b, eps decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(eps)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// FromAny converts a JSON-decoded value (number or numeric string) into a
// decimal. ok is false for nil or non-numeric values.
func FromAny(v any) (decimal.Decimal, bool) {
	switch value := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return value, true
	case float64:
		return decimal.NewFromFloat(value), true
	case float32:
		return decimal.NewFromFloat32(value), true
	case int:
		return decimal.NewFromInt(int64(value)), true
	case int64:
		return decimal.NewFromInt(value), true
	case json.Number:
		parsed, err := decimal.NewFromString(value.String())
		if err != nil {
			return decimal.Zero, false
		}
		return parsed, true
	case string:
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, false
		}
		return parsed, true
	default:
		return decimal.Zero, false
	}
}
