package types

import "github.com/shopspring/decimal"

var centsPerDollar = decimal.NewFromInt(100)

// DollarsFromCents converts integer minor units into a 2dp decimal amount.
func DollarsFromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(centsPerDollar).Round(2)
}

// CentsFromDollars converts a decimal dollar amount into integer minor units,
// rounding half away from zero at the second decimal place.
func CentsFromDollars(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(centsPerDollar).IntPart()
}
