package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a currency amount to its smallest unit (cents),
// rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a currency amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
