package models

import "github.com/shopspring/decimal"

// minor units per currency unit is 10^minorUnitExponent
const minorUnitExponent = 2

// MinorToDecimal converts stored minor units into a currency amount for presentation.
func MinorToDecimal(amount int64) decimal.Decimal {
	return decimal.New(amount, -minorUnitExponent)
}

// DecimalToMinor converts a presented amount back to minor units, rounding half up.
func DecimalToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(minorUnitExponent).Round(0).IntPart()
}

// divRoundHalfUp returns num/den rounded half up. num >= 0, den > 0.
func divRoundHalfUp(num int64, den int64) int64 {
	return decimal.NewFromInt(num).DivRound(decimal.NewFromInt(den), 0).IntPart()
}

// mulDivRoundHalfUp returns a*b/den rounded half up, without overflowing on a*b.
// a, b >= 0, den > 0.
func mulDivRoundHalfUp(a int64, b int64, den int64) int64 {
	return decimal.NewFromInt(a).Mul(decimal.NewFromInt(b)).DivRound(decimal.NewFromInt(den), 0).IntPart()
}
