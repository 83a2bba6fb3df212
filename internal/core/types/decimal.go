// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Round2 rounds to 2 decimal places (cents).
// All financial intermediates are rounded with this before downstream use,
// so stored totals always match what a client-side recomputation shows.
func Round2(m Money) Money {
	return m.Round(2)
}

// Clamp limits m to the closed interval [lo, hi].
func Clamp(m, lo, hi Money) Money {
	if m.LessThan(lo) {
		return lo
	}
	if m.GreaterThan(hi) {
		return hi
	}
	return m
}

// Percent computes base * rate / 100, rounded to 2 decimals.
func Percent(base, rate Money) Money {
	return Round2(base.Mul(rate).Div(decimal.NewFromInt(100)))
}

var hundred = decimal.NewFromInt(100)

// Hundred returns the constant 100 as Money.
func Hundred() Money {
	return hundred
}
