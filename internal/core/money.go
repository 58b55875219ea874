// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing the currency strings found in
// card statement exports and formatting amounts back for display.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseCurrency converts a statement amount such as "$1,200.00" to a decimal.
//
// Currency symbols, thousands separators and spaces are stripped first.
// An empty or whitespace-only string returns ErrMissingAmount. Anything that
// is not a non-negative number after stripping returns ErrInvalidAmount;
// callers treat both the same way.
//
// Examples:
//
//	ParseCurrency("$1,200.00") -> 1200.00, nil
//	ParseCurrency(" 45.5 ")    -> 45.5, nil
//	ParseCurrency("   ")       -> 0, ErrMissingAmount
//	ParseCurrency("n/a")       -> 0, ErrInvalidAmount
func ParseCurrency(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, ErrMissingAmount
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return decimal.Zero, ErrMissingAmount
	}
	// Exponent notation is accepted by decimal but never appears in exports.
	if strings.ContainsAny(cleaned, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders d with two decimals and no currency symbol.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatDollars renders d as "$1,234.56" for terminal output.
func FormatDollars(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
