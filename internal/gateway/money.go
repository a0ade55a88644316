package gateway

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Providers with hosted checkouts express money as decimal strings in major
// units ("25.50"), while the canonical model keeps integer minor units. The
// conversions below are fixed-point: two decimal places, rounding half away
// from zero, never float arithmetic.

// FormatMinorUnits renders an integer minor-unit amount as a two-decimal
// major-unit string.
func FormatMinorUnits(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}

// ParseMajorUnits converts a decimal major-unit string to integer minor
// units. Values with more than two decimal places are rounded half away from
// zero to two places first.
func ParseMajorUnits(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return d.Round(2).Shift(2).IntPart(), nil
}
