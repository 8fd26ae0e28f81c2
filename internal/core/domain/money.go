package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrAmountOutOfRange = errors.New("amount does not fit in minor units")

// MinorUnits converts a major-unit amount (10.5) to minor units (1050), rounding half up.
func MinorUnits(major decimal.Decimal) (int64, error) {
	minor := major.Shift(2).Round(0)
	if !minor.BigInt().IsInt64() {
		return 0, ErrAmountOutOfRange
	}
	return minor.IntPart(), nil
}
