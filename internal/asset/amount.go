package asset

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrAmountEmpty       = errors.New("amount is empty")
	ErrAmountNotNumeric  = errors.New("amount is not a number")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrTooManyDecimals   = errors.New("amount has more fractional digits than the asset precision")
	ErrAmountTooLarge    = errors.New("amount does not fit in 64 bits")
)

// ParseAmount converts a user-entered decimal string into minor units for an
// asset with the given precision. The string must be strictly positive and
// carry at most `precision` fractional digits; digits beyond the precision
// are rejected rather than silently rounded.
func ParseAmount(text string, precision uint8) (uint64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, ErrAmountEmpty
	}

	dec, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrAmountNotNumeric
	}
	if dec.Sign() <= 0 {
		return 0, ErrAmountNotPositive
	}
	if dec.Exponent() < -int32(precision) {
		return 0, ErrTooManyDecimals
	}

	minor := dec.Shift(int32(precision))
	if !minor.IsInteger() {
		return 0, ErrTooManyDecimals
	}

	units := minor.BigInt()
	if !units.IsUint64() {
		return 0, ErrAmountTooLarge
	}
	return units.Uint64(), nil
}

// FormatAmount renders minor units as a display decimal string, truncating
// trailing zeros. It is the exact inverse of ParseAmount for canonical
// inputs: FormatAmount(50000, 8) == "0.0005".
func FormatAmount(minorUnits uint64, precision uint8) string {
	units := new(big.Int).SetUint64(minorUnits)
	return decimal.NewFromBigInt(units, -int32(precision)).String()
}
