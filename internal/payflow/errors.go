package payflow

import (
	"errors"
	"fmt"

	"github.com/kaleidoswap/payflow/internal/asset"
)

// Validation codes, surfaced inline next to the offending field.
const (
	CodeNoAmount            = "no_amount"
	CodeNonNumeric          = "non_numeric"
	CodeTooManyDecimals     = "too_many_decimals"
	CodeNotPositive         = "not_positive"
	CodeAmountTooLarge      = "amount_too_large"
	CodeAmountFixed         = "amount_fixed_by_invoice"
	CodeAmountNotApplicable = "amount_not_applicable"
	CodeInsufficientBalance = "insufficient_balance"
	CodeInvalidDestination  = "invalid_destination"
	CodeDecodePending       = "decode_pending"
	CodeAssetMismatch       = "asset_mismatch"
	CodeAssetNotHeld        = "asset_not_held"
	CodeInvoiceExpired      = "invoice_expired"
	CodeInvalidFee          = "invalid_fee"
)

// ValidationError pins a rejected draft field. Available is only set for
// insufficient_balance, in the asset's minor units.
type ValidationError struct {
	Field     string
	Code      string
	Message   string
	Available uint64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StateError reports a flow event arriving in a state that does not accept
// it.
type StateError struct {
	Event string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while flow is in state %q", e.Event, e.State)
}

// DispatchError wraps the node failure that moved a flow to Failed.
type DispatchError struct {
	Protocol string
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s dispatch failed: %v", e.Protocol, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// amountValidationError maps amount parsing failures onto inline codes.
func amountValidationError(err error) *ValidationError {
	code := CodeNonNumeric
	switch {
	case errors.Is(err, asset.ErrAmountEmpty):
		code = CodeNoAmount
	case errors.Is(err, asset.ErrAmountNotNumeric):
		code = CodeNonNumeric
	case errors.Is(err, asset.ErrAmountNotPositive):
		code = CodeNotPositive
	case errors.Is(err, asset.ErrTooManyDecimals):
		code = CodeTooManyDecimals
	case errors.Is(err, asset.ErrAmountTooLarge):
		code = CodeAmountTooLarge
	}
	return &ValidationError{Field: "amount", Code: code, Message: err.Error()}
}
