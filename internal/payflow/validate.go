package payflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/kaleidoswap/payflow/internal/asset"
	"github.com/kaleidoswap/payflow/internal/target"
)

// resolveAmount applies the amount precedence rules against a decoded
// target: an invoice-pinned amount wins and user input is ignored;
// otherwise the entered text is parsed in the asset's minor units. The
// resolved amount is checked against the spendable balance.
func resolveAmount(t target.Target, a asset.Asset, amountText string) (uint64, *ValidationError) {
	switch tt := t.(type) {
	case target.BitcoinAddress:
		if !a.IsBTC() {
			return 0, &ValidationError{
				Field:   "asset",
				Code:    CodeAssetMismatch,
				Message: fmt.Sprintf("%s cannot be sent to a plain bitcoin address", a.Ticker),
			}
		}
		return userAmount(amountText, a)

	case target.LightningAddress:
		if !a.IsBTC() {
			return 0, lightningNeedsBtc(a)
		}
		return userAmount(amountText, a)

	case target.LightningInvoice:
		if tt.Decoded == nil {
			return 0, decodePending()
		}
		decoded := tt.Decoded

		if decoded.AssetID != "" {
			if a.ID != decoded.AssetID {
				return 0, &ValidationError{
					Field:   "asset",
					Code:    CodeAssetMismatch,
					Message: fmt.Sprintf("invoice is denominated in asset %s", decoded.AssetID),
				}
			}
			if decoded.AssetAmount == 0 {
				return 0, &ValidationError{
					Field:   "input",
					Code:    CodeInvalidDestination,
					Message: "asset invoice carries no amount",
				}
			}
			return checkBalance(decoded.AssetAmount, a)
		}

		if !a.IsBTC() {
			return 0, lightningNeedsBtc(a)
		}
		if decoded.AmountMsat > 0 {
			return checkBalance(decoded.AmountSat(), a)
		}
		return userAmount(amountText, a)

	case target.RgbInvoice:
		if tt.Decoded == nil {
			return 0, decodePending()
		}
		decoded := tt.Decoded

		if a.IsBTC() {
			return 0, &ValidationError{
				Field:   "asset",
				Code:    CodeAssetMismatch,
				Message: "rgb invoices transfer RGB assets, select one",
			}
		}
		if decoded.AssetID != "" && decoded.AssetID != a.ID {
			return 0, &ValidationError{
				Field:   "asset",
				Code:    CodeAssetMismatch,
				Message: fmt.Sprintf("invoice requires asset %s", decoded.AssetID),
			}
		}

		if fixed, ok := decoded.Assignment.FixedAmount(); ok {
			return checkBalance(fixed, a)
		}
		if decoded.Assignment.UserAdjustable() {
			return userAmount(amountText, a)
		}
		// Non-fungible and rights assignments move exactly one unit and
		// leave no room for user input.
		if strings.TrimSpace(amountText) != "" {
			return 0, &ValidationError{
				Field:   "amount",
				Code:    CodeAmountNotApplicable,
				Message: "amount is determined by the invoice assignment",
			}
		}
		return checkBalance(1, a)

	case target.Invalid:
		return 0, &ValidationError{Field: "input", Code: CodeInvalidDestination, Message: tt.Reason}

	default:
		return 0, &ValidationError{Field: "input", Code: CodeInvalidDestination, Message: "enter a destination"}
	}
}

// checkExpiry refuses decoded invoices whose expiry has passed. Targets
// without an expiry always pass.
func checkExpiry(t target.Target, now time.Time) *ValidationError {
	expired := false
	switch tt := t.(type) {
	case target.LightningInvoice:
		expired = tt.Decoded != nil && tt.Decoded.Expired(now)
	case target.RgbInvoice:
		expired = tt.Decoded != nil && tt.Decoded.Expired(now)
	}
	if !expired {
		return nil
	}
	return &ValidationError{Field: "input", Code: CodeInvoiceExpired, Message: "invoice has expired"}
}

func userAmount(text string, a asset.Asset) (uint64, *ValidationError) {
	amount, err := asset.ParseAmount(text, a.Precision)
	if err != nil {
		return 0, amountValidationError(err)
	}
	return checkBalance(amount, a)
}

func checkBalance(amount uint64, a asset.Asset) (uint64, *ValidationError) {
	if amount > a.Spendable {
		return 0, &ValidationError{
			Field:     "amount",
			Code:      CodeInsufficientBalance,
			Message:   fmt.Sprintf("spendable balance is %s %s", asset.FormatAmount(a.Spendable, a.Precision), a.Ticker),
			Available: a.Spendable,
		}
	}
	return amount, nil
}

func lightningNeedsBtc(a asset.Asset) *ValidationError {
	return &ValidationError{
		Field:   "asset",
		Code:    CodeAssetMismatch,
		Message: fmt.Sprintf("lightning payments are denominated in BTC, not %s", a.Ticker),
	}
}

func decodePending() *ValidationError {
	return &ValidationError{
		Field:   "input",
		Code:    CodeDecodePending,
		Message: "invoice is still being decoded",
	}
}
