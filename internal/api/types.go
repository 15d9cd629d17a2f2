package api

import (
	"time"

	"github.com/kaleidoswap/payflow/internal/asset"
	"github.com/kaleidoswap/payflow/internal/payflow"
	"github.com/kaleidoswap/payflow/internal/target"
)

type openDraftRequest struct {
	AssetID string `json:"asset_id"`
}

type inputRequest struct {
	Destination string `json:"destination"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type assetRequest struct {
	AssetID string `json:"asset_id" validate:"required"`
}

type feeRequest struct {
	Policy     string `json:"policy" validate:"required,oneof=slow normal fast custom"`
	CustomRate uint64 `json:"custom_rate" validate:"required_if=Policy custom"`
}

// errorBody is the single error shape every endpoint returns. Available is
// only set for insufficient_balance, in the asset's minor units.
type errorBody struct {
	Field     string  `json:"field,omitempty"`
	Code      string  `json:"code"`
	Message   string  `json:"message"`
	Available *uint64 `json:"available,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func validationBody(verr *payflow.ValidationError) errorBody {
	body := errorBody{
		Field:   verr.Field,
		Code:    verr.Code,
		Message: verr.Message,
	}
	if verr.Code == payflow.CodeInsufficientBalance {
		available := verr.Available
		body.Available = &available
	}
	return body
}

type assetView struct {
	ID        string `json:"id"`
	Ticker    string `json:"ticker"`
	Name      string `json:"name,omitempty"`
	Precision uint8  `json:"precision"`
	Spendable uint64 `json:"spendable"`
	Balance   string `json:"balance"`
}

func newAssetView(a asset.Asset) assetView {
	return assetView{
		ID:        a.ID,
		Ticker:    a.Ticker,
		Name:      a.Name,
		Precision: a.Precision,
		Spendable: a.Spendable,
		Balance:   asset.FormatAmount(a.Spendable, a.Precision),
	}
}

type assetsResponse struct {
	Assets      []assetView `json:"assets"`
	RefreshedAt time.Time   `json:"refreshed_at"`
}

// targetView flattens the target union for the UI. FixedAmount is set when
// the invoice pins the amount, in the paid asset's minor units.
type targetView struct {
	Kind          string  `json:"kind"`
	DecodePending bool    `json:"decode_pending"`
	Address       string  `json:"address,omitempty"`
	Invoice       string  `json:"invoice,omitempty"`
	Identifier    string  `json:"identifier,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	Description   string  `json:"description,omitempty"`
	AssetID       string  `json:"asset_id,omitempty"`
	FixedAmount   *uint64 `json:"fixed_amount,omitempty"`
	ExpiresAt     int64   `json:"expires_at,omitempty"`
}

func newTargetView(t target.Target) targetView {
	if t == nil {
		// Fresh draft, nothing entered yet.
		return targetView{Kind: target.KindInvalid.String()}
	}
	view := targetView{
		Kind:          t.Kind().String(),
		DecodePending: target.PendingDecode(t),
	}
	switch v := t.(type) {
	case target.BitcoinAddress:
		view.Address = v.Address
	case target.LightningInvoice:
		view.Invoice = v.Raw
		if v.Decoded != nil {
			view.Description = v.Decoded.Description
			view.AssetID = v.Decoded.AssetID
			if v.Decoded.HasFixedAmount() {
				amount := v.Decoded.AmountSat()
				if v.Decoded.AssetID != "" {
					amount = v.Decoded.AssetAmount
				}
				view.FixedAmount = &amount
			}
			if v.Decoded.Timestamp > 0 && v.Decoded.ExpirySec > 0 {
				view.ExpiresAt = v.Decoded.Timestamp + int64(v.Decoded.ExpirySec)
			}
		}
	case target.LightningAddress:
		view.Identifier = v.Identifier
	case target.RgbInvoice:
		view.Invoice = v.Raw
		if v.Decoded != nil {
			view.AssetID = v.Decoded.AssetID
			if amount, ok := v.Decoded.Assignment.FixedAmount(); ok {
				view.FixedAmount = &amount
			}
			view.ExpiresAt = v.Decoded.ExpirationUnix
		}
	case target.Invalid:
		view.Reason = v.Reason
	}
	return view
}

type feeView struct {
	Policy   string `json:"policy"`
	SatPerVB uint64 `json:"sat_per_vb"`
}

type receiptView struct {
	Protocol    string `json:"protocol"`
	Txid        string `json:"txid,omitempty"`
	PaymentHash string `json:"payment_hash,omitempty"`
	Settled     bool   `json:"settled"`
}

type paymentView struct {
	Protocol string `json:"protocol"`
	AssetID  string `json:"asset_id"`
	Amount   uint64 `json:"amount"`
	FeeRate  uint64 `json:"fee_rate"`
}

type dispatchErrorView struct {
	Protocol string `json:"protocol"`
	Message  string `json:"message"`
}

type draftView struct {
	ID             string             `json:"id"`
	State          string             `json:"state"`
	Asset          assetView          `json:"asset"`
	Target         targetView         `json:"target"`
	Amount         string             `json:"amount"`
	Fee            feeView            `json:"fee"`
	Valid          bool               `json:"valid"`
	ResolvedAmount uint64             `json:"resolved_amount,omitempty"`
	Validation     *errorBody         `json:"validation_error,omitempty"`
	Payment        *paymentView       `json:"payment,omitempty"`
	Receipt        *receiptView       `json:"receipt,omitempty"`
	DispatchError  *dispatchErrorView `json:"dispatch_error,omitempty"`
}

func newDraftView(status payflow.Status) draftView {
	view := draftView{
		ID:     status.ID.String(),
		State:  string(status.State),
		Asset:  newAssetView(status.Asset),
		Target: newTargetView(status.Target),
		Amount: status.AmountText,
		Fee: feeView{
			Policy:   string(status.Fee.Policy),
			SatPerVB: status.Fee.SatPerVB(),
		},
		Valid: status.Valid,
	}
	if status.Valid {
		view.ResolvedAmount = status.ResolvedAmount
	}
	if status.ValidationErr != nil {
		body := validationBody(status.ValidationErr)
		view.Validation = &body
	}
	if status.Snapshot != nil {
		view.Payment = &paymentView{
			Protocol: status.Snapshot.Protocol(),
			AssetID:  status.Snapshot.Asset.ID,
			Amount:   status.Snapshot.Amount,
			FeeRate:  status.Snapshot.FeeRate,
		}
	}
	if status.Receipt != nil {
		view.Receipt = &receiptView{
			Protocol:    status.Receipt.Protocol,
			Txid:        status.Receipt.Txid,
			PaymentHash: status.Receipt.PaymentHash,
			Settled:     status.Receipt.Settled,
		}
	}
	if status.DispatchErr != nil {
		view.DispatchError = &dispatchErrorView{
			Protocol: status.DispatchErr.Protocol,
			Message:  status.DispatchErr.Err.Error(),
		}
	}
	return view
}
