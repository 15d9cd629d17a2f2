package payflow

import (
	"context"
	"fmt"

	"github.com/kaleidoswap/payflow/internal/asset"
	"github.com/kaleidoswap/payflow/internal/rgbnode"
	"github.com/kaleidoswap/payflow/internal/target"
)

// DispatchService is the slice of the node API the dispatcher needs.
// PayLnInvoice, SendBtc and SendAsset mutate; WaitPayment only observes.
type DispatchService interface {
	PayLnInvoice(ctx context.Context, invoice string, amtMsat *uint64) (*rgbnode.Payment, error)
	SendBtc(ctx context.Context, address string, amountSat, feeRateSatPerVB uint64) (string, error)
	SendAsset(ctx context.Context, req rgbnode.SendAssetRequest) (string, error)
	WaitPayment(ctx context.Context, paymentHash string) (*rgbnode.Payment, error)
}

// Protocols a payment rides on.
const (
	ProtocolBitcoin   = "bitcoin"
	ProtocolLightning = "lightning"
	ProtocolRgb       = "rgb"
)

func protocolOf(t target.Target) string {
	switch t.(type) {
	case target.BitcoinAddress:
		return ProtocolBitcoin
	case target.LightningInvoice, target.LightningAddress:
		return ProtocolLightning
	case target.RgbInvoice:
		return ProtocolRgb
	default:
		return "invalid"
	}
}

// ConfirmedPayment is the immutable snapshot taken when a draft enters the
// sending state. Later edits to the draft cannot reach it.
type ConfirmedPayment struct {
	Asset   asset.Asset
	Target  target.Target
	Amount  uint64
	FeeRate uint64
}

func (p *ConfirmedPayment) Protocol() string {
	return protocolOf(p.Target)
}

// Receipt is the proof of a completed dispatch. Txid is set for on-chain
// and RGB sends, PaymentHash for lightning ones.
type Receipt struct {
	Protocol    string
	Txid        string
	PaymentHash string
	Settled     bool
}

// Dispatch executes the snapshot against the node with exactly one mutating
// call, routed by the target protocol. A lightning payment the node reports
// as pending is followed read-only until it settles or ctx expires.
func Dispatch(ctx context.Context, node DispatchService, payment *ConfirmedPayment) (*Receipt, error) {
	switch t := payment.Target.(type) {
	case target.LightningInvoice:
		if t.Decoded == nil {
			return nil, fmt.Errorf("cannot dispatch an undecoded invoice")
		}
		var amtMsat *uint64
		if !t.Decoded.HasFixedAmount() {
			msat := payment.Amount * 1000
			amtMsat = &msat
		}
		return payLightning(ctx, node, t.Raw, amtMsat)

	case target.LightningAddress:
		// Lightning addresses never pin an amount; the payer always chooses.
		msat := payment.Amount * 1000
		return payLightning(ctx, node, t.Identifier, &msat)

	case target.BitcoinAddress:
		txid, err := node.SendBtc(ctx, t.Address, payment.Amount, payment.FeeRate)
		if err != nil {
			return nil, err
		}
		return &Receipt{Protocol: ProtocolBitcoin, Txid: txid}, nil

	case target.RgbInvoice:
		if t.Decoded == nil {
			return nil, fmt.Errorf("cannot dispatch an undecoded invoice")
		}
		assetID := t.Decoded.AssetID
		if assetID == "" {
			assetID = payment.Asset.ID
		}
		txid, err := node.SendAsset(ctx, rgbnode.SendAssetRequest{
			AssetID:            assetID,
			RecipientID:        t.Decoded.RecipientID,
			Amount:             payment.Amount,
			TransportEndpoints: t.Decoded.TransportEndpoints,
			FeeRate:            payment.FeeRate,
		})
		if err != nil {
			return nil, err
		}
		return &Receipt{Protocol: ProtocolRgb, Txid: txid}, nil

	default:
		return nil, fmt.Errorf("cannot dispatch %s target", protocolOf(payment.Target))
	}
}

func payLightning(ctx context.Context, node DispatchService, invoice string, amtMsat *uint64) (*Receipt, error) {
	result, err := node.PayLnInvoice(ctx, invoice, amtMsat)
	if err != nil {
		return nil, err
	}

	if result.Status == rgbnode.PaymentStatusPending {
		hash := result.PaymentHash
		result, err = node.WaitPayment(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to track payment %s: %w", hash, err)
		}
	}
	if result.Status == rgbnode.PaymentStatusFailed {
		return nil, fmt.Errorf("lightning payment %s failed", result.PaymentHash)
	}

	return &Receipt{
		Protocol:    ProtocolLightning,
		PaymentHash: result.PaymentHash,
		Settled:     result.Status == rgbnode.PaymentStatusSucceeded,
	}, nil
}
