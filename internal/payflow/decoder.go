package payflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/kaleidoswap/payflow/internal/rgbnode"
	"github.com/kaleidoswap/payflow/internal/target"
)

// DecodeService is the slice of the node API the decoder needs.
type DecodeService interface {
	DecodeLnInvoice(ctx context.Context, invoice string) (*rgbnode.LnInvoice, error)
	DecodeRgbInvoice(ctx context.Context, invoice string) (*rgbnode.RgbInvoice, error)
}

// Decoder upgrades invoice targets with node-decoded data. Each call makes
// at most one node request; non-invoice targets pass through untouched.
type Decoder struct {
	node DecodeService
}

func NewDecoder(node DecodeService) *Decoder {
	return &Decoder{node: node}
}

func (d *Decoder) Decode(ctx context.Context, t target.Target) (target.Target, error) {
	switch tt := t.(type) {
	case target.LightningInvoice:
		if tt.Decoded != nil {
			return tt, nil
		}
		invoice, err := d.node.DecodeLnInvoice(ctx, tt.Raw)
		if err != nil {
			return nil, err
		}
		return target.LightningInvoice{Raw: tt.Raw, Decoded: lnInvoiceData(invoice)}, nil

	case target.RgbInvoice:
		if tt.Decoded != nil {
			return tt, nil
		}
		invoice, err := d.node.DecodeRgbInvoice(ctx, tt.Raw)
		if err != nil {
			return nil, err
		}
		data, err := rgbInvoiceData(invoice)
		if err != nil {
			return nil, err
		}
		return target.RgbInvoice{Raw: tt.Raw, Decoded: data}, nil

	default:
		return t, nil
	}
}

func lnInvoiceData(w *rgbnode.LnInvoice) *target.LnInvoiceData {
	return &target.LnInvoiceData{
		PaymentHash: w.PaymentHash,
		AmountMsat:  w.AmtMsat,
		AssetID:     w.AssetID,
		AssetAmount: w.AssetAmount,
		Description: w.Description,
		Payee:       w.PayeePubkey,
		Network:     w.Network,
		Timestamp:   w.Timestamp,
		ExpirySec:   w.ExpirySec,
	}
}

func rgbInvoiceData(w *rgbnode.RgbInvoice) (*target.RgbInvoiceData, error) {
	kind, err := assignmentKind(w.Assignment.Type)
	if err != nil {
		return nil, err
	}
	return &target.RgbInvoiceData{
		RecipientID: w.RecipientID,
		Schema:      target.AssetSchema(strings.ToUpper(w.AssetSchema)),
		AssetID:     w.AssetID,
		Assignment: target.Assignment{
			Kind:   kind,
			Amount: w.Assignment.Value,
			Token:  w.Assignment.Token,
		},
		Network:            w.Network,
		ExpirationUnix:     w.ExpirationTimestamp,
		TransportEndpoints: w.TransportEndpoints,
	}, nil
}

func assignmentKind(wireType string) (target.AssignmentKind, error) {
	switch wireType {
	case "Fungible":
		return target.AssignmentFungible, nil
	case "NonFungible":
		return target.AssignmentNonFungible, nil
	case "InflationRight":
		return target.AssignmentInflationRight, nil
	case "Any":
		return target.AssignmentAny, nil
	default:
		return "", fmt.Errorf("unsupported assignment type %q", wireType)
	}
}
