// Package target models the destination of an outgoing payment as a closed
// set of protocol variants. Classify turns raw pasted text into a variant;
// the decoder upgrades invoice variants with node-decoded data.
package target

import "time"

// Kind discriminates the target variants.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBitcoinAddress
	KindLightningInvoice
	KindLightningAddress
	KindRgbInvoice
)

func (k Kind) String() string {
	switch k {
	case KindBitcoinAddress:
		return "bitcoin_address"
	case KindLightningInvoice:
		return "lightning_invoice"
	case KindLightningAddress:
		return "lightning_address"
	case KindRgbInvoice:
		return "rgb_invoice"
	default:
		return "invalid"
	}
}

// Target is a sealed union: the only implementations live in this package,
// so switches over the concrete types are exhaustive.
type Target interface {
	Kind() Kind
	isTarget()
}

// BitcoinAddress is an on-chain destination. The address is kept exactly as
// entered; it has already passed network and checksum validation.
type BitcoinAddress struct {
	Address string
}

func (BitcoinAddress) Kind() Kind { return KindBitcoinAddress }
func (BitcoinAddress) isTarget()  {}

// LightningInvoice is a BOLT11 payment request. Decoded is nil until the
// node has decoded the raw string.
type LightningInvoice struct {
	Raw     string
	Decoded *LnInvoiceData
}

func (LightningInvoice) Kind() Kind { return KindLightningInvoice }
func (LightningInvoice) isTarget()  {}

// LightningAddress is a reusable user@domain identifier resolved to an
// invoice by the node at pay time.
type LightningAddress struct {
	Identifier string
}

func (LightningAddress) Kind() Kind { return KindLightningAddress }
func (LightningAddress) isTarget()  {}

// RgbInvoice is an RGB transfer invoice. Decoded is nil until the node has
// decoded the raw string.
type RgbInvoice struct {
	Raw     string
	Decoded *RgbInvoiceData
}

func (RgbInvoice) Kind() Kind { return KindRgbInvoice }
func (RgbInvoice) isTarget()  {}

// Invalid is the rejection variant; Reason is safe to show to the user.
type Invalid struct {
	Reason string
}

func (Invalid) Kind() Kind { return KindInvalid }
func (Invalid) isTarget()  {}

// PendingDecode reports whether t still needs a node decode before it can be
// reviewed.
func PendingDecode(t Target) bool {
	switch tt := t.(type) {
	case LightningInvoice:
		return tt.Decoded == nil
	case RgbInvoice:
		return tt.Decoded == nil
	default:
		return false
	}
}

// LnInvoiceData is the decoded content of a BOLT11 invoice. AmountMsat of
// zero means the payer chooses the amount. A non-empty AssetID marks an
// RGB-denominated invoice whose amount is AssetAmount in the asset's minor
// units.
type LnInvoiceData struct {
	PaymentHash string
	AmountMsat  uint64
	AssetID     string
	AssetAmount uint64
	Description string
	Payee       string
	Network     string
	Timestamp   int64
	ExpirySec   uint64
}

// HasFixedAmount reports whether the invoice pins the amount, either in
// millisatoshi or in RGB asset units.
func (d *LnInvoiceData) HasFixedAmount() bool {
	if d.AssetID != "" {
		return d.AssetAmount > 0
	}
	return d.AmountMsat > 0
}

// AmountSat converts the invoice amount to satoshi, truncating sub-satoshi
// precision. 150000 msat resolves to 150 sats.
func (d *LnInvoiceData) AmountSat() uint64 {
	return d.AmountMsat / 1000
}

// Expired reports whether the invoice expiry has passed at the given time.
func (d *LnInvoiceData) Expired(now time.Time) bool {
	if d.Timestamp == 0 || d.ExpirySec == 0 {
		return false
	}
	expiry := time.Unix(d.Timestamp, 0).Add(time.Duration(d.ExpirySec) * time.Second)
	return now.After(expiry)
}

// AssetSchema is the RGB contract schema of the invoiced asset.
type AssetSchema string

const (
	SchemaNia AssetSchema = "NIA"
	SchemaUda AssetSchema = "UDA"
	SchemaCfa AssetSchema = "CFA"
)

// AssignmentKind tags what an RGB invoice asks to be assigned.
type AssignmentKind string

const (
	// AssignmentFungible carries a fixed quantity in asset minor units.
	AssignmentFungible AssignmentKind = "fungible"
	// AssignmentNonFungible references a unique token.
	AssignmentNonFungible AssignmentKind = "non_fungible"
	// AssignmentInflationRight asks for an issuance rights grant.
	AssignmentInflationRight AssignmentKind = "inflation_right"
	// AssignmentAny leaves the quantity to the payer.
	AssignmentAny AssignmentKind = "any"
)

// Assignment is the requested allocation of an RGB invoice. Amount is only
// meaningful for fungible assignments; Token only for non-fungible ones.
type Assignment struct {
	Kind   AssignmentKind
	Amount uint64
	Token  string
}

// FixedAmount returns the invoice-pinned quantity, if the assignment fixes
// one.
func (a Assignment) FixedAmount() (uint64, bool) {
	if a.Kind == AssignmentFungible && a.Amount > 0 {
		return a.Amount, true
	}
	return 0, false
}

// UserAdjustable reports whether the payer may choose the quantity. Only
// unconstrained assignments accept user-entered amounts.
func (a Assignment) UserAdjustable() bool {
	return a.Kind == AssignmentAny
}

// RgbInvoiceData is the decoded content of an RGB invoice. An empty AssetID
// means the invoice accepts any asset and the sender's selection decides.
type RgbInvoiceData struct {
	RecipientID        string
	Schema             AssetSchema
	AssetID            string
	Assignment         Assignment
	Network            string
	ExpirationUnix     int64
	TransportEndpoints []string
}

// Expired reports whether the invoice expiration has passed at the given
// time. Zero means the invoice never expires.
func (d *RgbInvoiceData) Expired(now time.Time) bool {
	if d.ExpirationUnix == 0 {
		return false
	}
	return now.After(time.Unix(d.ExpirationUnix, 0))
}
