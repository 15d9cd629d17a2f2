package rgbnode

// Wire types for the node daemon's JSON API. Field names follow the
// daemon's snake_case convention.

// LnInvoice is the decoded form of a BOLT11 invoice as returned by the
// node. AmtMsat of zero means the invoice does not pin an amount. A
// non-empty AssetID marks an RGB-denominated invoice.
type LnInvoice struct {
	AmtMsat     uint64 `json:"amt_msat"`
	ExpirySec   uint64 `json:"expiry_sec"`
	Timestamp   int64  `json:"timestamp"`
	AssetID     string `json:"asset_id"`
	AssetAmount uint64 `json:"asset_amount"`
	PaymentHash string `json:"payment_hash"`
	PayeePubkey string `json:"payee_pubkey"`
	Network     string `json:"network"`
	Description string `json:"description"`
}

// Assignment is the allocation requested by an RGB invoice. Type is one of
// "Fungible", "NonFungible", "InflationRight" or "Any"; Value carries the
// quantity for fungible assignments and Token the reference for
// non-fungible ones.
type Assignment struct {
	Type  string `json:"type"`
	Value uint64 `json:"value,omitempty"`
	Token string `json:"token,omitempty"`
}

// RgbInvoice is the decoded form of an RGB transfer invoice.
type RgbInvoice struct {
	RecipientID         string     `json:"recipient_id"`
	AssetSchema         string     `json:"asset_schema"`
	AssetID             string     `json:"asset_id"`
	Assignment          Assignment `json:"assignment"`
	Network             string     `json:"network"`
	ExpirationTimestamp int64      `json:"expiration_timestamp"`
	TransportEndpoints  []string   `json:"transport_endpoints"`
}

// Payment statuses reported by the node.
const (
	PaymentStatusPending   = "Pending"
	PaymentStatusSucceeded = "Succeeded"
	PaymentStatusFailed    = "Failed"
)

// Payment is a lightning payment as tracked by the node.
type Payment struct {
	PaymentHash string `json:"payment_hash"`
	Status      string `json:"status"`
	AmtMsat     uint64 `json:"amt_msat"`
	Inbound     bool   `json:"inbound"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Balance is the settled/future/spendable split the node reports per asset
// and for the on-chain wallet.
type Balance struct {
	Settled   uint64 `json:"settled"`
	Future    uint64 `json:"future"`
	Spendable uint64 `json:"spendable"`
}

// Asset is an RGB asset known to the node wallet.
type Asset struct {
	AssetID   string  `json:"asset_id"`
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	Precision uint8   `json:"precision"`
	Balance   Balance `json:"balance"`
	Schema    string  `json:"-"`
}

// BtcBalance splits the on-chain wallet into the plain and the
// RGB-allocated parts, in satoshi.
type BtcBalance struct {
	Vanilla Balance `json:"vanilla"`
	Colored Balance `json:"colored"`
}

// SendAssetRequest asks the node to execute an RGB transfer.
type SendAssetRequest struct {
	AssetID            string   `json:"asset_id"`
	RecipientID        string   `json:"recipient_id"`
	Amount             uint64   `json:"amount"`
	TransportEndpoints []string `json:"transport_endpoints,omitempty"`
	FeeRate            uint64   `json:"fee_rate"`
}

type decodeLnInvoiceRequest struct {
	Invoice string `json:"invoice"`
}

type decodeRgbInvoiceRequest struct {
	Invoice string `json:"invoice"`
}

type sendPaymentRequest struct {
	Invoice string  `json:"invoice"`
	AmtMsat *uint64 `json:"amt_msat,omitempty"`
}

type sendPaymentResponse struct {
	PaymentHash string `json:"payment_hash"`
	Status      string `json:"status"`
}

type sendBtcRequest struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
	FeeRate uint64 `json:"fee_rate"`
}

type sendBtcResponse struct {
	Txid string `json:"txid"`
}

type sendAssetResponse struct {
	Txid string `json:"txid"`
}

type listAssetsRequest struct {
	FilterAssetSchemas []string `json:"filter_asset_schemas"`
}

type listAssetsResponse struct {
	Nia []Asset `json:"nia"`
	Uda []Asset `json:"uda"`
	Cfa []Asset `json:"cfa"`
}

type listPaymentsResponse struct {
	Payments []Payment `json:"payments"`
}

type btcBalanceRequest struct {
	SkipSync bool `json:"skip_sync"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
