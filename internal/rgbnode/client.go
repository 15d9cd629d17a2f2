// Package rgbnode is an HTTP client for the RGB-enabled lightning node
// daemon that holds the wallet keys. All payment execution and invoice
// decoding is delegated to it.
package rgbnode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config carries the daemon endpoint settings.
type Config struct {
	URL     string        `envconfig:"NODE_URL" required:"true"`
	Timeout time.Duration `envconfig:"NODE_TIMEOUT" default:"30s"`
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("node returned status %d", e.Status)
	}
	return fmt.Sprintf("node returned status %d: %s", e.Status, e.Message)
}

// Client talks JSON over HTTP to the node daemon.
type Client struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:      cfg.URL,
		client:       &http.Client{Timeout: cfg.Timeout},
		pollInterval: paymentPollInterval,
	}
}

func (c *Client) call(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var parsed errorResponse
		if err := json.Unmarshal(data, &parsed); err == nil {
			apiErr.Message = parsed.Error
			apiErr.Code = parsed.Code
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// DecodeLnInvoice decodes a BOLT11 invoice.
func (c *Client) DecodeLnInvoice(ctx context.Context, invoice string) (*LnInvoice, error) {
	var res LnInvoice
	if err := c.call(ctx, "/decodelninvoice", decodeLnInvoiceRequest{Invoice: invoice}, &res); err != nil {
		return nil, fmt.Errorf("failed to decode lightning invoice: %w", err)
	}
	return &res, nil
}

// DecodeRgbInvoice decodes an RGB transfer invoice.
func (c *Client) DecodeRgbInvoice(ctx context.Context, invoice string) (*RgbInvoice, error) {
	var res RgbInvoice
	if err := c.call(ctx, "/decodergbinvoice", decodeRgbInvoiceRequest{Invoice: invoice}, &res); err != nil {
		return nil, fmt.Errorf("failed to decode rgb invoice: %w", err)
	}
	return &res, nil
}

// PayLnInvoice pays a BOLT11 invoice or a lightning address. amtMsat must
// be nil when the invoice pins its own amount.
func (c *Client) PayLnInvoice(ctx context.Context, invoice string, amtMsat *uint64) (*Payment, error) {
	var res sendPaymentResponse
	if err := c.call(ctx, "/sendpayment", sendPaymentRequest{Invoice: invoice, AmtMsat: amtMsat}, &res); err != nil {
		return nil, fmt.Errorf("failed to send lightning payment: %w", err)
	}
	return &Payment{PaymentHash: res.PaymentHash, Status: res.Status}, nil
}

// SendBtc broadcasts an on-chain send of amountSat to address at the given
// fee rate and returns the txid.
func (c *Client) SendBtc(ctx context.Context, address string, amountSat, feeRateSatPerVB uint64) (string, error) {
	var res sendBtcResponse
	req := sendBtcRequest{Address: address, Amount: amountSat, FeeRate: feeRateSatPerVB}
	if err := c.call(ctx, "/sendbtc", req, &res); err != nil {
		return "", fmt.Errorf("failed to send btc: %w", err)
	}
	return res.Txid, nil
}

// SendAsset executes an RGB transfer and returns the anchoring txid.
func (c *Client) SendAsset(ctx context.Context, req SendAssetRequest) (string, error) {
	var res sendAssetResponse
	if err := c.call(ctx, "/sendasset", req, &res); err != nil {
		return "", fmt.Errorf("failed to send asset: %w", err)
	}
	return res.Txid, nil
}

// ListAssets returns every RGB asset the node wallet knows, flattened
// across schemas.
func (c *Client) ListAssets(ctx context.Context) ([]Asset, error) {
	var res listAssetsResponse
	req := listAssetsRequest{FilterAssetSchemas: []string{}}
	if err := c.call(ctx, "/listassets", req, &res); err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	assets := make([]Asset, 0, len(res.Nia)+len(res.Uda)+len(res.Cfa))
	for _, a := range res.Nia {
		a.Schema = "NIA"
		assets = append(assets, a)
	}
	for _, a := range res.Uda {
		a.Schema = "UDA"
		assets = append(assets, a)
	}
	for _, a := range res.Cfa {
		a.Schema = "CFA"
		assets = append(assets, a)
	}
	return assets, nil
}

// BtcBalance returns the on-chain wallet balance split.
func (c *Client) BtcBalance(ctx context.Context) (*BtcBalance, error) {
	var res BtcBalance
	if err := c.call(ctx, "/btcbalance", btcBalanceRequest{}, &res); err != nil {
		return nil, fmt.Errorf("failed to get btc balance: %w", err)
	}
	return &res, nil
}

// ListPayments returns the node's lightning payment history.
func (c *Client) ListPayments(ctx context.Context) ([]Payment, error) {
	var res listPaymentsResponse
	if err := c.call(ctx, "/listpayments", struct{}{}, &res); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return res.Payments, nil
}
