package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	host        = flag.String("host", "http://localhost:8080", "payflow server host")
	flatPreset  = flag.String("preset", "", "preset to execute")
	destination = flag.String("destination", "", "payment destination (address or invoice)")
	amount      = flag.String("amount", "", "amount in asset decimal units")
	assetID     = flag.String("asset", "", "asset to send (defaults to BTC)")
	feePolicy   = flag.String("fee", "", "fee policy: slow, normal or fast")
)

var presets = map[string]func(context.Context) error{
	"listAssets": listAssets,
	"send":       send,
}

func main() {
	flag.Parse()

	if *flatPreset == "" {
		panic("preset is required")
	}
	preset, ok := presets[*flatPreset]
	if !ok {
		panic(fmt.Sprintf("unknown preset: %s", *flatPreset))
	}

	ctx := context.Background()
	err := preset(ctx)
	if err != nil {
		panic(err)
	}
}

type errorBody struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type draft struct {
	ID             string `json:"id"`
	State          string `json:"state"`
	Valid          bool   `json:"valid"`
	ResolvedAmount uint64 `json:"resolved_amount"`
	Asset          struct {
		ID      string `json:"id"`
		Ticker  string `json:"ticker"`
		Balance string `json:"balance"`
	} `json:"asset"`
	Target struct {
		Kind          string `json:"kind"`
		DecodePending bool   `json:"decode_pending"`
	} `json:"target"`
	Validation *errorBody `json:"validation_error"`
	Receipt    *struct {
		Protocol    string `json:"protocol"`
		Txid        string `json:"txid"`
		PaymentHash string `json:"payment_hash"`
		Settled     bool   `json:"settled"`
	} `json:"receipt"`
	DispatchError *struct {
		Protocol string `json:"protocol"`
		Message  string `json:"message"`
	} `json:"dispatch_error"`
}

func call(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, *host+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make http call: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode >= 400 {
		var apiErr struct {
			Error errorBody `json:"error"`
		}
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Code != "" {
			return fmt.Errorf("%s %s: %s (%s)", method, path, apiErr.Error.Message, apiErr.Error.Code)
		}
		return fmt.Errorf("%s %s: status %d", method, path, res.StatusCode)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	err = json.Unmarshal(data, out)
	if err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func listAssets(ctx context.Context) error {
	var res struct {
		Assets []struct {
			ID      string `json:"id"`
			Ticker  string `json:"ticker"`
			Balance string `json:"balance"`
		} `json:"assets"`
	}
	err := call(ctx, http.MethodGet, "/api/v1/assets", nil, &res)
	if err != nil {
		return err
	}
	for _, a := range res.Assets {
		fmt.Printf("%-8s %-16s %s\n", a.Ticker, a.Balance, a.ID)
	}
	return nil
}

func send(ctx context.Context) error {
	if *destination == "" {
		return fmt.Errorf("destination is required")
	}

	open := map[string]string{}
	if *assetID != "" {
		open["asset_id"] = *assetID
	}
	var d draft
	err := call(ctx, http.MethodPost, "/api/v1/drafts", open, &d)
	if err != nil {
		return fmt.Errorf("failed to open draft: %w", err)
	}
	base := "/api/v1/drafts/" + d.ID

	err = call(ctx, http.MethodPut, base+"/input", map[string]string{"destination": *destination}, &d)
	if err != nil {
		return fmt.Errorf("failed to set destination: %w", err)
	}

	// Invoice targets decode asynchronously, poll until settled
	for d.Target.DecodePending {
		time.Sleep(200 * time.Millisecond)
		err = call(ctx, http.MethodGet, base, nil, &d)
		if err != nil {
			return fmt.Errorf("failed to poll draft: %w", err)
		}
	}

	if *amount != "" {
		err = call(ctx, http.MethodPut, base+"/amount", map[string]string{"amount": *amount}, &d)
		if err != nil {
			return fmt.Errorf("failed to set amount: %w", err)
		}
	}
	if *feePolicy != "" {
		err = call(ctx, http.MethodPut, base+"/fee", map[string]any{"policy": *feePolicy}, &d)
		if err != nil {
			return fmt.Errorf("failed to set fee: %w", err)
		}
	}

	if d.Validation != nil {
		return fmt.Errorf("draft rejected: %s: %s", d.Validation.Field, d.Validation.Message)
	}

	err = call(ctx, http.MethodPost, base+"/review", nil, &d)
	if err != nil {
		return fmt.Errorf("failed to review: %w", err)
	}
	fmt.Printf("sending %d minor units of %s to %s\n", d.ResolvedAmount, d.Asset.Ticker, d.Target.Kind)

	err = call(ctx, http.MethodPost, base+"/confirm", nil, &d)
	if err != nil {
		return fmt.Errorf("failed to confirm: %w", err)
	}

	for d.State == "sending" {
		time.Sleep(500 * time.Millisecond)
		err = call(ctx, http.MethodGet, base, nil, &d)
		if err != nil {
			return fmt.Errorf("failed to poll draft: %w", err)
		}
	}

	switch {
	case d.State == "success" && d.Receipt != nil && d.Receipt.Txid != "":
		fmt.Printf("success: txid %s\n", d.Receipt.Txid)
	case d.State == "success" && d.Receipt != nil:
		fmt.Printf("success: payment hash %s settled=%v\n", d.Receipt.PaymentHash, d.Receipt.Settled)
	case d.State == "failed" && d.DispatchError != nil:
		return fmt.Errorf("%s dispatch failed: %s", d.DispatchError.Protocol, d.DispatchError.Message)
	default:
		return fmt.Errorf("unexpected draft state: %s", d.State)
	}

	_ = call(ctx, http.MethodDelete, base, nil, nil)
	return nil
}
