package payflow

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kaleidoswap/payflow/internal/asset"
	"github.com/kaleidoswap/payflow/internal/rgbnode"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type btcSend struct {
	address string
	amount  uint64
	feeRate uint64
}

type lnPay struct {
	invoice string
	amtMsat *uint64
}

// fakeNode implements NodeService with per-call hooks and records every
// mutating call it receives.
type fakeNode struct {
	decodeLn  func(ctx context.Context, invoice string) (*rgbnode.LnInvoice, error)
	decodeRgb func(ctx context.Context, invoice string) (*rgbnode.RgbInvoice, error)
	pay       func(ctx context.Context, invoice string, amtMsat *uint64) (*rgbnode.Payment, error)
	sendBtc   func(ctx context.Context, address string, amountSat, feeRate uint64) (string, error)
	sendAsset func(ctx context.Context, req rgbnode.SendAssetRequest) (string, error)
	wait      func(ctx context.Context, hash string) (*rgbnode.Payment, error)

	mu         sync.Mutex
	lnPays     []lnPay
	btcSends   []btcSend
	assetSends []rgbnode.SendAssetRequest
	waitCalls  int
}

func (f *fakeNode) DecodeLnInvoice(ctx context.Context, invoice string) (*rgbnode.LnInvoice, error) {
	if f.decodeLn == nil {
		return nil, errors.New("unexpected DecodeLnInvoice call")
	}
	return f.decodeLn(ctx, invoice)
}

func (f *fakeNode) DecodeRgbInvoice(ctx context.Context, invoice string) (*rgbnode.RgbInvoice, error) {
	if f.decodeRgb == nil {
		return nil, errors.New("unexpected DecodeRgbInvoice call")
	}
	return f.decodeRgb(ctx, invoice)
}

func (f *fakeNode) PayLnInvoice(ctx context.Context, invoice string, amtMsat *uint64) (*rgbnode.Payment, error) {
	f.mu.Lock()
	f.lnPays = append(f.lnPays, lnPay{invoice: invoice, amtMsat: amtMsat})
	f.mu.Unlock()

	if f.pay == nil {
		return nil, errors.New("unexpected PayLnInvoice call")
	}
	return f.pay(ctx, invoice, amtMsat)
}

func (f *fakeNode) SendBtc(ctx context.Context, address string, amountSat, feeRate uint64) (string, error) {
	f.mu.Lock()
	f.btcSends = append(f.btcSends, btcSend{address: address, amount: amountSat, feeRate: feeRate})
	f.mu.Unlock()

	if f.sendBtc == nil {
		return "", errors.New("unexpected SendBtc call")
	}
	return f.sendBtc(ctx, address, amountSat, feeRate)
}

func (f *fakeNode) SendAsset(ctx context.Context, req rgbnode.SendAssetRequest) (string, error) {
	f.mu.Lock()
	f.assetSends = append(f.assetSends, req)
	f.mu.Unlock()

	if f.sendAsset == nil {
		return "", errors.New("unexpected SendAsset call")
	}
	return f.sendAsset(ctx, req)
}

func (f *fakeNode) WaitPayment(ctx context.Context, hash string) (*rgbnode.Payment, error) {
	f.mu.Lock()
	f.waitCalls++
	f.mu.Unlock()

	if f.wait == nil {
		return nil, errors.New("unexpected WaitPayment call")
	}
	return f.wait(ctx, hash)
}

func (f *fakeNode) recordedBtcSends() []btcSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]btcSend, len(f.btcSends))
	copy(out, f.btcSends)
	return out
}

func (f *fakeNode) recordedLnPays() []lnPay {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]lnPay, len(f.lnPays))
	copy(out, f.lnPays)
	return out
}

func (f *fakeNode) recordedAssetSends() []rgbnode.SendAssetRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]rgbnode.SendAssetRequest, len(f.assetSends))
	copy(out, f.assetSends)
	return out
}

// fakeWallet implements WalletState from a fixed asset list.
type fakeWallet struct {
	mu         sync.Mutex
	assets     []asset.Asset
	refreshes  int
	refreshErr error
}

func newFakeWallet(assets ...asset.Asset) *fakeWallet {
	return &fakeWallet{assets: assets}
}

func (w *fakeWallet) Get(assetID string) (asset.Asset, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, a := range w.assets {
		if a.ID == assetID {
			return a, true
		}
	}
	return asset.Asset{}, false
}

func (w *fakeWallet) List() []asset.Asset {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]asset.Asset, len(w.assets))
	copy(out, w.assets)
	return out
}

func (w *fakeWallet) Refresh(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refreshes++
	return w.refreshErr
}

func (w *fakeWallet) refreshCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refreshes
}
