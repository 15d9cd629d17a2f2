// Package payflow drives outgoing payments from pasted text to a dispatched
// transaction: classify the destination, decode invoices through the node,
// validate amount and balance, then hand exactly one send call to the node.
package payflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kaleidoswap/payflow/internal/asset"
	"github.com/kaleidoswap/payflow/internal/feerate"
	"github.com/kaleidoswap/payflow/internal/rgbnode"
	"github.com/kaleidoswap/payflow/internal/target"
)

// State of a payment flow. The only backward transition is review to input.
type State string

const (
	StateInput   State = "input"
	StateReview  State = "review"
	StateSending State = "sending"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// Terminal reports whether the flow is finished, for better or worse.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// NodeService is everything a flow needs from the node daemon.
type NodeService interface {
	DecodeService
	DispatchService
}

// WalletReader resolves assets for selection and validation.
type WalletReader interface {
	Get(assetID string) (asset.Asset, bool)
	List() []asset.Asset
}

const (
	decodeTimeout   = 30 * time.Second
	dispatchTimeout = 2 * time.Minute
)

// Draft is the mutable working state of the input screen.
type Draft struct {
	Asset      asset.Asset
	Target     target.Target
	AmountText string
	Fee        feerate.Fee
}

// Flow drives one payment draft from input to a terminal state. All methods
// are safe for concurrent use; decode and dispatch run off the lock.
type Flow struct {
	ID uuid.UUID

	log        *logrus.Entry
	node       NodeService
	decoder    *Decoder
	wallet     WalletReader
	metrics    Metrics
	now        func() time.Time
	onTerminal func(*Flow)

	mu           sync.Mutex
	state        State
	draft        Draft
	generation   uint64
	cancelDecode context.CancelFunc
	snapshot     *ConfirmedPayment
	receipt      *Receipt
	dispatchErr  *DispatchError
	closed       bool
	touched      time.Time
}

func newFlow(node NodeService, wallet WalletReader, metrics Metrics, logger *logrus.Logger, initial asset.Asset) *Flow {
	id := uuid.New()
	return &Flow{
		ID:      id,
		log:     logger.WithFields(logrus.Fields{"pkg": "payflow.Flow", "flow_id": id.String()}),
		node:    node,
		decoder: NewDecoder(node),
		wallet:  wallet,
		metrics: metrics,
		now:     time.Now,
		state:   StateInput,
		draft:   Draft{Asset: initial, Fee: feerate.Default()},
		touched: time.Now(),
	}
}

// InputChanged reclassifies the destination and, for invoice forms, starts
// an async decode. A newer input supersedes the result of any decode still
// in flight.
func (f *Flow) InputChanged(raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateInput {
		return &StateError{Event: "edit input", State: f.state}
	}
	f.touch()

	f.generation++
	generation := f.generation
	f.stopDecode()

	t := target.Classify(raw)
	f.draft.Target = t
	if !target.PendingDecode(t) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), decodeTimeout)
	f.cancelDecode = cancel
	go f.decode(ctx, generation, t)
	return nil
}

// decode runs without the flow lock; only the current generation may apply
// its result.
func (f *Flow) decode(ctx context.Context, generation uint64, t target.Target) {
	start := time.Now()
	decoded, err := f.decoder.Decode(ctx, t)
	elapsed := time.Since(start)

	f.mu.Lock()
	defer f.mu.Unlock()

	if generation != f.generation || f.state != StateInput || f.closed {
		f.metrics.DecodeFinished(protocolOf(t), "superseded", elapsed)
		return
	}
	f.stopDecode()

	if err != nil {
		f.log.WithError(err).WithField("kind", t.Kind().String()).Warn("invoice decode failed")
		f.draft.Target = target.Invalid{Reason: decodeFailureReason(err)}
		f.metrics.DecodeFinished(protocolOf(t), "error", elapsed)
		return
	}

	f.draft.Target = decoded
	f.autoSelectAsset(decoded)
	f.metrics.DecodeFinished(protocolOf(t), "ok", elapsed)
}

// decodeFailureReason prefers the node's own message, which names what is
// wrong with the invoice.
func decodeFailureReason(err error) string {
	var apiErr *rgbnode.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "failed to decode invoice"
}

// autoSelectAsset switches the draft to the asset an invoice pins, when the
// wallet holds it. Validation reports the mismatch otherwise.
func (f *Flow) autoSelectAsset(t target.Target) {
	var assetID string
	switch tt := t.(type) {
	case target.LightningInvoice:
		assetID = tt.Decoded.AssetID
	case target.RgbInvoice:
		assetID = tt.Decoded.AssetID
	}
	if assetID == "" || assetID == f.draft.Asset.ID {
		return
	}
	if held, ok := f.wallet.Get(assetID); ok {
		f.draft.Asset = held
		f.log.WithField("asset_id", assetID).Debug("asset selection pinned by invoice")
	}
}

// AmountChanged records the entered amount text. Parsing happens on review;
// targets with an invoice-pinned amount ignore the text entirely.
func (f *Flow) AmountChanged(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateInput {
		return &StateError{Event: "edit amount", State: f.state}
	}
	f.touch()
	f.draft.AmountText = text
	return nil
}

// SelectAsset switches the draft to another held asset. The amount text is
// kept and re-validated against the new precision on review.
func (f *Flow) SelectAsset(assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateInput {
		return &StateError{Event: "select asset", State: f.state}
	}
	held, ok := f.wallet.Get(assetID)
	if !ok {
		return &ValidationError{
			Field:   "asset",
			Code:    CodeAssetNotHeld,
			Message: "wallet does not hold asset " + assetID,
		}
	}
	f.touch()
	f.draft.Asset = held
	return nil
}

// SetFee selects the on-chain fee policy.
func (f *Flow) SetFee(policy feerate.Policy, customRate uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateInput {
		return &StateError{Event: "set fee", State: f.state}
	}
	fee, err := feerate.New(policy, customRate)
	if err != nil {
		return &ValidationError{Field: "fee", Code: CodeInvalidFee, Message: err.Error()}
	}
	f.touch()
	f.draft.Fee = fee
	return nil
}

// UseMaxAmount sets the amount text to the full spendable balance of the
// selected asset.
func (f *Flow) UseMaxAmount() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateInput {
		return &StateError{Event: "use max amount", State: f.state}
	}
	if fixedAmountTarget(f.draft.Target) {
		return &ValidationError{
			Field:   "amount",
			Code:    CodeAmountFixed,
			Message: "amount is fixed by the invoice",
		}
	}
	f.touch()
	f.draft.AmountText = asset.FormatAmount(f.draft.Asset.Spendable, f.draft.Asset.Precision)
	return nil
}

func fixedAmountTarget(t target.Target) bool {
	switch tt := t.(type) {
	case target.LightningInvoice:
		return tt.Decoded != nil && tt.Decoded.HasFixedAmount()
	case target.RgbInvoice:
		return tt.Decoded != nil && !tt.Decoded.Assignment.UserAdjustable()
	default:
		return false
	}
}

// Review validates the draft and moves to the confirmation screen.
func (f *Flow) Review() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateInput {
		return &StateError{Event: "review", State: f.state}
	}
	if target.PendingDecode(f.draft.Target) {
		return decodePending()
	}
	if verr := checkExpiry(f.draft.Target, f.now()); verr != nil {
		return verr
	}
	if _, verr := resolveAmount(f.draft.Target, f.draft.Asset, f.draft.AmountText); verr != nil {
		return verr
	}

	f.setState(StateReview)
	return nil
}

// EditBack returns from review to editing. The draft survives untouched.
func (f *Flow) EditBack() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateReview {
		return &StateError{Event: "edit back", State: f.state}
	}
	f.setState(StateInput)
	return nil
}

// Confirm snapshots the draft and dispatches it. Confirming a flow that is
// already sending is a no-op, so a double tap cannot double-pay.
func (f *Flow) Confirm() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateSending {
		return nil
	}
	if f.state != StateReview {
		return &StateError{Event: "confirm", State: f.state}
	}
	if verr := checkExpiry(f.draft.Target, f.now()); verr != nil {
		return verr
	}
	amount, verr := resolveAmount(f.draft.Target, f.draft.Asset, f.draft.AmountText)
	if verr != nil {
		return verr
	}

	f.snapshot = &ConfirmedPayment{
		Asset:   f.draft.Asset,
		Target:  f.draft.Target,
		Amount:  amount,
		FeeRate: f.draft.Fee.SatPerVB(),
	}
	f.setState(StateSending)

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	go f.dispatch(ctx, cancel, f.snapshot)
	return nil
}

// dispatch runs the single mutating node call off the flow lock. It is not
// cancellable by the user; the payment finishes whether or not anyone is
// still watching.
func (f *Flow) dispatch(ctx context.Context, cancel context.CancelFunc, payment *ConfirmedPayment) {
	defer cancel()

	start := time.Now()
	receipt, err := Dispatch(ctx, f.node, payment)
	elapsed := time.Since(start)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.dispatchErr = &DispatchError{Protocol: payment.Protocol(), Err: err}
		f.setState(StateFailed)
		f.metrics.DispatchFinished(payment.Protocol(), "error", elapsed)
		f.log.WithError(err).WithField("protocol", payment.Protocol()).Error("payment dispatch failed")
	} else {
		f.receipt = receipt
		f.setState(StateSuccess)
		f.metrics.DispatchFinished(payment.Protocol(), "ok", elapsed)
		f.log.WithFields(logrus.Fields{
			"protocol":     receipt.Protocol,
			"txid":         receipt.Txid,
			"payment_hash": receipt.PaymentHash,
		}).Info("payment dispatched")
	}

	if f.onTerminal != nil {
		go f.onTerminal(f)
	}
}

// Close abandons the flow. A decode in flight is cancelled; a dispatch in
// flight is not.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	f.generation++
	f.stopDecode()
	f.metrics.FlowClosed()
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Status is an atomic read of everything the UI renders. ValidationErr
// carries the inline verdict for the current draft; ResolvedAmount is only
// meaningful when Valid.
type Status struct {
	ID             uuid.UUID
	State          State
	Asset          asset.Asset
	Target         target.Target
	AmountText     string
	Fee            feerate.Fee
	DecodePending  bool
	Valid          bool
	ResolvedAmount uint64
	ValidationErr  *ValidationError
	Snapshot       *ConfirmedPayment
	Receipt        *Receipt
	DispatchErr    *DispatchError
}

func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	status := Status{
		ID:            f.ID,
		State:         f.state,
		Asset:         f.draft.Asset,
		Target:        f.draft.Target,
		AmountText:    f.draft.AmountText,
		Fee:           f.draft.Fee,
		DecodePending: target.PendingDecode(f.draft.Target),
		Snapshot:      f.snapshot,
		Receipt:       f.receipt,
		DispatchErr:   f.dispatchErr,
	}

	if (f.state == StateInput || f.state == StateReview) && !status.DecodePending {
		if verr := checkExpiry(f.draft.Target, f.now()); verr != nil {
			status.ValidationErr = verr
		} else if amount, verr := resolveAmount(f.draft.Target, f.draft.Asset, f.draft.AmountText); verr != nil {
			status.ValidationErr = verr
		} else {
			status.Valid = true
			status.ResolvedAmount = amount
		}
	}
	return status
}

func (f *Flow) setState(next State) {
	f.state = next
	f.touch()
	f.metrics.StateTransition(next)
	f.log.WithField("state", string(next)).Debug("flow state changed")
}

func (f *Flow) stopDecode() {
	if f.cancelDecode != nil {
		f.cancelDecode()
		f.cancelDecode = nil
	}
}

func (f *Flow) touch() {
	f.touched = f.now()
}

// reapable reports whether the sweep may discard the flow. A dispatch in
// flight always survives.
func (f *Flow) reapable(now time.Time, ttl time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return true
	}
	if f.state == StateSending {
		return false
	}
	return now.Sub(f.touched) > ttl
}
