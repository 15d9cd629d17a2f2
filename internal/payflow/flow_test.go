package payflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaleidoswap/payflow/internal/asset"
	"github.com/kaleidoswap/payflow/internal/feerate"
	"github.com/kaleidoswap/payflow/internal/rgbnode"
	"github.com/kaleidoswap/payflow/internal/target"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func newTestFlow(node NodeService, wallet WalletReader, initial asset.Asset) *Flow {
	return newFlow(node, wallet, nopMetrics{}, newTestLogger(), initial)
}

func TestFlowStartsEditable(t *testing.T) {
	flow := newTestFlow(&fakeNode{}, newFakeWallet(btcAsset(1_000)), btcAsset(1_000))

	status := flow.Status()
	require.Equal(t, StateInput, status.State)
	require.Equal(t, asset.BTCAssetID, status.Asset.ID)
	require.Equal(t, feerate.PolicyNormal, status.Fee.Policy)
	require.False(t, status.State.Terminal())
	require.NotNil(t, status.ValidationErr)
	require.Equal(t, CodeInvalidDestination, status.ValidationErr.Code)
}

func TestFlowOnChainSend(t *testing.T) {
	wallet := newFakeWallet(btcAsset(100_000))
	node := &fakeNode{
		sendBtc: func(_ context.Context, _ string, _, _ uint64) (string, error) {
			return "txid123", nil
		},
	}
	flow := newTestFlow(node, wallet, btcAsset(100_000))

	require.NoError(t, flow.InputChanged("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"))
	require.NoError(t, flow.AmountChanged("0.0005"))
	require.NoError(t, flow.SetFee(feerate.PolicyNormal, 0))

	status := flow.Status()
	require.True(t, status.Valid)
	require.Equal(t, uint64(50_000), status.ResolvedAmount)

	require.NoError(t, flow.Review())
	require.Equal(t, StateReview, flow.State())

	require.NoError(t, flow.Confirm())
	require.Eventually(t, func() bool { return flow.State() == StateSuccess }, waitFor, tick)

	sends := node.recordedBtcSends()
	require.Len(t, sends, 1)
	require.Equal(t, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", sends[0].address)
	require.Equal(t, uint64(50_000), sends[0].amount)
	require.Equal(t, uint64(2), sends[0].feeRate)

	status = flow.Status()
	require.NotNil(t, status.Receipt)
	require.Equal(t, "txid123", status.Receipt.Txid)
	require.Equal(t, ProtocolBitcoin, status.Receipt.Protocol)
	require.Nil(t, status.DispatchErr)
}

func TestFlowReviewGuards(t *testing.T) {
	t.Run("invalid destination", func(t *testing.T) {
		flow := newTestFlow(&fakeNode{}, newFakeWallet(btcAsset(1_000)), btcAsset(1_000))
		require.NoError(t, flow.InputChanged("not a destination"))

		err := flow.Review()
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, CodeInvalidDestination, verr.Code)
		require.Equal(t, StateInput, flow.State())
	})

	t.Run("amount validation failure keeps input state", func(t *testing.T) {
		flow := newTestFlow(&fakeNode{}, newFakeWallet(btcAsset(1_000)), btcAsset(1_000))
		require.NoError(t, flow.InputChanged("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"))
		require.NoError(t, flow.AmountChanged("nonsense"))

		err := flow.Review()
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, CodeNonNumeric, verr.Code)
		require.Equal(t, StateInput, flow.State())
	})

	t.Run("pending decode", func(t *testing.T) {
		started := make(chan struct{})
		node := &fakeNode{
			decodeLn: func(ctx context.Context, _ string) (*rgbnode.LnInvoice, error) {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}
		flow := newTestFlow(node, newFakeWallet(btcAsset(1_000)), btcAsset(1_000))
		require.NoError(t, flow.InputChanged("lnbc1pending"))
		<-started

		err := flow.Review()
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, CodeDecodePending, verr.Code)
		flow.Close()
	})
}

func TestFlowStateGuards(t *testing.T) {
	flow := newTestFlow(&fakeNode{}, newFakeWallet(btcAsset(1_000_000)), btcAsset(1_000_000))
	require.NoError(t, flow.InputChanged("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"))
	require.NoError(t, flow.AmountChanged("0.001"))
	require.NoError(t, flow.Review())

	var serr *StateError
	require.ErrorAs(t, flow.InputChanged("other"), &serr)
	require.ErrorAs(t, flow.AmountChanged("1"), &serr)
	require.ErrorAs(t, flow.SelectAsset(asset.BTCAssetID), &serr)
	require.ErrorAs(t, flow.SetFee(feerate.PolicyFast, 0), &serr)
	require.ErrorAs(t, flow.UseMaxAmount(), &serr)
	require.ErrorAs(t, flow.Review(), &serr)

	// Back to input, review events now fail instead.
	require.NoError(t, flow.EditBack())
	require.ErrorAs(t, flow.EditBack(), &serr)
	require.ErrorAs(t, flow.Confirm(), &serr)
}

func TestFlowEditBackPreservesDraft(t *testing.T) {
	flow := newTestFlow(&fakeNode{}, newFakeWallet(btcAsset(1_000_000)), btcAsset(1_000_000))
	require.NoError(t, flow.InputChanged("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"))
	require.NoError(t, flow.AmountChanged("0.001"))
	require.NoError(t, flow.Review())
	require.NoError(t, flow.EditBack())

	status := flow.Status()
	require.Equal(t, StateInput, status.State)
	require.Equal(t, "0.001", status.AmountText)
	require.Equal(t, target.KindBitcoinAddress, status.Target.Kind())

	// The draft is still confirmable after the round trip.
	require.NoError(t, flow.Review())
}

func TestFlowDecodeApplies(t *testing.T) {
	node := &fakeNode{
		decodeLn: func(_ context.Context, _ string) (*rgbnode.LnInvoice, error) {
			return &rgbnode.LnInvoice{
				AmtMsat:     150_000,
				PaymentHash: "hash1",
				Timestamp:   time.Now().Unix(),
				ExpirySec:   3600,
			}, nil
		},
	}
	flow := newTestFlow(node, newFakeWallet(btcAsset(1_000)), btcAsset(1_000))
	require.NoError(t, flow.InputChanged("lnbc1500n1p"))

	require.Eventually(t, func() bool { return !flow.Status().DecodePending }, waitFor, tick)

	status := flow.Status()
	invoice, ok := status.Target.(target.LightningInvoice)
	require.True(t, ok)
	require.Equal(t, uint64(150_000), invoice.Decoded.AmountMsat)

	// The fixed amount overrides whatever the user typed.
	require.NoError(t, flow.AmountChanged("999"))
	require.NoError(t, flow.Review())
	require.NoError(t, flow.EditBack())

	status = flow.Status()
	require.True(t, status.Valid)
	require.Equal(t, uint64(150), status.ResolvedAmount)
}

func TestFlowDecodeFailureDegradesToInvalid(t *testing.T) {
	node := &fakeNode{
		decodeLn: func(_ context.Context, _ string) (*rgbnode.LnInvoice, error) {
			return nil, &rgbnode.APIError{Status: 400, Message: "Invalid invoice"}
		},
	}
	flow := newTestFlow(node, newFakeWallet(btcAsset(1_000)), btcAsset(1_000))
	require.NoError(t, flow.InputChanged("lnbc1broken"))

	require.Eventually(t, func() bool {
		return flow.Status().Target.Kind() == target.KindInvalid
	}, waitFor, tick)

	invalid, ok := flow.Status().Target.(target.Invalid)
	require.True(t, ok)
	require.Equal(t, "Invalid invoice", invalid.Reason)

	err := flow.Review()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, CodeInvalidDestination, verr.Code)
}

func TestFlowDecodeLastWriteWins(t *testing.T) {
	releaseSlow := make(chan struct{})
	slowReturned := make(chan struct{})
	node := &fakeNode{
		decodeLn: func(_ context.Context, invoice string) (*rgbnode.LnInvoice, error) {
			if invoice == "lnbc1slow" {
				defer close(slowReturned)
				<-releaseSlow
				return &rgbnode.LnInvoice{AmtMsat: 111_000, PaymentHash: "hash_slow"}, nil
			}
			return &rgbnode.LnInvoice{AmtMsat: 222_000, PaymentHash: "hash_fast"}, nil
		},
	}
	flow := newTestFlow(node, newFakeWallet(btcAsset(1_000)), btcAsset(1_000))

	require.NoError(t, flow.InputChanged("lnbc1slow"))
	require.NoError(t, flow.InputChanged("lnbc1fast"))

	require.Eventually(t, func() bool {
		invoice, ok := flow.Status().Target.(target.LightningInvoice)
		return ok && invoice.Decoded != nil && invoice.Decoded.PaymentHash == "hash_fast"
	}, waitFor, tick)

	// The superseded decode finishing late must not clobber the field.
	close(releaseSlow)
	<-slowReturned
	require.Never(t, func() bool {
		invoice, ok := flow.Status().Target.(target.LightningInvoice)
		return !ok || invoice.Decoded == nil || invoice.Decoded.PaymentHash != "hash_fast"
	}, 150*time.Millisecond, tick)
}

func TestFlowCloseDropsDecodeResult(t *testing.T) {
	started := make(chan struct{})
	returned := make(chan struct{})
	node := &fakeNode{
		decodeLn: func(ctx context.Context, _ string) (*rgbnode.LnInvoice, error) {
			close(started)
			defer close(returned)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	flow := newTestFlow(node, newFakeWallet(btcAsset(1_000)), btcAsset(1_000))
	require.NoError(t, flow.InputChanged("lnbc1abandoned"))
	<-started

	flow.Close()
	<-returned

	// The cancelled decode error must not degrade the target.
	require.Never(t, func() bool {
		return flow.Status().Target.Kind() == target.KindInvalid
	}, 150*time.Millisecond, tick)
	require.True(t, flow.Status().DecodePending)
}

func TestFlowAssetPinnedByInvoice(t *testing.T) {
	usdt := rgbAsset("rgb1usdt", 2, 10_000)
	wallet := newFakeWallet(btcAsset(1_000), usdt)
	node := &fakeNode{
		decodeLn: func(_ context.Context, _ string) (*rgbnode.LnInvoice, error) {
			return &rgbnode.LnInvoice{AssetID: "rgb1usdt", AssetAmount: 42, PaymentHash: "hash_asset"}, nil
		},
	}
	flow := newTestFlow(node, wallet, btcAsset(1_000))

	require.NoError(t, flow.InputChanged("lnbc1asset"))
	require.Eventually(t, func() bool {
		return flow.Status().Asset.ID == "rgb1usdt"
	}, waitFor, tick)

	status := flow.Status()
	require.True(t, status.Valid)
	require.Equal(t, uint64(42), status.ResolvedAmount)
}

func TestFlowSelectAsset(t *testing.T) {
	usdt := rgbAsset("rgb1usdt", 2, 10_000)
	flow := newTestFlow(&fakeNode{}, newFakeWallet(btcAsset(1_000), usdt), btcAsset(1_000))

	require.NoError(t, flow.SelectAsset("rgb1usdt"))
	require.Equal(t, "rgb1usdt", flow.Status().Asset.ID)

	err := flow.SelectAsset("rgb1unknown")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, CodeAssetNotHeld, verr.Code)
	require.Equal(t, "rgb1usdt", flow.Status().Asset.ID)
}

func TestFlowUseMaxAmount(t *testing.T) {
	t.Run("sets the full spendable balance", func(t *testing.T) {
		flow := newTestFlow(&fakeNode{}, newFakeWallet(btcAsset(100_000)), btcAsset(100_000))
		require.NoError(t, flow.InputChanged("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"))
		require.NoError(t, flow.UseMaxAmount())

		status := flow.Status()
		require.Equal(t, "0.001", status.AmountText)
		require.True(t, status.Valid)
		require.Equal(t, uint64(100_000), status.ResolvedAmount)
	})

	t.Run("refused when the invoice fixes the amount", func(t *testing.T) {
		node := &fakeNode{
			decodeLn: func(_ context.Context, _ string) (*rgbnode.LnInvoice, error) {
				return &rgbnode.LnInvoice{AmtMsat: 150_000}, nil
			},
		}
		flow := newTestFlow(node, newFakeWallet(btcAsset(100_000)), btcAsset(100_000))
		require.NoError(t, flow.InputChanged("lnbc1fixed"))
		require.Eventually(t, func() bool { return !flow.Status().DecodePending }, waitFor, tick)

		err := flow.UseMaxAmount()
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, CodeAmountFixed, verr.Code)
	})
}

func TestFlowSendingRefusesEditsAndConfirmsOnce(t *testing.T) {
	release := make(chan struct{})
	node := &fakeNode{
		sendBtc: func(_ context.Context, _ string, _, _ uint64) (string, error) {
			<-release
			return "txid999", nil
		},
	}
	flow := newTestFlow(node, newFakeWallet(btcAsset(1_000_000)), btcAsset(1_000_000))
	require.NoError(t, flow.InputChanged("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"))
	require.NoError(t, flow.AmountChanged("0.0005"))
	require.NoError(t, flow.Review())
	require.NoError(t, flow.Confirm())
	require.Equal(t, StateSending, flow.State())

	// Editing while the dispatch is in flight is refused; the snapshot is
	// already sealed.
	var serr *StateError
	require.ErrorAs(t, flow.AmountChanged("99"), &serr)
	require.ErrorAs(t, flow.InputChanged("other"), &serr)
	require.ErrorAs(t, flow.EditBack(), &serr)

	// A second confirm while sending is a silent no-op.
	require.NoError(t, flow.Confirm())

	close(release)
	require.Eventually(t, func() bool { return flow.State() == StateSuccess }, waitFor, tick)

	sends := node.recordedBtcSends()
	require.Len(t, sends, 1)
	require.Equal(t, uint64(50_000), sends[0].amount)

	// Terminal states accept no further confirms.
	require.ErrorAs(t, flow.Confirm(), &serr)
}

func TestFlowConcurrentConfirmsDispatchOnce(t *testing.T) {
	release := make(chan struct{})
	node := &fakeNode{
		sendBtc: func(_ context.Context, _ string, _, _ uint64) (string, error) {
			<-release
			return "txid1", nil
		},
	}
	flow := newTestFlow(node, newFakeWallet(btcAsset(1_000_000)), btcAsset(1_000_000))
	require.NoError(t, flow.InputChanged("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"))
	require.NoError(t, flow.AmountChanged("0.0005"))
	require.NoError(t, flow.Review())

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = flow.Confirm()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	close(release)
	require.Eventually(t, func() bool { return flow.State() == StateSuccess }, waitFor, tick)
	require.Len(t, node.recordedBtcSends(), 1)
}

func TestFlowDispatchFailure(t *testing.T) {
	node := &fakeNode{
		sendBtc: func(_ context.Context, _ string, _, _ uint64) (string, error) {
			return "", errors.New("broadcast rejected")
		},
	}
	flow := newTestFlow(node, newFakeWallet(btcAsset(1_000_000)), btcAsset(1_000_000))
	require.NoError(t, flow.InputChanged("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"))
	require.NoError(t, flow.AmountChanged("0.0005"))
	require.NoError(t, flow.Review())
	require.NoError(t, flow.Confirm())

	require.Eventually(t, func() bool { return flow.State() == StateFailed }, waitFor, tick)

	status := flow.Status()
	require.Nil(t, status.Receipt)
	require.NotNil(t, status.DispatchErr)
	require.Equal(t, ProtocolBitcoin, status.DispatchErr.Protocol)
	require.Contains(t, status.DispatchErr.Error(), "broadcast rejected")

	// Failed flows stay failed; no retry through the same draft.
	var serr *StateError
	require.ErrorAs(t, flow.Confirm(), &serr)
	require.ErrorAs(t, flow.Review(), &serr)
}

func TestFlowSnapshotSealedAtConfirm(t *testing.T) {
	release := make(chan struct{})
	node := &fakeNode{
		sendBtc: func(_ context.Context, _ string, _, _ uint64) (string, error) {
			<-release
			return "txid1", nil
		},
	}
	flow := newTestFlow(node, newFakeWallet(btcAsset(1_000_000)), btcAsset(1_000_000))
	require.NoError(t, flow.InputChanged("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"))
	require.NoError(t, flow.AmountChanged("0.0005"))
	require.NoError(t, flow.SetFee(feerate.PolicyFast, 0))
	require.NoError(t, flow.Review())
	require.NoError(t, flow.Confirm())

	snapshot := flow.Status().Snapshot
	require.NotNil(t, snapshot)
	require.Equal(t, uint64(50_000), snapshot.Amount)
	require.Equal(t, uint64(3), snapshot.FeeRate)

	close(release)
	require.Eventually(t, func() bool { return flow.State() == StateSuccess }, waitFor, tick)

	// What was dispatched is exactly what was confirmed.
	sends := node.recordedBtcSends()
	require.Len(t, sends, 1)
	require.Equal(t, snapshot.Amount, sends[0].amount)
	require.Equal(t, snapshot.FeeRate, sends[0].feeRate)
}

func TestFlowConfirmRechecksExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	node := &fakeNode{
		decodeLn: func(_ context.Context, _ string) (*rgbnode.LnInvoice, error) {
			return &rgbnode.LnInvoice{
				AmtMsat:     150_000,
				PaymentHash: "hash_exp",
				Timestamp:   now.Unix(),
				ExpirySec:   3600,
			}, nil
		},
	}
	flow := newTestFlow(node, newFakeWallet(btcAsset(1_000)), btcAsset(1_000))
	flow.now = func() time.Time { return now }

	require.NoError(t, flow.InputChanged("lnbc1expiring"))
	require.Eventually(t, func() bool { return !flow.Status().DecodePending }, waitFor, tick)
	require.NoError(t, flow.Review())

	// The invoice expires while the user stares at the review screen.
	now = now.Add(2 * time.Hour)

	err := flow.Confirm()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, CodeInvoiceExpired, verr.Code)
	require.Equal(t, StateReview, flow.State())
	require.NoError(t, flow.EditBack())
}
