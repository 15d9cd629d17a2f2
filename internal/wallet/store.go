// Package wallet keeps an in-memory snapshot of spendable balances pulled
// from the node. The snapshot is the single balance source for validation;
// it refreshes on startup and after every successful send.
package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kaleidoswap/payflow/internal/asset"
	"github.com/kaleidoswap/payflow/internal/rgbnode"
)

// BalanceProvider is the slice of the node API the store needs.
type BalanceProvider interface {
	BtcBalance(ctx context.Context) (*rgbnode.BtcBalance, error)
	ListAssets(ctx context.Context) ([]rgbnode.Asset, error)
}

// Store holds the latest balance snapshot. All methods are safe for
// concurrent use.
type Store struct {
	node BalanceProvider
	log  *logrus.Entry

	mu          sync.RWMutex
	assets      []asset.Asset
	refreshedAt time.Time
}

func NewStore(node BalanceProvider, logger *logrus.Logger) *Store {
	return &Store{
		node: node,
		log:  logger.WithField("pkg", "wallet.Store"),
	}
}

// Refresh replaces the snapshot with fresh node balances. The native
// balance and the asset list are fetched in parallel; on any failure the
// previous snapshot stays in place.
func (s *Store) Refresh(ctx context.Context) error {
	var (
		btcBalance *rgbnode.BtcBalance
		nodeAssets []rgbnode.Asset
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		btcBalance, err = s.node.BtcBalance(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch btc balance: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		nodeAssets, err = s.node.ListAssets(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch assets: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	snapshot := make([]asset.Asset, 0, len(nodeAssets)+1)
	snapshot = append(snapshot, asset.BTC(btcBalance.Vanilla.Spendable))
	for _, a := range nodeAssets {
		snapshot = append(snapshot, asset.Asset{
			ID:        a.AssetID,
			Ticker:    a.Ticker,
			Name:      a.Name,
			Precision: a.Precision,
			Spendable: a.Balance.Spendable,
		})
	}

	s.mu.Lock()
	s.assets = snapshot
	s.refreshedAt = time.Now()
	s.mu.Unlock()

	s.log.WithField("assets", len(snapshot)).Debug("wallet snapshot refreshed")
	return nil
}

// Get returns the asset with the given id from the current snapshot.
func (s *Store) Get(assetID string) (asset.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.assets {
		if a.ID == assetID {
			return a, true
		}
	}
	return asset.Asset{}, false
}

// List returns a copy of the current snapshot, native asset first.
func (s *Store) List() []asset.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]asset.Asset, len(s.assets))
	copy(out, s.assets)
	return out
}

// RefreshedAt returns when the snapshot was last replaced, zero if never.
func (s *Store) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}
