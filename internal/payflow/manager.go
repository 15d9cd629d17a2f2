package payflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kaleidoswap/payflow/internal/asset"
)

// WalletState is the wallet surface the manager and its flows share.
type WalletState interface {
	WalletReader
	Refresh(ctx context.Context) error
}

const (
	defaultFlowTTL       = 30 * time.Minute
	sweepInterval        = time.Minute
	walletRefreshTimeout = 30 * time.Second
)

// Manager owns the live payment flows, reaps abandoned ones and refreshes
// wallet balances after successful sends.
type Manager struct {
	node    NodeService
	wallet  WalletState
	metrics Metrics
	logger  *logrus.Logger
	log     *logrus.Entry
	ttl     time.Duration

	mu    sync.Mutex
	flows map[uuid.UUID]*Flow
}

// NewManager wires a flow registry. A nil metrics falls back to a no-op
// implementation; a zero ttl falls back to the default.
func NewManager(node NodeService, wallet WalletState, metrics Metrics, logger *logrus.Logger, ttl time.Duration) *Manager {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if ttl <= 0 {
		ttl = defaultFlowTTL
	}
	return &Manager{
		node:    node,
		wallet:  wallet,
		metrics: metrics,
		logger:  logger,
		log:     logger.WithField("pkg", "payflow.Manager"),
		ttl:     ttl,
		flows:   make(map[uuid.UUID]*Flow),
	}
}

// Open creates a flow in the input state. An empty assetID selects BTC;
// other ids must be held by the wallet.
func (m *Manager) Open(assetID string) (*Flow, error) {
	if assetID == "" {
		assetID = asset.BTCAssetID
	}
	initial, ok := m.wallet.Get(assetID)
	if !ok {
		if assetID != asset.BTCAssetID {
			return nil, &ValidationError{
				Field:   "asset",
				Code:    CodeAssetNotHeld,
				Message: "wallet does not hold asset " + assetID,
			}
		}
		// The balance snapshot may still be empty; drafts stay usable and
		// validation reports the zero balance.
		initial = asset.BTC(0)
	}

	flow := newFlow(m.node, m.wallet, m.metrics, m.logger, initial)
	flow.onTerminal = m.flowFinished

	m.mu.Lock()
	m.flows[flow.ID] = flow
	m.mu.Unlock()

	m.metrics.FlowOpened()
	m.log.WithField("flow_id", flow.ID.String()).Debug("flow opened")
	return flow, nil
}

// Get returns the flow with the given id.
func (m *Manager) Get(id uuid.UUID) (*Flow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	flow, ok := m.flows[id]
	return flow, ok
}

// Close discards a flow. A dispatch already in flight still completes.
func (m *Manager) Close(id uuid.UUID) bool {
	m.mu.Lock()
	flow, ok := m.flows[id]
	if ok {
		delete(m.flows, id)
	}
	m.mu.Unlock()

	if ok {
		flow.Close()
	}
	return ok
}

// Count returns the number of live flows.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flows)
}

// Run reaps idle flows until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	var reaped []*Flow
	for id, flow := range m.flows {
		if flow.reapable(now, m.ttl) {
			delete(m.flows, id)
			reaped = append(reaped, flow)
		}
	}
	m.mu.Unlock()

	for _, flow := range reaped {
		flow.Close()
	}
	if len(reaped) > 0 {
		m.log.WithField("count", len(reaped)).Debug("reaped idle flows")
	}
	return len(reaped)
}

// flowFinished refreshes the balance snapshot after a successful send so
// the next draft validates against reality.
func (m *Manager) flowFinished(flow *Flow) {
	if flow.State() != StateSuccess {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), walletRefreshTimeout)
	defer cancel()

	if err := m.wallet.Refresh(ctx); err != nil {
		m.log.WithError(err).Warn("failed to refresh wallet after send")
	}
}
