package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/kaleidoswap/payflow/internal/api"
	"github.com/kaleidoswap/payflow/internal/graceful"
	"github.com/kaleidoswap/payflow/internal/health"
	"github.com/kaleidoswap/payflow/internal/logging"
	"github.com/kaleidoswap/payflow/internal/metrics"
	"github.com/kaleidoswap/payflow/internal/payflow"
	"github.com/kaleidoswap/payflow/internal/rgbnode"
	"github.com/kaleidoswap/payflow/internal/wallet"
)

const (
	shutdownTimeout       = 10 * time.Second
	initialRefreshTimeout = 30 * time.Second
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := newConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	logger := logging.NewLogger(cfg.LogFormat)

	// Start metrics server with HTTP and flow metrics
	metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{metrics.ServiceHTTP, metrics.ServiceFlow}, logger)
	healthServer := health.StartHealthServer(cfg.Health, logger)

	components := []graceful.Component{
		{Name: "health server", Stop: healthServer.Stop},
	}
	if metricsServer != nil {
		components = append(components, graceful.Component{Name: "metrics server", Stop: metricsServer.Stop})
	}
	defer graceful.ShutdownAll(shutdownTimeout, logger, components...)

	node := rgbnode.NewClient(cfg.Node)

	walletStore := wallet.NewStore(node, logger)
	refreshCtx, refreshCancel := context.WithTimeout(ctx, initialRefreshTimeout)
	if err := walletStore.Refresh(refreshCtx); err != nil {
		// The daemon still serves drafts; balances arrive on the next refresh.
		logger.Warnf("failed to load initial wallet snapshot: %v", err)
	}
	refreshCancel()

	manager := payflow.NewManager(node, walletStore, metrics.NewFlowMetrics(), logger, cfg.DraftTTL)
	go manager.Run(ctx)

	srv := api.NewServer(cfg.Server, manager, walletStore, logger, metrics.HTTPMiddleware())

	go func() {
		sig := <-graceful.MakeSigintChan()
		logger.Infof("received exit signal: %v", sig)
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		logger.Fatalf("failed to start server: %v", err)
	}
}

type config struct {
	LogFormat logging.LogFormat `envconfig:"LOG_FORMAT" default:"text"`
	DraftTTL  time.Duration     `envconfig:"DRAFT_TTL" default:"30m"`
	Server    api.Config
	Node      rgbnode.Config
	Metrics   metrics.Config
	Health    health.Config
}

func newConfig() (config, error) {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	return cfg, nil
}
