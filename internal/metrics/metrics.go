package metrics

// Package metrics provides Prometheus metrics collection for payflow services.
//
// This package includes:
// - HTTP request metrics (count, latency, errors)
// - Payment flow metrics (open flows, decodes, dispatches)
// - Metrics HTTP server on configurable port
// - Echo middleware for automatic request instrumentation
//
// Usage:
//   import "github.com/kaleidoswap/payflow/internal/metrics"
//
//   // Start metrics server
//   metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{metrics.ServiceHTTP}, logger)
//   defer metricsServer.Stop(context.Background())
//
//   // Add middleware to Echo
//   e.Use(metrics.HTTPMiddleware())
