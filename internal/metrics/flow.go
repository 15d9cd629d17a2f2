package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kaleidoswap/payflow/internal/payflow"
)

var (
	// Currently open payment flows
	flowsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "payflow",
			Subsystem: "flow",
			Name:      "open_flows",
			Help:      "Number of currently open payment flows",
		},
	)

	// State machine transitions
	flowStateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payflow",
			Subsystem: "flow",
			Name:      "state_transitions_total",
			Help:      "Total number of flow state transitions",
		},
		[]string{"state"}, // input, review, sending, success, failed
	)

	// Invoice decode metrics
	flowDecodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payflow",
			Subsystem: "flow",
			Name:      "decodes_total",
			Help:      "Total number of invoice decodes",
		},
		[]string{"protocol", "status"}, // lightning/rgb, ok/error/superseded
	)

	flowDecodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payflow",
			Subsystem: "flow",
			Name:      "decode_duration_seconds",
			Help:      "Time taken to decode an invoice",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"protocol"},
	)

	// Payment dispatch metrics
	flowDispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payflow",
			Subsystem: "flow",
			Name:      "dispatches_total",
			Help:      "Total number of payment dispatches",
		},
		[]string{"protocol", "status"}, // bitcoin/lightning/rgb, ok/error
	)

	flowDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payflow",
			Subsystem: "flow",
			Name:      "dispatch_duration_seconds",
			Help:      "Time taken to dispatch a payment",
			// Lightning settles can take well beyond the default 10s ceiling
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"protocol"},
	)
)

// FlowMetrics provides methods to update payment flow metrics
type FlowMetrics struct{}

// NewFlowMetrics creates a new instance of FlowMetrics
func NewFlowMetrics() *FlowMetrics {
	return &FlowMetrics{}
}

// FlowOpened records a newly opened flow
func (fm *FlowMetrics) FlowOpened() {
	flowsOpen.Inc()
}

// FlowClosed records a closed flow
func (fm *FlowMetrics) FlowClosed() {
	flowsOpen.Dec()
}

// StateTransition records a flow entering a new state
func (fm *FlowMetrics) StateTransition(to payflow.State) {
	flowStateTransitionsTotal.WithLabelValues(string(to)).Inc()
}

// DecodeFinished records a completed invoice decode
func (fm *FlowMetrics) DecodeFinished(protocol, status string, elapsed time.Duration) {
	flowDecodesTotal.WithLabelValues(protocol, status).Inc()
	flowDecodeDuration.WithLabelValues(protocol).Observe(elapsed.Seconds())
}

// DispatchFinished records a completed payment dispatch
func (fm *FlowMetrics) DispatchFinished(protocol, status string, elapsed time.Duration) {
	flowDispatchesTotal.WithLabelValues(protocol, status).Inc()
	flowDispatchDuration.WithLabelValues(protocol).Observe(elapsed.Seconds())
}
