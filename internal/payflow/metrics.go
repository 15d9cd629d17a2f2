package payflow

import "time"

// Metrics receives flow lifecycle events. The metrics package provides the
// prometheus implementation; a nil manager metrics falls back to the no-op.
type Metrics interface {
	FlowOpened()
	FlowClosed()
	StateTransition(to State)
	DecodeFinished(protocol, status string, elapsed time.Duration)
	DispatchFinished(protocol, status string, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) FlowOpened() {}

func (nopMetrics) FlowClosed() {}

func (nopMetrics) StateTransition(State) {}

func (nopMetrics) DecodeFinished(string, string, time.Duration) {}

func (nopMetrics) DispatchFinished(string, string, time.Duration) {}
