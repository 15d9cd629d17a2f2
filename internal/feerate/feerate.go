// Package feerate maps user-facing fee policies onto on-chain fee rates.
// Preset rates are fixed; dynamic estimation is the node's concern.
package feerate

import "fmt"

type Policy string

const (
	PolicySlow   Policy = "slow"
	PolicyNormal Policy = "normal"
	PolicyFast   Policy = "fast"
	PolicyCustom Policy = "custom"
)

// Preset rates in sat/vB.
const (
	slowRate   uint64 = 1
	normalRate uint64 = 2
	fastRate   uint64 = 3
)

// Fee is a validated fee selection. CustomRate is only read for
// PolicyCustom.
type Fee struct {
	Policy     Policy
	CustomRate uint64
}

// Default is the selection a fresh draft starts with.
func Default() Fee {
	return Fee{Policy: PolicyNormal}
}

// New builds a fee selection, rejecting unknown policies and custom rates
// below 1 sat/vB.
func New(policy Policy, customRate uint64) (Fee, error) {
	switch policy {
	case PolicySlow, PolicyNormal, PolicyFast:
		return Fee{Policy: policy}, nil
	case PolicyCustom:
		if customRate < 1 {
			return Fee{}, fmt.Errorf("custom fee rate must be at least 1 sat/vB")
		}
		return Fee{Policy: PolicyCustom, CustomRate: customRate}, nil
	default:
		return Fee{}, fmt.Errorf("unknown fee policy %q", policy)
	}
}

// SatPerVB resolves the selection to a concrete rate.
func (f Fee) SatPerVB() uint64 {
	switch f.Policy {
	case PolicySlow:
		return slowRate
	case PolicyFast:
		return fastRate
	case PolicyCustom:
		return f.CustomRate
	default:
		return normalRate
	}
}
