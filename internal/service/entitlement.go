package service

import (
	"context"
	"sync/atomic"
)

// EntitlementOracle reports whether the user currently holds a premium entitlement.
// The value may change at any time; callers read it at the moment of each decision.
type EntitlementOracle interface {
	IsPremiumActive(ctx context.Context) bool
}

// StaticEntitlement is a process-local oracle toggled by configuration or the entitlement endpoint.
type StaticEntitlement struct {
	premium atomic.Bool
}

// NewStaticEntitlement constructs the oracle with its initial value.
func NewStaticEntitlement(premium bool) *StaticEntitlement {
	e := &StaticEntitlement{}
	e.premium.Store(premium)
	return e
}

// IsPremiumActive implements EntitlementOracle.
func (e *StaticEntitlement) IsPremiumActive(context.Context) bool {
	return e != nil && e.premium.Load()
}

// SetPremium flips the entitlement.
func (e *StaticEntitlement) SetPremium(premium bool) {
	e.premium.Store(premium)
}
