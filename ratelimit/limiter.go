package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable wraps counter-store failures. The in-memory store
// never produces it.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// Route classes with dedicated quotas. Credential-issuance routes are
// tighter than read routes.
const (
	ClassLogin  = "login"
	ClassVerify = "verify"
	ClassEnroll = "enroll"
)

// Policy is the fixed per-route-class quota: Max requests per Window.
type Policy struct {
	Window time.Duration
	Max    int
}

// DefaultPolicies returns the reference quota table: login 5/min,
// verify 10/min, enroll 3/min.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		ClassLogin:  {Window: time.Minute, Max: 5},
		ClassVerify: {Window: time.Minute, Max: 10},
		ClassEnroll: {Window: time.Minute, Max: 3},
	}
}

// Decision is the outcome of an admission check. RetryAfter is set only on
// rejection and reports the time until the key's window resets.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// CounterStore is a per-key counter with TTL semantics. Incr creates the
// key with count=1 and a reset horizon of now+window, increments it inside
// the window, and starts a fresh window once the horizon passed.
// Implementations must serialize increments per key.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Limiter applies a per-route-class policy table over a CounterStore.
// Safe for concurrent use when the store is.
type Limiter struct {
	store    CounterStore
	policies map[string]Policy
}

// NewLimiter builds a Limiter. A nil policies map gets [DefaultPolicies].
func NewLimiter(store CounterStore, policies map[string]Policy) *Limiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Limiter{
		store:    store,
		policies: policies,
	}
}

// Admit checks one request against the quota for routeClass. Route classes
// without a policy are always admitted. The counter key is
// routeClass + ":" + clientID, so unidentifiable clients sharing the
// "unknown" identifier share one bucket.
func (l *Limiter) Admit(ctx context.Context, routeClass, clientID string) (Decision, error) {
	policy, ok := l.policies[routeClass]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	key := routeClass + ":" + clientID
	count, resetAt, err := l.store.Incr(ctx, key, policy.Window)
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if count > int64(policy.Max) {
		retryAfter := time.Until(resetAt)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{RetryAfter: retryAfter}, nil
	}

	return Decision{Allowed: true}, nil
}
