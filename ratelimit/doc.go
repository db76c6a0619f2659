// Package ratelimit provides fixed-window admission control keyed by
// (route class, client identifier).
//
// # Window semantics
//
// Fixed-window counters, not sliding: the first touch for a key opens a
// window and sets count=1; touches inside the window increment; a touch
// after the window's reset point starts a fresh window regardless of the
// prior count. The Nth request in a window is admitted iff N <= the class
// quota, and a rejection reports how long until the window resets.
//
// Counters live behind [CounterStore] so a single-process in-memory map and
// a shared Redis deployment are interchangeable without touching the
// limiter's logic. The in-memory store sweeps expired windows on a fixed
// interval; the Redis store leans on key TTLs (INCR + conditional EXPIRE on
// first hit).
//
// # What this package must NOT do
//
//   - Resolve client identity; callers derive the key material.
//   - Fail a request on its own: a counter-store outage is reported to the
//     caller, which decides the degradation policy.
package ratelimit
