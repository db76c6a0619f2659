// Package coursegate provides the passwordless authentication core for a
// paid-enrollment course site: magic-link issuance and verification, stateless
// JWT session credentials, and fixed-window request rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. All durable state lives in the caller-provided [UserStore];
// the only in-process mutable state is the rate limiter's counter store.
//
// # Architecture boundaries
//
// coursegate is the public surface. It exposes [Engine], [Builder], [Config],
// the [UserStore] and [Mailer] collaborator interfaces, and value types.
// Admission control lives in the ratelimit sub-package, session credentials in
// session, and the HTTP request gate in middleware.
//
// # What this package must NOT do
//
//   - Persist anything itself: the user store is an external collaborator.
//   - Retry token issuance or delivery; a retried issuance would silently
//     invalidate a token a user is mid-flight using.
//   - Distinguish token rejection reasons to the HTTP client. Rejections are
//     reason-tagged in audit events only.
package coursegate
