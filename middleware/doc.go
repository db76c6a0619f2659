// Package middleware provides the per-request gate: rate-limit admission,
// session-cookie authentication, and redirect handling for protected routes.
//
// Decision order per request: resolve the route class and run the rate
// limiter (429 with a retry hint on rejection); redirect unauthenticated
// requests for protected prefixes to the login page; verify any presented
// session cookie, expiring it and redirecting on failure; otherwise pass
// the request through with the decoded claims in the context.
package middleware
