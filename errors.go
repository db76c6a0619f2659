package coursegate

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method is called before
	// the builder wired its dependencies.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidEmail is returned for a syntactically invalid email address.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrIdentityNotFound is returned when no identity exists for an email.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrEnrollmentRequired is returned when an unpaid identity requests or
	// presents a magic link.
	ErrEnrollmentRequired = errors.New("enrollment payment required")
	// ErrAlreadyEnrolled is returned when a paid identity tries to enroll
	// again; callers redirect to login instead.
	ErrAlreadyEnrolled = errors.New("already enrolled")
	// ErrTokenNotFound is returned when no identity holds the presented
	// magic-link token. An already-consumed token reports the same error.
	ErrTokenNotFound = errors.New("magic link token not found")
	// ErrTokenExpired is returned when the presented magic-link token exists
	// but is past its expiry.
	ErrTokenExpired = errors.New("magic link token expired")
	// ErrStoreUnavailable wraps user-store failures. Never retried by the
	// engine; surfaced to callers as a generic upstream failure.
	ErrStoreUnavailable = errors.New("user store unavailable")
	// ErrSessionMint is returned when signing a session credential fails.
	ErrSessionMint = errors.New("session credential mint failed")
)
