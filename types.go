package coursegate

import (
	"context"
	"time"
)

// PaymentStatus represents the enrollment payment state of an identity.
// Only paid identities may receive a magic link or a session credential.
type PaymentStatus string

const (
	// PaymentUnpaid is the state of an identity that enrolled but has not
	// completed checkout.
	PaymentUnpaid PaymentStatus = "unpaid"
	// PaymentPaid is the state of an identity whose checkout completed.
	PaymentPaid PaymentStatus = "paid"
)

// Identity is the user record the engine operates on. It is owned by the
// external [UserStore]; the engine only reads and writes the fields below.
//
// MagicLinkToken and MagicLinkExpiresAt are always set and cleared together:
// a non-zero token implies a non-zero expiry. They are written by issuance,
// consumed exactly once by verification, and never read anywhere else.
type Identity struct {
	ID                 string
	Email              string
	PaymentStatus      PaymentStatus
	MagicLinkToken     string
	MagicLinkExpiresAt time.Time
	LastLogin          time.Time
}

// Paid reports whether the identity has completed enrollment payment.
func (i *Identity) Paid() bool {
	return i != nil && i.PaymentStatus == PaymentPaid
}

// UserStore is the interface callers must implement to integrate coursegate
// with their user database. The store must provide read-after-write
// consistency for the fields the engine touches.
//
// ConsumeMagicLink is the single-use enforcement point: it atomically clears
// the token and expiry and records the login time, but only when the stored
// token matches and has not expired. Under concurrent verification of the
// same token exactly one caller receives the identity; later callers get
// [ErrTokenNotFound] ([ErrTokenExpired] when the token is still present but
// past its expiry).
type UserStore interface {
	// FindByEmail returns the identity for email, or ErrIdentityNotFound.
	FindByEmail(ctx context.Context, email string) (*Identity, error)

	// FindByMagicLinkToken returns the identity currently holding token,
	// or ErrTokenNotFound. Expiry is not checked here.
	FindByMagicLinkToken(ctx context.Context, token string) (*Identity, error)

	// SetMagicLink stores a new token/expiry pair on the identity,
	// overwriting any prior unconsumed token.
	SetMagicLink(ctx context.Context, identityID, token string, expiresAt time.Time) error

	// ConsumeMagicLink atomically clears the matching, unexpired token and
	// sets LastLogin to now. See the interface comment for race semantics.
	ConsumeMagicLink(ctx context.Context, token string, now time.Time) (*Identity, error)

	// SetPaymentStatus updates the payment flag for the identity with the
	// given email.
	SetPaymentStatus(ctx context.Context, email string, status PaymentStatus) error

	// Upsert creates the identity or replaces the stored record with the
	// same ID.
	Upsert(ctx context.Context, identity *Identity) error
}

// Mailer delivers a magic-link URL to a registered address. Delivery is
// fire-and-forget from the engine's perspective: a failure is audited but
// never rolls back issuance, so a user may receive no email for a valid,
// unconsumed token until it expires.
type Mailer interface {
	SendMagicLink(ctx context.Context, toAddress, url string) error
}

// VerifyResult is returned by [Engine.VerifyMagicLink] on success. Session
// is the signed credential to hand to the client; it is the sole artifact of
// session state.
type VerifyResult struct {
	Identity *Identity
	Session  string
}

// EnrollResult is returned by [Engine.Enroll]. Created reports whether a new
// identity record was inserted, as opposed to an existing unpaid identity
// being reset for another checkout attempt.
type EnrollResult struct {
	IdentityID string
	Created    bool
}
