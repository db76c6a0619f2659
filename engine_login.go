package coursegate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestMagicLink is the login entry point. It resolves the identity for
// email, enforces the payment gate, issues a fresh single-use token, and
// hands the link to the mailer.
//
// Issuing overwrites any prior unconsumed token: at most one magic link is
// live per identity. Delivery failure does not roll the token back and is
// never retried here; the caller reports success once the token persisted.
func (e *Engine) RequestMagicLink(ctx context.Context, email string) error {
	if e == nil || e.userStore == nil || e.mailer == nil {
		return ErrEngineNotReady
	}
	if !emailRx.MatchString(email) {
		return ErrInvalidEmail
	}

	identity, err := e.userStore.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			e.metricInc(MetricMagicLinkDenied)
			e.emitAudit(ctx, auditEventMagicLinkRequested, false, "", email, ErrIdentityNotFound, nil)
			return ErrIdentityNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.gateMagicLink(identity); err != nil {
		e.metricInc(MetricMagicLinkDenied)
		e.emitAudit(ctx, auditEventMagicLinkRequested, false, identity.ID, email, err, nil)
		return err
	}

	return e.issueMagicLink(ctx, identity)
}

// gateMagicLink is the single guarded entry point for "may this identity
// receive a magic link". Every issuing workflow goes through it so the
// paid-only invariant is enforced exactly once.
func (e *Engine) gateMagicLink(identity *Identity) error {
	if identity == nil {
		return ErrIdentityNotFound
	}
	if !identity.Paid() {
		return ErrEnrollmentRequired
	}
	return nil
}

// issueMagicLink generates and persists the token, then triggers delivery.
// Callers must have passed gateMagicLink first.
func (e *Engine) issueMagicLink(ctx context.Context, identity *Identity) error {
	token := uuid.NewString()
	expiresAt := time.Now().Add(e.config.MagicLink.TTL)

	if err := e.userStore.SetMagicLink(ctx, identity.ID, token, expiresAt); err != nil {
		e.emitAudit(ctx, auditEventMagicLinkRequested, false, identity.ID, identity.Email, ErrStoreUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricMagicLinkRequested)
	e.emitAudit(ctx, auditEventMagicLinkRequested, true, identity.ID, identity.Email, nil, nil)

	url := e.magicLinkURL(token)
	if err := e.mailer.SendMagicLink(ctx, identity.Email, url); err != nil {
		// Issuance stands: the token is valid until it expires even when
		// the email never arrives.
		e.metricInc(MetricDeliveryFailure)
		e.emitAudit(ctx, auditEventMagicLinkDelivery, false, identity.ID, identity.Email, err, nil)
		return nil
	}

	e.emitAudit(ctx, auditEventMagicLinkDelivery, true, identity.ID, identity.Email, nil, nil)
	return nil
}
