package coursegate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Enroll registers an email ahead of checkout. An identity that already paid
// gets ErrAlreadyEnrolled (the caller sends them to login); an existing
// unpaid identity is reset to unpaid for another checkout attempt; an
// unknown email gets a fresh unpaid record.
func (e *Engine) Enroll(ctx context.Context, email string) (*EnrollResult, error) {
	if e == nil || e.userStore == nil {
		return nil, ErrEngineNotReady
	}
	if !emailRx.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	existing, err := e.userStore.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrIdentityNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if existing != nil {
		if existing.Paid() {
			e.emitAudit(ctx, auditEventEnrollment, false, existing.ID, email, ErrAlreadyEnrolled, nil)
			return nil, ErrAlreadyEnrolled
		}
		if err := e.userStore.SetPaymentStatus(ctx, email, PaymentUnpaid); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.metricInc(MetricEnrollment)
		e.emitAudit(ctx, auditEventEnrollment, true, existing.ID, email, nil, nil)
		return &EnrollResult{IdentityID: existing.ID}, nil
	}

	identity := &Identity{
		ID:            uuid.NewString(),
		Email:         email,
		PaymentStatus: PaymentUnpaid,
	}
	if err := e.userStore.Upsert(ctx, identity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricEnrollment)
	e.emitAudit(ctx, auditEventEnrollment, true, identity.ID, email, nil, nil)
	return &EnrollResult{IdentityID: identity.ID, Created: true}, nil
}

// CompletePayment applies a checkout-completed event from the payment
// provider: it flips the identity to paid and issues the first magic link
// through the same guarded entry point the login workflow uses.
//
// The provider is an external event source; signature checking of its
// webhook happens at the HTTP surface, not here.
func (e *Engine) CompletePayment(ctx context.Context, email string) error {
	if e == nil || e.userStore == nil || e.mailer == nil {
		return ErrEngineNotReady
	}

	if err := e.userStore.SetPaymentStatus(ctx, email, PaymentPaid); err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			e.emitAudit(ctx, auditEventPaymentCompleted, false, "", email, ErrIdentityNotFound, nil)
			return ErrIdentityNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	identity, err := e.userStore.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPaymentCompleted)
	e.emitAudit(ctx, auditEventPaymentCompleted, true, identity.ID, email, nil, nil)

	if err := e.gateMagicLink(identity); err != nil {
		return err
	}
	return e.issueMagicLink(ctx, identity)
}
