package coursegate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// VerifyMagicLink validates a presented token and mints a session credential.
//
// The sequence is lookup → validate → consume → mint, with consumption
// atomic in the store: the token is cleared before success is returned, so a
// replayed link observes ErrTokenNotFound even if the winning response was
// retried. Concurrent attempts with the same token produce exactly one
// success.
//
// All rejections map to the same external behavior (redirect to login);
// they stay distinguishable here and in the audit stream.
func (e *Engine) VerifyMagicLink(ctx context.Context, token string) (*VerifyResult, error) {
	if e == nil || e.userStore == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if token == "" {
		e.metricInc(MetricVerifyFailure)
		return nil, ErrTokenNotFound
	}

	identity, err := e.userStore.ConsumeMagicLink(ctx, token, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired):
			e.metricInc(MetricVerifyFailure)
			e.emitAudit(ctx, auditEventMagicLinkVerified, false, "", "", err, nil)
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	// The token is consumed at this point regardless of outcome. An unpaid
	// identity holding a valid token burns it without receiving a session.
	if !identity.Paid() {
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventMagicLinkVerified, false, identity.ID, identity.Email, ErrEnrollmentRequired, nil)
		return nil, ErrEnrollmentRequired
	}

	credential, err := e.sessions.Mint(identity.ID, identity.Email)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventMagicLinkVerified, false, identity.ID, identity.Email, ErrSessionMint, nil)
		return nil, fmt.Errorf("%w: %v", ErrSessionMint, err)
	}

	e.metricInc(MetricVerifySuccess)
	e.metricInc(MetricSessionMinted)
	e.emitAudit(ctx, auditEventMagicLinkVerified, true, identity.ID, identity.Email, nil, nil)
	e.emitAudit(ctx, auditEventSessionMinted, true, identity.ID, identity.Email, nil, nil)

	return &VerifyResult{
		Identity: identity,
		Session:  credential,
	}, nil
}
