package coursegate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	coursegate "github.com/hakanda/coursegate"
)

func issueLink(t *testing.T, f *testFixture, email string) string {
	t.Helper()
	if err := f.engine.RequestMagicLink(context.Background(), email); err != nil {
		t.Fatalf("RequestMagicLink(%s): %v", email, err)
	}
	return tokenFromURL(t, f.mailer.lastURL(t))
}

func TestVerifyMagicLinkMintsSingleUseSession(t *testing.T) {
	f := newFixture(t)
	f.seedIdentity(t, "a@x.com", coursegate.PaymentPaid)
	ctx := context.Background()

	token := issueLink(t, f, "a@x.com")

	result, err := f.engine.VerifyMagicLink(ctx, token)
	if err != nil {
		t.Fatalf("VerifyMagicLink: %v", err)
	}
	if result.Identity.Email != "a@x.com" {
		t.Errorf("identity email = %q", result.Identity.Email)
	}
	if result.Session == "" {
		t.Fatal("no session credential minted")
	}

	claims, err := f.engine.Sessions().Verify(result.Session)
	if err != nil {
		t.Fatalf("minted credential must verify: %v", err)
	}
	if claims.Email != "a@x.com" || claims.UID != result.Identity.ID {
		t.Fatalf("claims = %+v, want identity binding", claims)
	}

	// Replay of the same link.
	if _, err := f.engine.VerifyMagicLink(ctx, token); !errors.Is(err, coursegate.ErrTokenNotFound) {
		t.Fatalf("second use: want ErrTokenNotFound, got %v", err)
	}

	stored, err := f.store.FindByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if stored.MagicLinkToken != "" {
		t.Fatal("token must be cleared on consumption")
	}
	if stored.LastLogin.IsZero() {
		t.Fatal("LastLogin must be recorded on consumption")
	}
}

func TestVerifyMagicLinkRejectsUnknownAndEmptyTokens(t *testing.T) {
	f := newFixture(t)

	for _, token := range []string{"", "never-issued"} {
		if _, err := f.engine.VerifyMagicLink(context.Background(), token); !errors.Is(err, coursegate.ErrTokenNotFound) {
			t.Errorf("token %q: want ErrTokenNotFound, got %v", token, err)
		}
	}
	if got := f.metric(t, coursegate.MetricVerifyFailure); got != 2 {
		t.Fatalf("verify failure counter = %d, want 2", got)
	}
}

func TestVerifyMagicLinkRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)
	identity := f.seedIdentity(t, "a@x.com", coursegate.PaymentPaid)
	ctx := context.Background()

	if err := f.store.SetMagicLink(ctx, identity.ID, "stale-token", time.Now().Add(-time.Second)); err != nil {
		t.Fatal(err)
	}

	if _, err := f.engine.VerifyMagicLink(ctx, "stale-token"); !errors.Is(err, coursegate.ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
	if got := f.metric(t, coursegate.MetricSessionMinted); got != 0 {
		t.Fatal("no session may be minted for an expired token")
	}
}

func TestVerifyMagicLinkBoundaryJustBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	identity := f.seedIdentity(t, "a@x.com", coursegate.PaymentPaid)
	ctx := context.Background()

	// Comfortably inside the validity window.
	if err := f.store.SetMagicLink(ctx, identity.ID, "fresh-token", time.Now().Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	if _, err := f.engine.VerifyMagicLink(ctx, "fresh-token"); err != nil {
		t.Fatalf("token inside its window must verify: %v", err)
	}
}

func TestVerifyMagicLinkUnpaidIdentityBurnsTokenWithoutSession(t *testing.T) {
	f := newFixture(t)
	identity := f.seedIdentity(t, "pending@x.com", coursegate.PaymentUnpaid)
	ctx := context.Background()

	// A token that predates a refund or enrollment reset.
	if err := f.store.SetMagicLink(ctx, identity.ID, "leftover", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if _, err := f.engine.VerifyMagicLink(ctx, "leftover"); !errors.Is(err, coursegate.ErrEnrollmentRequired) {
		t.Fatalf("want ErrEnrollmentRequired, got %v", err)
	}
	if got := f.metric(t, coursegate.MetricSessionMinted); got != 0 {
		t.Fatal("unpaid identities must never receive a session")
	}

	// The attempt consumed the token.
	if _, err := f.engine.VerifyMagicLink(ctx, "leftover"); !errors.Is(err, coursegate.ErrTokenNotFound) {
		t.Fatalf("want ErrTokenNotFound after burn, got %v", err)
	}
}

func TestVerifyMagicLinkConcurrentAttemptsSingleWinner(t *testing.T) {
	f := newFixture(t)
	f.seedIdentity(t, "a@x.com", coursegate.PaymentPaid)
	token := issueLink(t, f, "a@x.com")

	const attempts = 16
	var wg sync.WaitGroup
	wg.Add(attempts)
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := f.engine.VerifyMagicLink(context.Background(), token)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, notFound int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, coursegate.ErrTokenNotFound):
			notFound++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if notFound != attempts-1 {
		t.Fatalf("notFound = %d, want %d", notFound, attempts-1)
	}
}
