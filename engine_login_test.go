package coursegate_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	coursegate "github.com/hakanda/coursegate"
)

func TestRequestMagicLinkIssuesAndDelivers(t *testing.T) {
	f := newFixture(t)
	f.seedIdentity(t, "a@x.com", coursegate.PaymentPaid)

	if err := f.engine.RequestMagicLink(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("RequestMagicLink: %v", err)
	}

	url := f.mailer.lastURL(t)
	if !strings.HasPrefix(url, "https://course.example.com/verify?token=") {
		t.Fatalf("link = %q, want base URL + /verify", url)
	}

	stored, err := f.store.FindByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if stored.MagicLinkToken == "" {
		t.Fatal("token not persisted")
	}
	if stored.MagicLinkToken != tokenFromURL(t, url) {
		t.Fatal("delivered token differs from stored token")
	}

	remaining := time.Until(stored.MagicLinkExpiresAt)
	if remaining < 59*time.Minute || remaining > time.Hour {
		t.Fatalf("token validity = %v, want ~1h", remaining)
	}

	if got := f.metric(t, coursegate.MetricMagicLinkRequested); got != 1 {
		t.Fatalf("issuance counter = %d, want 1", got)
	}
}

func TestRequestMagicLinkRejectsMalformedEmail(t *testing.T) {
	f := newFixture(t)

	for _, email := range []string{"", "nope", "a@b", "a b@x.com", "@x.com", "a@x.c"} {
		if err := f.engine.RequestMagicLink(context.Background(), email); !errors.Is(err, coursegate.ErrInvalidEmail) {
			t.Errorf("email %q: want ErrInvalidEmail, got %v", email, err)
		}
	}
	if f.mailer.callCount() != 0 {
		t.Fatal("mailer must not be invoked for malformed addresses")
	}
}

func TestRequestMagicLinkUnknownEmail(t *testing.T) {
	f := newFixture(t)

	err := f.engine.RequestMagicLink(context.Background(), "ghost@x.com")
	if !errors.Is(err, coursegate.ErrIdentityNotFound) {
		t.Fatalf("want ErrIdentityNotFound, got %v", err)
	}
	if f.mailer.callCount() != 0 {
		t.Fatal("mailer must not be invoked for unknown addresses")
	}
	if got := f.metric(t, coursegate.MetricMagicLinkDenied); got != 1 {
		t.Fatalf("denied counter = %d, want 1", got)
	}
}

func TestRequestMagicLinkUnpaidIdentityGetsNoLink(t *testing.T) {
	f := newFixture(t)
	f.seedIdentity(t, "pending@x.com", coursegate.PaymentUnpaid)

	err := f.engine.RequestMagicLink(context.Background(), "pending@x.com")
	if !errors.Is(err, coursegate.ErrEnrollmentRequired) {
		t.Fatalf("want ErrEnrollmentRequired, got %v", err)
	}
	if f.mailer.callCount() != 0 {
		t.Fatal("unpaid identities must never receive a link")
	}

	stored, err := f.store.FindByEmail(context.Background(), "pending@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if stored.MagicLinkToken != "" {
		t.Fatal("no token may be persisted for unpaid identities")
	}
}

func TestRequestMagicLinkReissueInvalidatesPriorToken(t *testing.T) {
	f := newFixture(t)
	f.seedIdentity(t, "a@x.com", coursegate.PaymentPaid)
	ctx := context.Background()

	if err := f.engine.RequestMagicLink(ctx, "a@x.com"); err != nil {
		t.Fatal(err)
	}
	first := tokenFromURL(t, f.mailer.lastURL(t))

	if err := f.engine.RequestMagicLink(ctx, "a@x.com"); err != nil {
		t.Fatal(err)
	}
	second := tokenFromURL(t, f.mailer.lastURL(t))

	if first == second {
		t.Fatal("reissue must generate a fresh token")
	}

	if _, err := f.engine.VerifyMagicLink(ctx, first); !errors.Is(err, coursegate.ErrTokenNotFound) {
		t.Fatalf("overwritten token: want ErrTokenNotFound, got %v", err)
	}
	if _, err := f.engine.VerifyMagicLink(ctx, second); err != nil {
		t.Fatalf("current token should verify: %v", err)
	}
}

func TestRequestMagicLinkSurvivesDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.seedIdentity(t, "a@x.com", coursegate.PaymentPaid)
	f.mailer.fail = true

	// The caller still reports success; the token stands until expiry.
	if err := f.engine.RequestMagicLink(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("delivery failure must not surface: %v", err)
	}

	stored, err := f.store.FindByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if stored.MagicLinkToken == "" {
		t.Fatal("token must persist despite failed delivery")
	}
	if got := f.metric(t, coursegate.MetricDeliveryFailure); got != 1 {
		t.Fatalf("delivery failure counter = %d, want 1", got)
	}

	if _, err := f.engine.VerifyMagicLink(context.Background(), stored.MagicLinkToken); err != nil {
		t.Fatalf("undelivered token must still verify: %v", err)
	}
}
