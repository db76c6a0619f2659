package coursegate_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	coursegate "github.com/hakanda/coursegate"
	"github.com/hakanda/coursegate/store/memory"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// recordMailer captures delivered links and can be told to fail.
type recordMailer struct {
	mu    sync.Mutex
	urls  []string
	to    []string
	fail  bool
	calls int
}

func (m *recordMailer) SendMagicLink(_ context.Context, toAddress, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.to = append(m.to, toAddress)
	m.urls = append(m.urls, url)
	return nil
}

func (m *recordMailer) lastURL(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.urls) == 0 {
		t.Fatal("no magic link was delivered")
	}
	return m.urls[len(m.urls)-1]
}

func (m *recordMailer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func tokenFromURL(t *testing.T, url string) string {
	t.Helper()
	_, token, ok := strings.Cut(url, "?token=")
	if !ok || token == "" {
		t.Fatalf("link %q carries no token", url)
	}
	return token
}

type testFixture struct {
	engine *coursegate.Engine
	store  *memory.Store
	mailer *recordMailer
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()

	store := memory.New()
	mailer := &recordMailer{}

	cfg := coursegate.DefaultConfig()
	cfg.Session.Secret = testSecret
	cfg.MagicLink.BaseURL = "https://course.example.com"

	engine, err := coursegate.New().
		WithConfig(cfg).
		WithUserStore(store).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testFixture{engine: engine, store: store, mailer: mailer}
}

func (f *testFixture) seedIdentity(t *testing.T, email string, status coursegate.PaymentStatus) *coursegate.Identity {
	t.Helper()
	identity := &coursegate.Identity{
		ID:            "id-" + email,
		Email:         email,
		PaymentStatus: status,
	}
	if err := f.store.Upsert(context.Background(), identity); err != nil {
		t.Fatalf("seed %s: %v", email, err)
	}
	return identity
}

func (f *testFixture) metric(t *testing.T, id coursegate.MetricID) uint64 {
	t.Helper()
	return f.engine.MetricsSnapshot().Counters[id]
}

func TestBuilderRequiresCollaborators(t *testing.T) {
	cfg := coursegate.DefaultConfig()
	cfg.Session.Secret = testSecret
	cfg.MagicLink.BaseURL = "https://course.example.com"

	tests := []struct {
		name  string
		build func() (*coursegate.Engine, error)
	}{
		{name: "missing user store", build: func() (*coursegate.Engine, error) {
			return coursegate.New().WithConfig(cfg).WithMailer(&recordMailer{}).Build()
		}},
		{name: "missing mailer", build: func() (*coursegate.Engine, error) {
			return coursegate.New().WithConfig(cfg).WithUserStore(memory.New()).Build()
		}},
		{name: "missing secret", build: func() (*coursegate.Engine, error) {
			bad := cfg
			bad.Session.Secret = nil
			return coursegate.New().WithConfig(bad).WithUserStore(memory.New()).WithMailer(&recordMailer{}).Build()
		}},
		{name: "short secret", build: func() (*coursegate.Engine, error) {
			bad := cfg
			bad.Session.Secret = []byte("short")
			return coursegate.New().WithConfig(bad).WithUserStore(memory.New()).WithMailer(&recordMailer{}).Build()
		}},
		{name: "missing base URL", build: func() (*coursegate.Engine, error) {
			bad := cfg
			bad.MagicLink.BaseURL = ""
			return coursegate.New().WithConfig(bad).WithUserStore(memory.New()).WithMailer(&recordMailer{}).Build()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.build(); err == nil {
				t.Fatal("Build should have failed")
			}
		})
	}
}

func TestBuilderRejectsSecondBuild(t *testing.T) {
	cfg := coursegate.DefaultConfig()
	cfg.Session.Secret = testSecret
	cfg.MagicLink.BaseURL = "https://course.example.com"

	b := coursegate.New().WithConfig(cfg).WithUserStore(memory.New()).WithMailer(&recordMailer{})
	engine, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build should fail")
	}
}
