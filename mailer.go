package coursegate

import (
	"context"
	"log/slog"
)

// NopMailer discards magic-link deliveries. Useful in tests that only
// exercise issuance state.
type NopMailer struct{}

// SendMagicLink does nothing.
func (NopMailer) SendMagicLink(context.Context, string, string) error { return nil }

// LogMailer writes the magic-link URL to a structured logger instead of
// sending email. Development use only: the URL embeds a live credential.
type LogMailer struct {
	Logger *slog.Logger
}

// SendMagicLink logs the delivery.
func (m LogMailer) SendMagicLink(ctx context.Context, toAddress, url string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "magic link issued", "to", toAddress, "url", url)
	return nil
}
