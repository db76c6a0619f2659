package coursegate

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAuditDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	for i, eventType := range []string{auditEventMagicLinkRequested, auditEventMagicLinkVerified, auditEventSessionMinted} {
		d.Emit(context.Background(), AuditEvent{
			Timestamp: time.Now(),
			EventType: eventType,
			Success:   i%2 == 0,
		})
	}
	d.Close()

	want := []string{auditEventMagicLinkRequested, auditEventMagicLinkVerified, auditEventSessionMinted}
	for _, eventType := range want {
		select {
		case event := <-sink.Events():
			if event.EventType != eventType {
				t.Fatalf("event = %q, want %q", event.EventType, eventType)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %q never arrived", eventType)
		}
	}
}

func TestAuditDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled auditing must not start a dispatcher")
	}
	// Emitting through the nil dispatcher is a no-op.
	d.Emit(context.Background(), AuditEvent{EventType: auditEventEnrollment})
	d.Close()
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	// The sink holds the consumer so the buffer stays occupied.
	release := make(chan struct{})
	sink := sinkFunc(func(context.Context, AuditEvent) { <-release })

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the consumer, second fills the buffer, the rest drop.
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventEnrollment})
	}

	if got := d.Dropped(); got == 0 {
		t.Fatal("expected dropped events under a stalled sink")
	}

	close(release)
	d.Close()
}

func TestAuditDispatcherEmitAfterCloseIsSafe(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1}, NoOpSink{})
	d.Close()
	d.Emit(context.Background(), AuditEvent{EventType: auditEventEnrollment})
	d.Close()
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		EventType: auditEventMagicLinkVerified,
		Email:     "a@x.com",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{
		EventType: auditEventMagicLinkVerified,
		Success:   false,
		Error:     "magic link token expired",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var first AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if first.EventType != auditEventMagicLinkVerified || !first.Success || first.Email != "a@x.com" {
		t.Fatalf("decoded event = %+v", first)
	}

	var second AuditEvent
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 1 is not valid JSON: %v", err)
	}
	if second.Success || second.Error == "" {
		t.Fatalf("decoded event = %+v", second)
	}
}

type sinkFunc func(ctx context.Context, event AuditEvent)

func (f sinkFunc) Emit(ctx context.Context, event AuditEvent) { f(ctx, event) }
