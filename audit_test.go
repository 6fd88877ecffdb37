package tokenlife

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newAuditTestEngine(t *testing.T, sink AuditSink) (*Engine, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserProvider(newTestUserProvider()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func collectEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for audit event %q", eventType)
		}
	}
}

func TestAuditEventsForLifecycle(t *testing.T) {
	sink := NewChannelSink(64)
	engine, done := newAuditTestEngine(t, sink)
	defer done()

	ctx := WithClientIP(context.Background(), "198.51.100.7")
	created, err := engine.CreateSession(ctx, "u1", AuthMethodPassword)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	event := collectEvent(t, sink, auditEventSessionCreated)
	if !event.Success || event.UserID != "u1" || event.SessionID != created.SessionID {
		t.Fatalf("unexpected session_created event: %+v", event)
	}
	if event.IP != "198.51.100.7" {
		t.Fatalf("expected client IP on event, got %q", event.IP)
	}
	if event.Metadata["auth_method"] != "password" {
		t.Fatalf("expected auth_method metadata, got %v", event.Metadata)
	}

	if _, err := engine.Rotate(ctx, created.RefreshToken); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	collectEvent(t, sink, auditEventRotateSuccess)

	if _, err := engine.Rotate(ctx, created.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}
	reuse := collectEvent(t, sink, auditEventRotateReuse)
	if reuse.Success {
		t.Fatal("reuse event must not be marked successful")
	}
	if reuse.Error != string(auditErrRefreshReuse) {
		t.Fatalf("expected refresh_reuse error code, got %q", reuse.Error)
	}
	if reuse.Metadata["revoked"] == "" {
		t.Fatalf("expected cascade count metadata, got %v", reuse.Metadata)
	}
}

func TestAuditDispatcherDropAccounting(t *testing.T) {
	block := make(chan struct{})
	sink := blockingSink{release: block}

	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(block)
		d.Close()
	}()

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "x"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a full buffer")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
}
