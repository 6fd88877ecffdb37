package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestSessionStore(t *testing.T) *SessionStore {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewSessionStore(rdb, "tl")
}

func liveSession(id, userID string) *SessionRecord {
	now := time.Now()
	return &SessionRecord{
		ID:           id,
		UserID:       userID,
		AuthMethod:   0,
		CreatedAt:    now.Unix(),
		ExpiresAt:    now.Add(time.Hour).Unix(),
		LastActiveAt: now.Unix(),
		ClientIP:     "203.0.113.9",
		UserAgent:    "curl/8.0",
	}
}

func TestSessionStorePutGet(t *testing.T) {
	ss := newTestSessionStore(t)
	ctx := context.Background()

	in := liveSession("s1", "u1")
	if err := ss.Put(ctx, in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	out, err := ss.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *out != *in {
		t.Fatalf("session mismatch: %+v != %+v", out, in)
	}

	if _, err := ss.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTouchUpdatesOnlyLiveSessions(t *testing.T) {
	ss := newTestSessionStore(t)
	ctx := context.Background()

	in := liveSession("s1", "u1")
	if err := ss.Put(ctx, in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	later := in.LastActiveAt + 300
	if err := ss.Touch(ctx, "s1", later); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	out, err := ss.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.LastActiveAt != later {
		t.Fatalf("expected lastActiveAt %d, got %d", later, out.LastActiveAt)
	}

	// A touch past the absolute expiry is ignored.
	wayLater := in.ExpiresAt + 10
	if err := ss.Touch(ctx, "s1", wayLater); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	out, err = ss.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.LastActiveAt != later {
		t.Fatalf("expected unchanged lastActiveAt, got %d", out.LastActiveAt)
	}

	// Missing sessions are a silent no-op.
	if err := ss.Touch(ctx, "missing", later); err != nil {
		t.Fatalf("touch of missing session errored: %v", err)
	}
}

func TestDeleteAllForUser(t *testing.T) {
	ss := newTestSessionStore(t)
	ctx := context.Background()

	if err := ss.Put(ctx, liveSession("s1", "u1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := ss.Put(ctx, liveSession("s2", "u1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := ss.Put(ctx, liveSession("s3", "u2")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	deleted, err := ss.DeleteAllForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteAllForUser failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deletions, got %d", deleted)
	}

	if _, err := ss.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected s1 gone, got %v", err)
	}
	if _, err := ss.Get(ctx, "s3"); err != nil {
		t.Fatalf("expected s3 present, got %v", err)
	}

	deleted, err = ss.DeleteAllForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("repeat DeleteAllForUser failed: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 on repeat, got %d", deleted)
	}
}

func TestSessionSweepExpired(t *testing.T) {
	ss := newTestSessionStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := ss.Put(ctx, liveSession("s1", "u1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	dead := liveSession("s2", "u1")
	dead.CreatedAt = now.Add(-2 * time.Hour).Unix()
	dead.ExpiresAt = now.Add(-time.Hour).Unix()
	dead.LastActiveAt = dead.CreatedAt
	if err := ss.Put(ctx, dead); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	removed, err := ss.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}

	if _, err := ss.Get(ctx, "s2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected s2 swept, got %v", err)
	}
	if _, err := ss.Get(ctx, "s1"); err != nil {
		t.Fatalf("expected s1 present, got %v", err)
	}
}
