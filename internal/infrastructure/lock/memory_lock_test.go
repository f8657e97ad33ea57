package lock

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLocker_Contention(t *testing.T) {
	t.Parallel()

	locker := NewMemoryLocker()
	ctx := context.Background()

	token, ok, err := locker.Acquire(ctx, "contest:lifecycle:start", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok || token == "" {
		t.Fatalf("expected first acquire to succeed")
	}

	_, ok, err = locker.Acquire(ctx, "contest:lifecycle:start", time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatalf("expected contention on held lock")
	}

	if err := locker.Release(ctx, "contest:lifecycle:start", token); err != nil {
		t.Fatalf("release: %v", err)
	}

	_, ok, err = locker.Acquire(ctx, "contest:lifecycle:start", time.Minute)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if !ok {
		t.Fatalf("expected acquire after release to succeed")
	}
}

func TestMemoryLocker_MismatchedTokenReleaseIsNoop(t *testing.T) {
	t.Parallel()

	locker := NewMemoryLocker()
	ctx := context.Background()

	token, ok, err := locker.Acquire(ctx, "k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	if err := locker.Release(ctx, "k", "stale-token"); err != nil {
		t.Fatalf("stale release: %v", err)
	}

	// Lock must still be held by the original token.
	if _, ok, _ := locker.Acquire(ctx, "k", time.Minute); ok {
		t.Fatalf("stale release must not free the lock")
	}
	if err := locker.Release(ctx, "k", token); err != nil {
		t.Fatalf("owner release: %v", err)
	}
}

func TestMemoryLocker_TTLExpiryAllowsReacquire(t *testing.T) {
	t.Parallel()

	locker := NewMemoryLocker()
	current := time.Unix(1_700_000_000, 0)
	locker.now = func() time.Time { return current }
	ctx := context.Background()

	if _, ok, err := locker.Acquire(ctx, "k", 30*time.Second); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	current = current.Add(29 * time.Second)
	if _, ok, _ := locker.Acquire(ctx, "k", 30*time.Second); ok {
		t.Fatalf("lock should still be held before TTL")
	}

	current = current.Add(2 * time.Second)
	if _, ok, err := locker.Acquire(ctx, "k", 30*time.Second); err != nil || !ok {
		t.Fatalf("expected acquire after TTL expiry: ok=%v err=%v", ok, err)
	}
}
