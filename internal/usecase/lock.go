package usecase

import (
	"context"
	"time"
)

// LifecycleLocker serializes contest lifecycle transitions across
// service instances. Acquire never blocks: on contention it returns
// ok=false immediately. TTL expiry guarantees forward progress if a
// holder crashes mid-transition.
type LifecycleLocker interface {
	// Acquire takes the lock and returns an owner token, or ok=false
	// when another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release frees the lock if token still owns it; a stale token is a
	// no-op so an expired holder cannot release a successor's lock.
	Release(ctx context.Context, key, token string) error
}
