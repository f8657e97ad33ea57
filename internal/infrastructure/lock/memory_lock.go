package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type holder struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker provides the locker contract for single-process wiring
// and tests, with the same TTL-expiry semantics as the Redis locker.
type MemoryLocker struct {
	mu      sync.Mutex
	holders map[string]holder
	now     func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		holders: make(map[string]holder),
		now:     time.Now,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("lock key is required")
	}
	if ttl <= 0 {
		return "", false, fmt.Errorf("lock ttl must be > 0")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if current, ok := l.holders[key]; ok && current.expiresAt.After(now) {
		return "", false, nil
	}

	token, err := newToken()
	if err != nil {
		return "", false, fmt.Errorf("generate lock token: %w", err)
	}
	l.holders[key] = holder{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.holders[key]; ok && current.token == token {
		delete(l.holders, key)
	}
	return nil
}
