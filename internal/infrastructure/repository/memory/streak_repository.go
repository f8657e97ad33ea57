package memory

import (
	"context"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/streak"
)

type StreakRepository struct {
	store *Store
}

func NewStreakRepository(store *Store) *StreakRepository {
	return &StreakRepository{store: store}
}

func (r *StreakRepository) Get(_ context.Context, userID string) (streak.UserStreak, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, ok := r.store.streaks[userID]
	if !ok {
		return streak.UserStreak{}, false, nil
	}
	return s, true, nil
}

func (r *StreakRepository) Upsert(_ context.Context, s streak.UserStreak) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.streaks[s.UserID] = s
	return nil
}
