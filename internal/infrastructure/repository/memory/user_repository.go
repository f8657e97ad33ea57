package memory

import (
	"context"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/user"
)

type UserRepository struct {
	store *Store
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) GetByID(_ context.Context, userID string) (user.User, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, ok := r.store.users[userID]
	if !ok {
		return user.User{}, false, nil
	}
	return u, true, nil
}

func (r *UserRepository) Create(_ context.Context, u user.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.users[u.ID] = u
	return nil
}
