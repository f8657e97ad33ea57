package streak

import "context"

// Repository describes streak persistence needs from use cases.
type Repository interface {
	Get(ctx context.Context, userID string) (UserStreak, bool, error)
	Upsert(ctx context.Context, s UserStreak) error
}
