package engagement

import (
	"context"
	"time"
)

// Record is the unit of the atomic engagement write: the engagement
// row, the ledger row, the user point increments, and (when a contest
// is active) the contest-entry upsert all commit together or not at all.
type Record struct {
	Engagement Engagement
	// ContestID links the award to the active contest. Empty outside
	// contest rounds.
	ContestID string
}

// Repository describes engagement persistence needs from use cases.
type Repository interface {
	// GetLast returns the most recent engagement of the given kind for
	// the user, if any.
	GetLast(ctx context.Context, userID string, platform Platform, engagementType Type) (Engagement, bool, error)

	// CountSince counts engagements of the given kind for the user with
	// timestamps at or after since.
	CountSince(ctx context.Context, userID string, platform Platform, engagementType Type, since time.Time) (int, error)

	// SumPointsSince totals ledger points for the user across all
	// platforms and types since the given instant.
	SumPointsSince(ctx context.Context, userID string, since time.Time) (int, error)

	// Record performs the atomic engagement write described on Record.
	Record(ctx context.Context, record Record) error

	// AwardBonus atomically increments the user's points and appends a
	// ledger row, independent of any engagement row. Used for streak
	// milestone bonuses.
	AwardBonus(ctx context.Context, userID string, platform Platform, points int, reason TransactionReason) error
}
