package contest

import (
	"context"
	"time"
)

// Repository describes contest persistence needs from use cases.
//
// Multi-row operations (CompleteActiveAndCreate, Settle,
// CreateRewardsAndUpdateEntries) are single transactions in every
// implementation: their effects are visible all together or not at all.
type Repository interface {
	GetActive(ctx context.Context) (Contest, bool, error)
	GetByID(ctx context.Context, contestID string) (Contest, bool, error)

	// CompleteActiveAndCreate marks every ACTIVE contest COMPLETED and
	// creates next as the sole ACTIVE one, in one transaction.
	CompleteActiveAndCreate(ctx context.Context, next Contest) (Contest, error)

	// ListEntries returns a contest's entries ordered by points
	// descending, ties broken by entry creation order.
	ListEntries(ctx context.Context, contestID string) ([]Entry, error)

	GetEntry(ctx context.Context, contestID, userID string) (Entry, bool, error)
	CountEntries(ctx context.Context, contestID string) (int, error)

	// Settle assigns the given ranks, marks the contest COMPLETED and
	// stores its settlement metadata, in one transaction. ranks maps
	// userID to 1-based rank.
	Settle(ctx context.Context, contestID string, ranks map[string]int, meta Metadata) error

	// ListRewards returns every reward created for a contest.
	ListRewards(ctx context.Context, contestID string) ([]Reward, error)

	GetReward(ctx context.Context, rewardID string) (Reward, bool, error)

	// CreateRewardsAndUpdateEntries batch-inserts rewards and applies
	// entry metadata updates in one transaction. Contest sizes run to
	// the thousands, so implementations must batch rather than issue a
	// write per reward. It returns the number of rewards actually
	// inserted: rows lost to the uniqueness key under a concurrent
	// distribution are not counted.
	CreateRewardsAndUpdateEntries(ctx context.Context, rewards []Reward, updates []EntryMetadataUpdate) (int, error)

	// MarkRewardClaimed transitions a PENDING reward to CLAIMED. It
	// returns false without error when the reward was not PENDING, so
	// concurrent claims cannot both succeed.
	MarkRewardClaimed(ctx context.Context, rewardID string, claimedAt time.Time) (bool, error)

	// ExpireRewards moves PENDING rewards whose expiry has passed to
	// EXPIRED and reports how many were transitioned.
	ExpireRewards(ctx context.Context, now time.Time) (int, error)
}
