package contest

import "time"

// Status is the lifecycle state of a contest round.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// Contest is a time-boxed competitive round. At most one contest is
// ACTIVE at any time.
type Contest struct {
	ID        string
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Status    Status
	Metadata  Metadata
}

// Metadata carries settlement bookkeeping for a completed contest.
type Metadata struct {
	QualifiedUserIDs []string `json:"qualified_user_ids,omitempty"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
}

// Entry is the per (contest, user) standing. Points only increment
// while the contest is ACTIVE; Rank is assigned exactly once during
// settlement.
type Entry struct {
	ContestID   string
	UserID      string
	Points      int
	Rank        *int
	QualifiedAt *time.Time
	Metadata    EntryMetadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EntryMetadata records the settlement outcome for display.
type EntryMetadata struct {
	HighestTier      string `json:"highest_tier,omitempty"`
	Rank             int    `json:"rank,omitempty"`
	PrizeDescription string `json:"prize_description,omitempty"`
}

// RewardSystem distinguishes threshold rewards from finishing-position
// prizes.
type RewardSystem string

const (
	RewardSystemTier RewardSystem = "tier"
	RewardSystemRank RewardSystem = "rank"
)

// RewardStatus is the claim lifecycle of a reward.
type RewardStatus string

const (
	RewardPending RewardStatus = "PENDING"
	RewardClaimed RewardStatus = "CLAIMED"
	RewardExpired RewardStatus = "EXPIRED"
)

// Reward is one distributable prize created during settlement: one per
// qualified tier plus at most one per qualifying rank.
type Reward struct {
	ID        string
	ContestID string
	UserID    string
	Type      string
	System    RewardSystem
	// TierName is set for tier rewards, Rank for rank rewards. Together
	// with ContestID and UserID they key the reward uniquely, which is
	// what makes re-running distribution idempotent.
	TierName  string
	Rank      int
	Status    RewardStatus
	ExpiresAt *time.Time
	ClaimedAt *time.Time
	CreatedAt time.Time
}

// Expired reports whether the reward's expiry, if set, has passed.
func (r Reward) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// EntryMetadataUpdate is a queued settlement write for one entry.
type EntryMetadataUpdate struct {
	ContestID string
	UserID    string
	Metadata  EntryMetadata
}
