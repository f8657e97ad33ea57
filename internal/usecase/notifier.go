package usecase

import "context"

// TierRewardEvent announces a tier reward earned during settlement.
type TierRewardEvent struct {
	UserID     string
	ContestID  string
	Tier       string
	RewardType string
}

// RankRewardEvent announces a rank prize earned during settlement.
type RankRewardEvent struct {
	UserID    string
	ContestID string
	Rank      int
	Reward    string
}

// RewardNotifier is the delivery boundary for settlement events.
// Delivery is fire-and-forget: the reward manager logs failures and
// never rolls back settlement because of one.
type RewardNotifier interface {
	NotifyTierReward(ctx context.Context, event TierRewardEvent) error
	NotifyRankReward(ctx context.Context, event RankRewardEvent) error
}

// NopRewardNotifier discards every event. Used when no sink is
// configured.
type NopRewardNotifier struct{}

func (NopRewardNotifier) NotifyTierReward(context.Context, TierRewardEvent) error { return nil }
func (NopRewardNotifier) NotifyRankReward(context.Context, RankRewardEvent) error { return nil }
