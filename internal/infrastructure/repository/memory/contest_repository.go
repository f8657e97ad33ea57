package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/contest"
)

type ContestRepository struct {
	store *Store
}

func NewContestRepository(store *Store) *ContestRepository {
	return &ContestRepository{store: store}
}

func (r *ContestRepository) GetActive(_ context.Context) (contest.Contest, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, id := range r.store.contestOrder {
		if c := r.store.contests[id]; c.Status == contest.StatusActive {
			return c, true, nil
		}
	}
	return contest.Contest{}, false, nil
}

func (r *ContestRepository) GetByID(_ context.Context, contestID string) (contest.Contest, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.contests[contestID]
	if !ok {
		return contest.Contest{}, false, nil
	}
	return c, true, nil
}

func (r *ContestRepository) CompleteActiveAndCreate(_ context.Context, next contest.Contest) (contest.Contest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, c := range r.store.contests {
		if c.Status == contest.StatusActive {
			c.Status = contest.StatusCompleted
			r.store.contests[id] = c
		}
	}

	r.store.contests[next.ID] = next
	r.store.contestOrder = append(r.store.contestOrder, next.ID)
	return next, nil
}

func (r *ContestRepository) ListEntries(_ context.Context, contestID string) ([]contest.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.listEntriesLocked(contestID), nil
}

func (r *ContestRepository) listEntriesLocked(contestID string) []contest.Entry {
	order := r.store.entryOrder[contestID]
	byUser := r.store.entries[contestID]

	out := make([]contest.Entry, 0, len(order))
	for _, userID := range order {
		out = append(out, byUser[userID])
	}
	// Points descending; creation order breaks ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Points > out[j].Points
	})
	return out
}

func (r *ContestRepository) GetEntry(_ context.Context, contestID, userID string) (contest.Entry, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entry, ok := r.store.entries[contestID][userID]
	if !ok {
		return contest.Entry{}, false, nil
	}
	return entry, true, nil
}

func (r *ContestRepository) CountEntries(_ context.Context, contestID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return len(r.store.entries[contestID]), nil
}

func (r *ContestRepository) Settle(_ context.Context, contestID string, ranks map[string]int, meta contest.Metadata) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	c, ok := r.store.contests[contestID]
	if !ok {
		return contest.ErrNoActiveContest
	}

	qualified := make(map[string]struct{}, len(meta.QualifiedUserIDs))
	for _, userID := range meta.QualifiedUserIDs {
		qualified[userID] = struct{}{}
	}

	for userID, rank := range ranks {
		entry, exists := r.store.entries[contestID][userID]
		if !exists {
			continue
		}
		assigned := rank
		entry.Rank = &assigned
		if _, ok := qualified[userID]; ok && entry.QualifiedAt == nil {
			entry.QualifiedAt = meta.SettledAt
		}
		r.store.entries[contestID][userID] = entry
	}

	c.Status = contest.StatusCompleted
	c.Metadata = meta
	r.store.contests[contestID] = c
	return nil
}

func (r *ContestRepository) ListRewards(_ context.Context, contestID string) ([]contest.Reward, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]contest.Reward, 0)
	for _, id := range r.store.rewardOrder {
		if reward := r.store.rewards[id]; reward.ContestID == contestID {
			out = append(out, reward)
		}
	}
	return out, nil
}

func (r *ContestRepository) GetReward(_ context.Context, rewardID string) (contest.Reward, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	reward, ok := r.store.rewards[rewardID]
	if !ok {
		return contest.Reward{}, false, nil
	}
	return reward, true, nil
}

func (r *ContestRepository) CreateRewardsAndUpdateEntries(_ context.Context, rewards []contest.Reward, updates []contest.EntryMetadataUpdate) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	inserted := 0
	for _, reward := range rewards {
		if r.rewardGrantedLocked(reward) {
			continue
		}
		r.store.rewards[reward.ID] = reward
		r.store.rewardOrder = append(r.store.rewardOrder, reward.ID)
		inserted++
	}
	for _, update := range updates {
		entry, ok := r.store.entries[update.ContestID][update.UserID]
		if !ok {
			continue
		}
		entry.Metadata = update.Metadata
		r.store.entries[update.ContestID][update.UserID] = entry
	}
	return inserted, nil
}

// rewardGrantedLocked mirrors the reward uniqueness key
// (contest, user, system, tier, rank).
func (r *ContestRepository) rewardGrantedLocked(reward contest.Reward) bool {
	for _, existing := range r.store.rewards {
		if existing.ContestID == reward.ContestID &&
			existing.UserID == reward.UserID &&
			existing.System == reward.System &&
			existing.TierName == reward.TierName &&
			existing.Rank == reward.Rank {
			return true
		}
	}
	return false
}

func (r *ContestRepository) MarkRewardClaimed(_ context.Context, rewardID string, claimedAt time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	reward, ok := r.store.rewards[rewardID]
	if !ok || reward.Status != contest.RewardPending {
		return false, nil
	}

	reward.Status = contest.RewardClaimed
	at := claimedAt
	reward.ClaimedAt = &at
	r.store.rewards[rewardID] = reward
	return true, nil
}

func (r *ContestRepository) ExpireRewards(_ context.Context, now time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	expired := 0
	for id, reward := range r.store.rewards {
		if reward.Status == contest.RewardPending && reward.Expired(now) {
			reward.Status = contest.RewardExpired
			r.store.rewards[id] = reward
			expired++
		}
	}
	return expired, nil
}
