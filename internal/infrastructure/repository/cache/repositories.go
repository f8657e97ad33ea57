package cache

import (
	"context"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/contest"
	basecache "github.com/ScotianOG/the-soless-system-sub002/internal/platform/cache"
)

// ContestRepository caches the hot contest read paths in front of the
// persistent repository. GetActive runs on every tracked engagement, so
// even a short TTL takes most of that traffic off the database. Every
// lifecycle write drops the "contest:" prefix, the same namespace the
// reward manager invalidates. The cache is per process: a round settled
// elsewhere can look ACTIVE here until the TTL lapses, which is why the
// engagement write path re-validates contest status inside its own
// transaction.
type ContestRepository struct {
	next  contest.Repository
	cache *basecache.Store
}

func NewContestRepository(next contest.Repository, cache *basecache.Store) *ContestRepository {
	return &ContestRepository{next: next, cache: cache}
}

type cachedActive struct {
	value  contest.Contest
	exists bool
}

func (r *ContestRepository) GetActive(ctx context.Context) (contest.Contest, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, "contest:active", func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetActive(ctx)
		if err != nil {
			return nil, err
		}
		return cachedActive{value: item, exists: exists}, nil
	})
	if err != nil {
		return contest.Contest{}, false, err
	}

	cached, _ := v.(cachedActive)
	return cached.value, cached.exists, nil
}

func (r *ContestRepository) GetByID(ctx context.Context, contestID string) (contest.Contest, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, "contest:id:"+contestID, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetByID(ctx, contestID)
		if err != nil {
			return nil, err
		}
		return cachedActive{value: item, exists: exists}, nil
	})
	if err != nil {
		return contest.Contest{}, false, err
	}

	cached, _ := v.(cachedActive)
	return cached.value, cached.exists, nil
}

func (r *ContestRepository) CompleteActiveAndCreate(ctx context.Context, next contest.Contest) (contest.Contest, error) {
	created, err := r.next.CompleteActiveAndCreate(ctx, next)
	if err != nil {
		return contest.Contest{}, err
	}
	r.invalidate(ctx)
	return created, nil
}

func (r *ContestRepository) ListEntries(ctx context.Context, contestID string) ([]contest.Entry, error) {
	return r.next.ListEntries(ctx, contestID)
}

func (r *ContestRepository) GetEntry(ctx context.Context, contestID, userID string) (contest.Entry, bool, error) {
	return r.next.GetEntry(ctx, contestID, userID)
}

func (r *ContestRepository) CountEntries(ctx context.Context, contestID string) (int, error) {
	return r.next.CountEntries(ctx, contestID)
}

func (r *ContestRepository) Settle(ctx context.Context, contestID string, ranks map[string]int, meta contest.Metadata) error {
	if err := r.next.Settle(ctx, contestID, ranks, meta); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *ContestRepository) ListRewards(ctx context.Context, contestID string) ([]contest.Reward, error) {
	return r.next.ListRewards(ctx, contestID)
}

func (r *ContestRepository) GetReward(ctx context.Context, rewardID string) (contest.Reward, bool, error) {
	return r.next.GetReward(ctx, rewardID)
}

func (r *ContestRepository) CreateRewardsAndUpdateEntries(ctx context.Context, rewards []contest.Reward, updates []contest.EntryMetadataUpdate) (int, error) {
	return r.next.CreateRewardsAndUpdateEntries(ctx, rewards, updates)
}

func (r *ContestRepository) MarkRewardClaimed(ctx context.Context, rewardID string, claimedAt time.Time) (bool, error) {
	return r.next.MarkRewardClaimed(ctx, rewardID, claimedAt)
}

func (r *ContestRepository) ExpireRewards(ctx context.Context, now time.Time) (int, error) {
	return r.next.ExpireRewards(ctx, now)
}

func (r *ContestRepository) invalidate(ctx context.Context) {
	r.cache.DeletePrefix(ctx, "contest:")
}
