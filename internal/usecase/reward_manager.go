package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/config"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/contest"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/cache"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/id"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/logging"
)

const (
	lockKeyContestStart = "contest:lifecycle:start"
	lockKeyContestEnd   = "contest:lifecycle:end"

	// Rank prizes are payout-style rewards and lapse if unclaimed; tier
	// rewards (whitelist, free mint) do not expire.
	rankRewardExpiry = 7 * 24 * time.Hour
)

// RewardManager owns the contest lifecycle state machine and reward
// distribution. Lifecycle transitions are serialized cluster-wide by
// the lifecycle locker; everything else relies on store transactions.
type RewardManager struct {
	contests contest.Repository
	locker   LifecycleLocker
	notifier RewardNotifier
	idgen    id.Generator
	cfg      config.ContestConfig
	cache    *cache.Store
	logger   *logging.Logger
	now      func() time.Time

	startLockTTL time.Duration
	endLockTTL   time.Duration
}

type RewardManagerOptions struct {
	StartLockTTL time.Duration
	EndLockTTL   time.Duration
}

func NewRewardManager(
	contests contest.Repository,
	locker LifecycleLocker,
	notifier RewardNotifier,
	idgen id.Generator,
	cfg config.ContestConfig,
	store *cache.Store,
	logger *logging.Logger,
	opts RewardManagerOptions,
) *RewardManager {
	if notifier == nil {
		notifier = NopRewardNotifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	startTTL := opts.StartLockTTL
	if startTTL <= 0 {
		startTTL = 30 * time.Second
	}
	endTTL := opts.EndLockTTL
	if endTTL <= 0 {
		endTTL = 60 * time.Second
	}

	return &RewardManager{
		contests:     contests,
		locker:       locker,
		notifier:     notifier,
		idgen:        idgen,
		cfg:          cfg,
		cache:        store,
		logger:       logger,
		now:          time.Now,
		startLockTTL: startTTL,
		endLockTTL:   endTTL,
	}
}

// StartNewContest opens a new round. Any contest still ACTIVE is
// completed first so the single-active-contest invariant holds even if
// a previous round was never explicitly ended.
func (m *RewardManager) StartNewContest(ctx context.Context) (contest.Contest, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RewardManager.StartNewContest")
	defer span.End()

	token, ok, err := m.locker.Acquire(ctx, lockKeyContestStart, m.startLockTTL)
	if err != nil {
		return contest.Contest{}, fmt.Errorf("acquire contest start lock: %w", err)
	}
	if !ok {
		return contest.Contest{}, &contest.LockAcquisitionError{Key: lockKeyContestStart}
	}
	defer m.releaseLock(ctx, lockKeyContestStart, token)

	contestID, err := m.idgen.NewID()
	if err != nil {
		return contest.Contest{}, fmt.Errorf("generate contest id: %w", err)
	}

	now := m.now().UTC()
	next := contest.Contest{
		ID:        contestID,
		Name:      "Round " + now.Format("2006-01-02 15:04"),
		StartTime: now,
		EndTime:   now.Add(time.Duration(m.cfg.RoundDurationHours) * time.Hour),
		Status:    contest.StatusActive,
	}

	created, err := m.contests.CompleteActiveAndCreate(ctx, next)
	if err != nil {
		return contest.Contest{}, fmt.Errorf("create contest round: %w", err)
	}

	m.invalidateContestReads(ctx)
	m.logger.InfoContext(ctx, "contest round started",
		"contest_id", created.ID,
		"ends_at", created.EndTime,
	)

	return created, nil
}

// EndCurrentContest settles the active round: every entry gets a rank
// in points-descending order (stable on ties by entry creation), the
// contest moves to COMPLETED, and rewards are distributed once the
// ranks are durable. Reward creation is deliberately a separate
// transaction so the ranking transaction stays small.
func (m *RewardManager) EndCurrentContest(ctx context.Context) (contest.Contest, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RewardManager.EndCurrentContest")
	defer span.End()

	token, ok, err := m.locker.Acquire(ctx, lockKeyContestEnd, m.endLockTTL)
	if err != nil {
		return contest.Contest{}, fmt.Errorf("acquire contest end lock: %w", err)
	}
	if !ok {
		return contest.Contest{}, &contest.LockAcquisitionError{Key: lockKeyContestEnd}
	}
	defer m.releaseLock(ctx, lockKeyContestEnd, token)

	active, ok, err := m.contests.GetActive(ctx)
	if err != nil {
		return contest.Contest{}, fmt.Errorf("get active contest: %w", err)
	}
	if !ok {
		return contest.Contest{}, contest.ErrNoActiveContest
	}

	entries, err := m.contests.ListEntries(ctx, active.ID)
	if err != nil {
		return contest.Contest{}, fmt.Errorf("list contest entries: %w", err)
	}

	now := m.now().UTC()
	ranks := make(map[string]int, len(entries))
	qualified := make([]string, 0, len(entries))
	for idx, entry := range entries {
		ranks[entry.UserID] = idx + 1
		if entry.Points >= m.cfg.MinPointsToQualify {
			qualified = append(qualified, entry.UserID)
		}
	}

	meta := contest.Metadata{
		QualifiedUserIDs: qualified,
		SettledAt:        &now,
	}
	if err := m.contests.Settle(ctx, active.ID, ranks, meta); err != nil {
		return contest.Contest{}, fmt.Errorf("settle contest %s: %w", active.ID, err)
	}

	m.invalidateContestReads(ctx)
	m.logger.InfoContext(ctx, "contest round settled",
		"contest_id", active.ID,
		"entries", len(entries),
		"qualified", len(qualified),
	)

	if _, err := m.DistributeRewards(ctx, active.ID); err != nil {
		return contest.Contest{}, err
	}

	settled, _, err := m.contests.GetByID(ctx, active.ID)
	if err != nil {
		return contest.Contest{}, fmt.Errorf("reload settled contest: %w", err)
	}
	return settled, nil
}

// DistributionResult summarizes one distribution pass.
type DistributionResult struct {
	ContestID       string
	Entries         int
	RewardsCreated  int
	AlreadyRewarded int
}

// DistributeRewards computes and persists every tier reward and rank
// prize for a settled contest. Re-running is idempotent: rewards are
// keyed by (contest, user, system, tier/rank), and already-created ones
// are skipped, so an operator retry after a timeout cannot double-award.
func (m *RewardManager) DistributeRewards(ctx context.Context, contestID string) (DistributionResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RewardManager.DistributeRewards")
	defer span.End()

	result := DistributionResult{ContestID: contestID}

	_, ok, err := m.contests.GetByID(ctx, contestID)
	if err != nil {
		return result, fmt.Errorf("get contest %s: %w", contestID, err)
	}
	if !ok {
		return result, fmt.Errorf("%w: contest %s", ErrNotFound, contestID)
	}

	entries, err := m.contests.ListEntries(ctx, contestID)
	if err != nil {
		return result, fmt.Errorf("list contest entries: %w", err)
	}
	result.Entries = len(entries)

	existing, err := m.contests.ListRewards(ctx, contestID)
	if err != nil {
		return result, fmt.Errorf("list existing rewards: %w", err)
	}
	granted := make(map[string]struct{}, len(existing))
	for _, reward := range existing {
		granted[rewardKey(reward.UserID, reward.System, reward.TierName, reward.Rank)] = struct{}{}
	}

	tiers := append([]config.Tier(nil), m.cfg.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinPoints < tiers[j].MinPoints
	})

	now := m.now().UTC()
	rewards := make([]contest.Reward, 0, len(entries))
	updates := make([]contest.EntryMetadataUpdate, 0, len(entries))
	tierEvents := make([]TierRewardEvent, 0, len(entries))
	rankEvents := make([]RankRewardEvent, 0, len(m.cfg.Prizes))

	for idx, entry := range entries {
		if entry.Points <= 0 {
			continue
		}
		rank := idx + 1

		highestTier := ""
		for _, tier := range tiers {
			if entry.Points < tier.MinPoints {
				continue
			}
			highestTier = tier.Name

			key := rewardKey(entry.UserID, contest.RewardSystemTier, tier.Name, 0)
			if _, done := granted[key]; done {
				result.AlreadyRewarded++
				continue
			}

			rewardID, err := m.idgen.NewID()
			if err != nil {
				return result, fmt.Errorf("generate reward id: %w", err)
			}
			rewards = append(rewards, contest.Reward{
				ID:        rewardID,
				ContestID: contestID,
				UserID:    entry.UserID,
				Type:      tier.Reward,
				System:    contest.RewardSystemTier,
				TierName:  tier.Name,
				Status:    contest.RewardPending,
				CreatedAt: now,
			})
			tierEvents = append(tierEvents, TierRewardEvent{
				UserID:     entry.UserID,
				ContestID:  contestID,
				Tier:       tier.Name,
				RewardType: tier.Reward,
			})
		}

		prizeDescription := ""
		if prize, ok := m.prizeForRank(rank); ok {
			prizeDescription = prize.Description

			key := rewardKey(entry.UserID, contest.RewardSystemRank, "", rank)
			if _, done := granted[key]; done {
				result.AlreadyRewarded++
			} else {
				rewardID, err := m.idgen.NewID()
				if err != nil {
					return result, fmt.Errorf("generate reward id: %w", err)
				}
				expiresAt := now.Add(rankRewardExpiry)
				rewards = append(rewards, contest.Reward{
					ID:        rewardID,
					ContestID: contestID,
					UserID:    entry.UserID,
					Type:      prize.Reward,
					System:    contest.RewardSystemRank,
					Rank:      rank,
					Status:    contest.RewardPending,
					ExpiresAt: &expiresAt,
					CreatedAt: now,
				})
				rankEvents = append(rankEvents, RankRewardEvent{
					UserID:    entry.UserID,
					ContestID: contestID,
					Rank:      rank,
					Reward:    prize.Reward,
				})
			}
		}

		updates = append(updates, contest.EntryMetadataUpdate{
			ContestID: contestID,
			UserID:    entry.UserID,
			Metadata: contest.EntryMetadata{
				HighestTier:      highestTier,
				Rank:             rank,
				PrizeDescription: prizeDescription,
			},
		})
	}

	inserted, err := m.contests.CreateRewardsAndUpdateEntries(ctx, rewards, updates)
	if err != nil {
		return result, fmt.Errorf("persist contest rewards: %w", err)
	}
	// Rows lost to the uniqueness key under a concurrent distribution
	// count as already rewarded, not created.
	result.RewardsCreated = inserted
	result.AlreadyRewarded += len(rewards) - inserted

	m.invalidateContestReads(ctx)
	m.logger.InfoContext(ctx, "contest rewards distributed",
		"contest_id", contestID,
		"rewards_created", result.RewardsCreated,
		"already_rewarded", result.AlreadyRewarded,
	)

	// Notification delivery is fire and forget; a sink failure must not
	// unwind a committed settlement.
	for _, event := range tierEvents {
		if err := m.notifier.NotifyTierReward(ctx, event); err != nil {
			m.logger.WarnContext(ctx, "tier reward notification failed", "user_id", event.UserID, "error", err)
		}
	}
	for _, event := range rankEvents {
		if err := m.notifier.NotifyRankReward(ctx, event); err != nil {
			m.logger.WarnContext(ctx, "rank reward notification failed", "user_id", event.UserID, "error", err)
		}
	}

	return result, nil
}

// ClaimReward transitions a PENDING reward to CLAIMED for its owner.
// Every violated precondition is reported together so the caller sees
// the whole picture, not just the first failure.
func (m *RewardManager) ClaimReward(ctx context.Context, rewardID, userID string) (contest.Reward, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RewardManager.ClaimReward")
	defer span.End()

	reward, ok, err := m.contests.GetReward(ctx, rewardID)
	if err != nil {
		return contest.Reward{}, fmt.Errorf("get reward %s: %w", rewardID, err)
	}
	if !ok {
		return contest.Reward{}, &contest.ClaimError{RewardID: rewardID, Violations: []string{"reward does not exist"}}
	}

	now := m.now().UTC()
	violations := make([]string, 0, 3)
	if reward.UserID != userID {
		violations = append(violations, "reward belongs to another user")
	}
	if reward.Status != contest.RewardPending {
		violations = append(violations, fmt.Sprintf("reward is %s, not PENDING", reward.Status))
	}
	if reward.Expired(now) {
		violations = append(violations, "reward has expired")
	}
	if len(violations) > 0 {
		return contest.Reward{}, &contest.ClaimError{RewardID: rewardID, Violations: violations}
	}

	claimed, err := m.contests.MarkRewardClaimed(ctx, rewardID, now)
	if err != nil {
		return contest.Reward{}, fmt.Errorf("claim reward %s: %w", rewardID, err)
	}
	if !claimed {
		// Lost a race with a concurrent claim.
		return contest.Reward{}, &contest.ClaimError{RewardID: rewardID, Violations: []string{"reward is already claimed"}}
	}

	reward.Status = contest.RewardClaimed
	reward.ClaimedAt = &now
	return reward, nil
}

// ExpirePendingRewards sweeps PENDING rewards past their expiry into
// EXPIRED and reports how many were transitioned.
func (m *RewardManager) ExpirePendingRewards(ctx context.Context) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RewardManager.ExpirePendingRewards")
	defer span.End()

	expired, err := m.contests.ExpireRewards(ctx, m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire pending rewards: %w", err)
	}
	if expired > 0 {
		m.logger.InfoContext(ctx, "pending rewards expired", "count", expired)
	}
	return expired, nil
}

// TierEligibility is a read-side view of a user's tier standing in the
// active contest.
type TierEligibility struct {
	ContestID        string
	Points           int
	CurrentTier      string
	NextTier         string
	PointsToNextTier int
}

// CheckTierEligibility reports the user's current tier and the points
// needed for the next one. Pure read, no mutation.
func (m *RewardManager) CheckTierEligibility(ctx context.Context, userID string) (TierEligibility, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RewardManager.CheckTierEligibility")
	defer span.End()

	active, ok, err := m.contests.GetActive(ctx)
	if err != nil {
		return TierEligibility{}, fmt.Errorf("get active contest: %w", err)
	}
	if !ok {
		return TierEligibility{}, contest.ErrNoActiveContest
	}

	points := 0
	if entry, exists, err := m.contests.GetEntry(ctx, active.ID, userID); err != nil {
		return TierEligibility{}, fmt.Errorf("get contest entry: %w", err)
	} else if exists {
		points = entry.Points
	}

	out := TierEligibility{ContestID: active.ID, Points: points}
	tiers := append([]config.Tier(nil), m.cfg.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinPoints < tiers[j].MinPoints
	})
	for _, tier := range tiers {
		if points >= tier.MinPoints {
			out.CurrentTier = tier.Name
			continue
		}
		out.NextTier = tier.Name
		out.PointsToNextTier = tier.MinPoints - points
		break
	}

	return out, nil
}

// RankEligibility is a read-side view of a user's standing by position.
type RankEligibility struct {
	ContestID     string
	Rank          int
	Points        int
	TotalEntrants int
	Prize         string
}

// CheckRankEligibility reports the user's current position in the
// active contest and the prize attached to it, if any. Pure read.
// The entry list is cached briefly: standings move constantly and this
// is a hot display query.
func (m *RewardManager) CheckRankEligibility(ctx context.Context, userID string) (RankEligibility, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RewardManager.CheckRankEligibility")
	defer span.End()

	active, ok, err := m.contests.GetActive(ctx)
	if err != nil {
		return RankEligibility{}, fmt.Errorf("get active contest: %w", err)
	}
	if !ok {
		return RankEligibility{}, contest.ErrNoActiveContest
	}

	entries, err := m.listEntriesCached(ctx, active.ID)
	if err != nil {
		return RankEligibility{}, err
	}

	out := RankEligibility{ContestID: active.ID, TotalEntrants: len(entries)}
	for idx, entry := range entries {
		if entry.UserID != userID {
			continue
		}
		out.Rank = idx + 1
		out.Points = entry.Points
		if prize, ok := m.prizeForRank(out.Rank); ok {
			out.Prize = prize.Description
		}
		break
	}

	return out, nil
}

// Leaderboard returns the top entries of the active contest in
// points-descending order.
func (m *RewardManager) Leaderboard(ctx context.Context, limit int) ([]contest.Entry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RewardManager.Leaderboard")
	defer span.End()

	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be greater than zero", ErrInvalidInput)
	}

	active, ok, err := m.contests.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active contest: %w", err)
	}
	if !ok {
		return nil, contest.ErrNoActiveContest
	}

	entries, err := m.listEntriesCached(ctx, active.ID)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return append([]contest.Entry(nil), entries...), nil
}

func (m *RewardManager) listEntriesCached(ctx context.Context, contestID string) ([]contest.Entry, error) {
	load := func(ctx context.Context) (any, error) {
		entries, err := m.contests.ListEntries(ctx, contestID)
		if err != nil {
			return nil, fmt.Errorf("list contest entries: %w", err)
		}
		return entries, nil
	}

	if m.cache == nil {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return v.([]contest.Entry), nil
	}

	v, err := m.cache.GetOrLoad(ctx, "contest:entries:"+contestID, load)
	if err != nil {
		return nil, err
	}
	entries, _ := v.([]contest.Entry)
	return entries, nil
}

func (m *RewardManager) invalidateContestReads(ctx context.Context) {
	if m.cache == nil {
		return
	}
	m.cache.DeletePrefix(ctx, "contest:")
}

func (m *RewardManager) prizeForRank(rank int) (config.RankPrize, bool) {
	for _, prize := range m.cfg.Prizes {
		if prize.Rank == rank {
			return prize, true
		}
	}
	return config.RankPrize{}, false
}

func (m *RewardManager) releaseLock(ctx context.Context, key, token string) {
	if err := m.locker.Release(ctx, key, token); err != nil {
		m.logger.WarnContext(ctx, "lifecycle lock release failed", "key", key, "error", err)
	}
}

func rewardKey(userID string, system contest.RewardSystem, tierName string, rank int) string {
	return fmt.Sprintf("%s|%s|%s|%d", userID, system, tierName, rank)
}
