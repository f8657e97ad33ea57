package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/config"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/contest"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/user"
	"github.com/ScotianOG/the-soless-system-sub002/internal/infrastructure/lock"
	"github.com/ScotianOG/the-soless-system-sub002/internal/infrastructure/repository/memory"
	idgen "github.com/ScotianOG/the-soless-system-sub002/internal/platform/id"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/logging"
)

type recordingNotifier struct {
	mu   sync.Mutex
	tier []TierRewardEvent
	rank []RankRewardEvent
}

func (n *recordingNotifier) NotifyTierReward(_ context.Context, event TierRewardEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tier = append(n.tier, event)
	return nil
}

func (n *recordingNotifier) NotifyRankReward(_ context.Context, event RankRewardEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rank = append(n.rank, event)
	return nil
}

func newManagerForRepo(t *testing.T, contests contest.Repository, clock *fakeClock) *RewardManager {
	t.Helper()

	manager := NewRewardManager(
		contests,
		lock.NewMemoryLocker(),
		nil,
		idgen.NewRandomGenerator(),
		config.DefaultEngagement().Contest,
		nil,
		logging.NewNop(),
		RewardManagerOptions{},
	)
	manager.now = clock.Now
	return manager
}

type managerFixture struct {
	store    *memory.Store
	users    *memory.UserRepository
	contests *memory.ContestRepository
	notifier *recordingNotifier
	manager  *RewardManager
	clock    *fakeClock
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	store := memory.NewStore()
	contests := memory.NewContestRepository(store)
	notifier := &recordingNotifier{}
	clock := newFakeClock(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))

	manager := NewRewardManager(
		contests,
		lock.NewMemoryLocker(),
		notifier,
		idgen.NewRandomGenerator(),
		config.DefaultEngagement().Contest,
		nil,
		logging.NewNop(),
		RewardManagerOptions{},
	)
	manager.now = clock.Now

	return &managerFixture{
		store:    store,
		users:    memory.NewUserRepository(store),
		contests: contests,
		notifier: notifier,
		manager:  manager,
		clock:    clock,
	}
}

// seedEntry creates the user and credits points into the active contest
// through the transactional engagement write, so entries appear in
// creation order exactly as they would in production.
func (f *managerFixture) seedEntry(t *testing.T, contestID, userID string, points int) {
	t.Helper()

	if err := f.users.Create(t.Context(), user.User{ID: userID, Username: userID}); err != nil {
		t.Fatalf("seed user %s: %v", userID, err)
	}

	engagements := memory.NewEngagementRepository(f.store)
	err := engagements.Record(t.Context(), engagement.Record{
		Engagement: engagement.Engagement{
			ID:        "eng-" + userID,
			UserID:    userID,
			Platform:  engagement.PlatformTelegram,
			Type:      engagement.TypeMessage,
			Points:    points,
			Timestamp: f.clock.Now(),
		},
		ContestID: contestID,
	})
	if err != nil {
		t.Fatalf("seed entry for %s: %v", userID, err)
	}
}

func TestRewardManager_StartNewContest_CompletesPrevious(t *testing.T) {
	f := newManagerFixture(t)

	first, err := f.manager.StartNewContest(t.Context())
	if err != nil {
		t.Fatalf("start first contest: %v", err)
	}

	second, err := f.manager.StartNewContest(t.Context())
	if err != nil {
		t.Fatalf("start second contest: %v", err)
	}

	active, ok, err := f.contests.GetActive(t.Context())
	if err != nil || !ok {
		t.Fatalf("expected an active contest: ok=%t err=%v", ok, err)
	}
	if active.ID != second.ID {
		t.Fatalf("active contest: got=%s want=%s", active.ID, second.ID)
	}

	previous, _, err := f.contests.GetByID(t.Context(), first.ID)
	if err != nil {
		t.Fatalf("load first contest: %v", err)
	}
	if previous.Status != contest.StatusCompleted {
		t.Fatalf("previous contest status: got=%s want=%s", previous.Status, contest.StatusCompleted)
	}
}

func TestRewardManager_ConcurrentStartsKeepOneActive(t *testing.T) {
	f := newManagerFixture(t)

	const starters = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		startedID []string
	)
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started, err := f.manager.StartNewContest(t.Context())
			if err != nil {
				// Losing the lifecycle lock is the only acceptable failure.
				var lockErr *contest.LockAcquisitionError
				if !errors.As(err, &lockErr) {
					t.Errorf("unexpected start error: %v", err)
				}
				return
			}
			mu.Lock()
			startedID = append(startedID, started.ID)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(startedID) == 0 {
		t.Fatalf("expected at least one start to win the lock")
	}

	active, ok, err := f.contests.GetActive(t.Context())
	if err != nil || !ok {
		t.Fatalf("expected an active contest: ok=%t err=%v", ok, err)
	}

	activeStarted := false
	for _, id := range startedID {
		c, ok, err := f.contests.GetByID(t.Context(), id)
		if err != nil || !ok {
			t.Fatalf("load contest %s: ok=%t err=%v", id, ok, err)
		}
		if id == active.ID {
			activeStarted = true
			continue
		}
		if c.Status != contest.StatusCompleted {
			t.Fatalf("contest %s: got=%s want=%s", id, c.Status, contest.StatusCompleted)
		}
	}
	if !activeStarted {
		t.Fatalf("active contest %s was not one of the started rounds", active.ID)
	}
}

func TestRewardManager_StartNewContest_LockContention(t *testing.T) {
	f := newManagerFixture(t)

	locker := lock.NewMemoryLocker()
	f.manager.locker = locker

	if _, ok, err := locker.Acquire(t.Context(), "contest:lifecycle:start", time.Minute); err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%t err=%v", ok, err)
	}

	_, err := f.manager.StartNewContest(t.Context())
	var lockErr *contest.LockAcquisitionError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected LockAcquisitionError, got %v", err)
	}
}

func TestRewardManager_EndCurrentContest_NoActive(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.EndCurrentContest(t.Context())
	if !errors.Is(err, contest.ErrNoActiveContest) {
		t.Fatalf("expected ErrNoActiveContest, got %v", err)
	}
}

func TestRewardManager_EndCurrentContest_RanksAndRewards(t *testing.T) {
	f := newManagerFixture(t)

	started, err := f.manager.StartNewContest(t.Context())
	if err != nil {
		t.Fatalf("start contest: %v", err)
	}

	f.seedEntry(t, started.ID, "alice", 50)
	f.seedEntry(t, started.ID, "bob", 50)
	f.seedEntry(t, started.ID, "carol", 30)
	f.seedEntry(t, started.ID, "dave", 10)

	settled, err := f.manager.EndCurrentContest(t.Context())
	if err != nil {
		t.Fatalf("end contest: %v", err)
	}
	if settled.Status != contest.StatusCompleted {
		t.Fatalf("settled status: got=%s want=%s", settled.Status, contest.StatusCompleted)
	}
	if settled.Metadata.SettledAt == nil {
		t.Fatalf("expected settlement timestamp")
	}
	if len(settled.Metadata.QualifiedUserIDs) != 3 {
		t.Fatalf("qualified users: got=%d want=3", len(settled.Metadata.QualifiedUserIDs))
	}

	// Ties keep creation order: alice entered before bob.
	entries, err := f.contests.ListEntries(t.Context(), started.ID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	wantOrder := []string{"alice", "bob", "carol", "dave"}
	for i, want := range wantOrder {
		if entries[i].UserID != want {
			t.Fatalf("rank %d: got=%s want=%s", i+1, entries[i].UserID, want)
		}
		if entries[i].Rank == nil || *entries[i].Rank != i+1 {
			t.Fatalf("rank %d not assigned to %s", i+1, want)
		}
	}

	// alice and bob hold BRONZE+SILVER, carol BRONZE; ranks 1-3 add one
	// prize each. dave earns nothing at 10 points.
	rewards, err := f.contests.ListRewards(t.Context(), started.ID)
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}
	if len(rewards) != 8 {
		t.Fatalf("reward count: got=%d want=8", len(rewards))
	}

	if len(f.notifier.tier) != 5 {
		t.Fatalf("tier notifications: got=%d want=5", len(f.notifier.tier))
	}
	if len(f.notifier.rank) != 3 {
		t.Fatalf("rank notifications: got=%d want=3", len(f.notifier.rank))
	}

	entry, _, err := f.contests.GetEntry(t.Context(), started.ID, "alice")
	if err != nil {
		t.Fatalf("get alice entry: %v", err)
	}
	if entry.Metadata.HighestTier != "SILVER" {
		t.Fatalf("alice highest tier: got=%s want=SILVER", entry.Metadata.HighestTier)
	}
	if entry.Metadata.PrizeDescription != "First place: 50 USDC" {
		t.Fatalf("alice prize: got=%q", entry.Metadata.PrizeDescription)
	}
	if entry.QualifiedAt == nil {
		t.Fatalf("expected alice qualification timestamp")
	}
}

func TestRewardManager_DistributeRewards_Idempotent(t *testing.T) {
	f := newManagerFixture(t)

	started, err := f.manager.StartNewContest(t.Context())
	if err != nil {
		t.Fatalf("start contest: %v", err)
	}
	f.seedEntry(t, started.ID, "alice", 50)
	f.seedEntry(t, started.ID, "bob", 30)

	if _, err := f.manager.EndCurrentContest(t.Context()); err != nil {
		t.Fatalf("end contest: %v", err)
	}

	before, err := f.contests.ListRewards(t.Context(), started.ID)
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}

	result, err := f.manager.DistributeRewards(t.Context(), started.ID)
	if err != nil {
		t.Fatalf("redistribute: %v", err)
	}
	if result.RewardsCreated != 0 {
		t.Fatalf("re-run must create nothing, created=%d", result.RewardsCreated)
	}
	if result.AlreadyRewarded != len(before) {
		t.Fatalf("already rewarded: got=%d want=%d", result.AlreadyRewarded, len(before))
	}

	after, err := f.contests.ListRewards(t.Context(), started.ID)
	if err != nil {
		t.Fatalf("list rewards again: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("reward count changed: before=%d after=%d", len(before), len(after))
	}
}

func TestRewardManager_DistributeRewards_UnknownContest(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.DistributeRewards(t.Context(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRewardManager_ClaimReward(t *testing.T) {
	f := newManagerFixture(t)

	started, err := f.manager.StartNewContest(t.Context())
	if err != nil {
		t.Fatalf("start contest: %v", err)
	}
	f.seedEntry(t, started.ID, "alice", 30)
	if _, err := f.manager.EndCurrentContest(t.Context()); err != nil {
		t.Fatalf("end contest: %v", err)
	}

	rewards, err := f.contests.ListRewards(t.Context(), started.ID)
	if err != nil || len(rewards) == 0 {
		t.Fatalf("expected rewards: err=%v", err)
	}
	target := rewards[0]

	t.Run("wrong user is rejected", func(t *testing.T) {
		_, err := f.manager.ClaimReward(t.Context(), target.ID, "mallory")
		var claimErr *contest.ClaimError
		if !errors.As(err, &claimErr) {
			t.Fatalf("expected ClaimError, got %v", err)
		}
	})

	t.Run("owner claims once", func(t *testing.T) {
		claimed, err := f.manager.ClaimReward(t.Context(), target.ID, "alice")
		if err != nil {
			t.Fatalf("claim reward: %v", err)
		}
		if claimed.Status != contest.RewardClaimed {
			t.Fatalf("claimed status: got=%s", claimed.Status)
		}
		if claimed.ClaimedAt == nil {
			t.Fatalf("expected claim timestamp")
		}
	})

	t.Run("second claim is rejected", func(t *testing.T) {
		_, err := f.manager.ClaimReward(t.Context(), target.ID, "alice")
		var claimErr *contest.ClaimError
		if !errors.As(err, &claimErr) {
			t.Fatalf("expected ClaimError, got %v", err)
		}
	})

	t.Run("unknown reward is rejected", func(t *testing.T) {
		_, err := f.manager.ClaimReward(t.Context(), "missing", "alice")
		var claimErr *contest.ClaimError
		if !errors.As(err, &claimErr) {
			t.Fatalf("expected ClaimError, got %v", err)
		}
	})
}

func TestRewardManager_ExpirePendingRewards(t *testing.T) {
	f := newManagerFixture(t)

	started, err := f.manager.StartNewContest(t.Context())
	if err != nil {
		t.Fatalf("start contest: %v", err)
	}
	f.seedEntry(t, started.ID, "alice", 50)
	if _, err := f.manager.EndCurrentContest(t.Context()); err != nil {
		t.Fatalf("end contest: %v", err)
	}

	// Rank prizes lapse after a week; tier rewards never do.
	f.clock.Advance(8 * 24 * time.Hour)
	expired, err := f.manager.ExpirePendingRewards(t.Context())
	if err != nil {
		t.Fatalf("expire rewards: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired count: got=%d want=1", expired)
	}

	rewards, err := f.contests.ListRewards(t.Context(), started.ID)
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}
	for _, reward := range rewards {
		switch reward.System {
		case contest.RewardSystemRank:
			if reward.Status != contest.RewardExpired {
				t.Fatalf("rank reward status: got=%s want=%s", reward.Status, contest.RewardExpired)
			}
		case contest.RewardSystemTier:
			if reward.Status != contest.RewardPending {
				t.Fatalf("tier reward status: got=%s want=%s", reward.Status, contest.RewardPending)
			}
		}
	}
}

func TestRewardManager_CheckTierEligibility(t *testing.T) {
	f := newManagerFixture(t)

	started, err := f.manager.StartNewContest(t.Context())
	if err != nil {
		t.Fatalf("start contest: %v", err)
	}
	f.seedEntry(t, started.ID, "alice", 30)

	eligibility, err := f.manager.CheckTierEligibility(t.Context(), "alice")
	if err != nil {
		t.Fatalf("check tier eligibility: %v", err)
	}
	if eligibility.CurrentTier != "BRONZE" {
		t.Fatalf("current tier: got=%s want=BRONZE", eligibility.CurrentTier)
	}
	if eligibility.NextTier != "SILVER" {
		t.Fatalf("next tier: got=%s want=SILVER", eligibility.NextTier)
	}
	if eligibility.PointsToNextTier != 20 {
		t.Fatalf("points to next tier: got=%d want=20", eligibility.PointsToNextTier)
	}
}

func TestRewardManager_CheckRankEligibility(t *testing.T) {
	f := newManagerFixture(t)

	started, err := f.manager.StartNewContest(t.Context())
	if err != nil {
		t.Fatalf("start contest: %v", err)
	}
	f.seedEntry(t, started.ID, "alice", 50)
	f.seedEntry(t, started.ID, "bob", 30)

	eligibility, err := f.manager.CheckRankEligibility(t.Context(), "bob")
	if err != nil {
		t.Fatalf("check rank eligibility: %v", err)
	}
	if eligibility.Rank != 2 {
		t.Fatalf("rank: got=%d want=2", eligibility.Rank)
	}
	if eligibility.TotalEntrants != 2 {
		t.Fatalf("total entrants: got=%d want=2", eligibility.TotalEntrants)
	}
	if eligibility.Prize != "Second place: 25 USDC" {
		t.Fatalf("prize: got=%q", eligibility.Prize)
	}
}

func TestRewardManager_Leaderboard(t *testing.T) {
	f := newManagerFixture(t)

	started, err := f.manager.StartNewContest(t.Context())
	if err != nil {
		t.Fatalf("start contest: %v", err)
	}
	f.seedEntry(t, started.ID, "alice", 10)
	f.seedEntry(t, started.ID, "bob", 40)
	f.seedEntry(t, started.ID, "carol", 20)

	top, err := f.manager.Leaderboard(t.Context(), 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("leaderboard size: got=%d want=2", len(top))
	}
	if top[0].UserID != "bob" || top[1].UserID != "carol" {
		t.Fatalf("leaderboard order: got=[%s %s]", top[0].UserID, top[1].UserID)
	}

	if _, err := f.manager.Leaderboard(t.Context(), 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero limit, got %v", err)
	}
}
