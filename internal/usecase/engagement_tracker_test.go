package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/config"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/user"
	cacherepo "github.com/ScotianOG/the-soless-system-sub002/internal/infrastructure/repository/cache"
	"github.com/ScotianOG/the-soless-system-sub002/internal/infrastructure/repository/memory"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/cache"
	idgen "github.com/ScotianOG/the-soless-system-sub002/internal/platform/id"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/logging"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type trackerFixture struct {
	store   *memory.Store
	users   *memory.UserRepository
	tracker *EngagementTracker
	clock   *fakeClock
}

func newTrackerFixture(t *testing.T) *trackerFixture {
	t.Helper()

	store := memory.NewStore()
	users := memory.NewUserRepository(store)
	engagements := memory.NewEngagementRepository(store)
	streaks := memory.NewStreakRepository(store)
	contests := memory.NewContestRepository(store)

	clock := newFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	streakSvc := NewStreakService(streaks, engagements, config.DefaultEngagement().Streak, logging.NewNop())
	streakSvc.now = clock.Now

	tracker, err := NewEngagementTracker(
		engagement.PlatformTelegram,
		config.DefaultEngagement(),
		users,
		engagements,
		contests,
		streakSvc,
		idgen.NewRandomGenerator(),
		logging.NewNop(),
	)
	if err != nil {
		t.Fatalf("build tracker: %v", err)
	}
	tracker.now = clock.Now

	return &trackerFixture{store: store, users: users, tracker: tracker, clock: clock}
}

func (f *trackerFixture) seedUser(t *testing.T, userID string) {
	t.Helper()
	if err := f.users.Create(t.Context(), user.User{ID: userID, Username: userID}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func (f *trackerFixture) userPoints(t *testing.T, userID string) int {
	t.Helper()
	u, ok, err := f.users.GetByID(t.Context(), userID)
	if err != nil || !ok {
		t.Fatalf("load user %s: ok=%t err=%v", userID, ok, err)
	}
	return u.Points
}

func TestEngagementTracker_RejectsUnknownPlatform(t *testing.T) {
	_, err := NewEngagementTracker(
		engagement.Platform("MYSPACE"),
		config.DefaultEngagement(),
		nil, nil, nil, nil,
		idgen.NewRandomGenerator(),
		logging.NewNop(),
	)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEngagementTracker_FirstEngagementIsFree(t *testing.T) {
	f := newTrackerFixture(t)
	f.seedUser(t, "user-1")

	tracked, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage})
	if err != nil {
		t.Fatalf("track engagement: %v", err)
	}
	if !tracked {
		t.Fatalf("expected engagement to be tracked")
	}
	if got := f.userPoints(t, "user-1"); got != 2 {
		t.Fatalf("unexpected user points: got=%d want=2", got)
	}
}

func TestEngagementTracker_CooldownRejection(t *testing.T) {
	f := newTrackerFixture(t)
	f.seedUser(t, "user-1")

	if _, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage}); err != nil {
		t.Fatalf("first engagement: %v", err)
	}

	f.clock.Advance(30 * time.Second)
	_, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage})

	var cooldown *engagement.CooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected CooldownError, got %v", err)
	}
	if cooldown.RemainingSeconds != 30 {
		t.Fatalf("unexpected remaining seconds: got=%d want=30", cooldown.RemainingSeconds)
	}
	if got := f.userPoints(t, "user-1"); got != 2 {
		t.Fatalf("rejected engagement must not award points, got=%d", got)
	}
}

func TestEngagementTracker_CooldownExpiry(t *testing.T) {
	f := newTrackerFixture(t)
	f.seedUser(t, "user-1")

	if _, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage}); err != nil {
		t.Fatalf("first engagement: %v", err)
	}

	f.clock.Advance(60 * time.Second)
	if _, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage}); err != nil {
		t.Fatalf("engagement after cooldown: %v", err)
	}
	if got := f.userPoints(t, "user-1"); got != 4 {
		t.Fatalf("unexpected user points: got=%d want=4", got)
	}
}

func TestEngagementTracker_DailyLimit(t *testing.T) {
	f := newTrackerFixture(t)
	f.seedUser(t, "user-1")

	for i := 0; i < 20; i++ {
		if _, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage}); err != nil {
			t.Fatalf("engagement %d: %v", i+1, err)
		}
		f.clock.Advance(61 * time.Second)
	}

	_, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage})
	var limit *engagement.DailyLimitError
	if !errors.As(err, &limit) {
		t.Fatalf("expected DailyLimitError, got %v", err)
	}
	if limit.Limit != 20 {
		t.Fatalf("unexpected limit: got=%d want=20", limit.Limit)
	}
}

func TestEngagementTracker_RateLimitAppliesToFirstEngagement(t *testing.T) {
	f := newTrackerFixture(t)
	f.seedUser(t, "user-1")

	// Ten invites at 10 points each reach the daily point cap.
	for i := 0; i < 10; i++ {
		if _, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeInvite}); err != nil {
			t.Fatalf("invite %d: %v", i+1, err)
		}
		f.clock.Advance(time.Second)
	}

	// A first-ever MESSAGE skips cooldown and per-type limits, but the
	// global cap still applies.
	_, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage})
	var rate *engagement.RateLimitError
	if !errors.As(err, &rate) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rate.MaxPointsPerDay != 100 {
		t.Fatalf("unexpected cap: got=%d want=100", rate.MaxPointsPerDay)
	}
}

func TestEngagementTracker_RateLimitResetsAtDayBoundary(t *testing.T) {
	f := newTrackerFixture(t)
	f.seedUser(t, "user-1")

	for i := 0; i < 10; i++ {
		if _, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeInvite}); err != nil {
			t.Fatalf("invite %d: %v", i+1, err)
		}
		f.clock.Advance(time.Second)
	}

	// Next UTC day: the cap and per-type counters start over.
	f.clock.Advance(24 * time.Hour)
	if _, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage}); err != nil {
		t.Fatalf("engagement on new day: %v", err)
	}
}

func TestEngagementTracker_UnsupportedType(t *testing.T) {
	f := newTrackerFixture(t)
	f.seedUser(t, "user-1")

	_, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeShare})
	var invalid *engagement.ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestEngagementTracker_UnknownUser(t *testing.T) {
	f := newTrackerFixture(t)

	_, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "ghost", Type: engagement.TypeMessage})
	var notFound *engagement.UserNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected UserNotFoundError, got %v", err)
	}
}

func TestEngagementTracker_FailedWriteLeavesNoPartialState(t *testing.T) {
	f := newTrackerFixture(t)
	f.seedUser(t, "user-1")

	f.store.FailNextEngagementRecord(errors.New("connection reset"))

	_, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage})
	var txErr *engagement.TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected TransactionError, got %v", err)
	}

	if got := f.userPoints(t, "user-1"); got != 0 {
		t.Fatalf("failed write must not change points, got=%d", got)
	}

	engagements := memory.NewEngagementRepository(f.store)
	_, exists, err := engagements.GetLast(t.Context(), "user-1", engagement.PlatformTelegram, engagement.TypeMessage)
	if err != nil {
		t.Fatalf("get last engagement: %v", err)
	}
	if exists {
		t.Fatalf("failed write must not leave an engagement row")
	}
}

func TestEngagementTracker_CalculatePoints(t *testing.T) {
	f := newTrackerFixture(t)

	if got := f.tracker.CalculatePoints(engagement.TypeQualityPost); got != 5 {
		t.Fatalf("unexpected points: got=%d want=5", got)
	}
	if got := f.tracker.CalculatePoints(engagement.Type("UNKNOWN")); got != 0 {
		t.Fatalf("unknown type must be worth zero, got=%d", got)
	}
}

func TestEngagementTracker_AttachesActiveContest(t *testing.T) {
	f := newTrackerFixture(t)
	f.seedUser(t, "user-1")

	contests := memory.NewContestRepository(f.store)
	manager := newManagerForRepo(t, contests, f.clock)

	started, err := manager.StartNewContest(t.Context())
	if err != nil {
		t.Fatalf("start contest: %v", err)
	}

	if _, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage}); err != nil {
		t.Fatalf("track engagement: %v", err)
	}

	entry, ok, err := contests.GetEntry(t.Context(), started.ID, "user-1")
	if err != nil || !ok {
		t.Fatalf("expected contest entry: ok=%t err=%v", ok, err)
	}
	if entry.Points != 2 {
		t.Fatalf("unexpected entry points: got=%d want=2", entry.Points)
	}
}

func TestEngagementTracker_DoesNotMutateCallerMetadata(t *testing.T) {
	f := newTrackerFixture(t)
	f.seedUser(t, "user-1")

	meta := map[string]any{"message_id": "m-1"}
	if _, err := f.tracker.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage, Metadata: meta}); err != nil {
		t.Fatalf("track engagement: %v", err)
	}

	if len(meta) != 1 {
		t.Fatalf("caller metadata changed: %v", meta)
	}
	if _, ok := meta["points"]; ok {
		t.Fatalf("caller metadata must not gain a points key")
	}

	engagements := memory.NewEngagementRepository(f.store)
	last, ok, err := engagements.GetLast(t.Context(), "user-1", engagement.PlatformTelegram, engagement.TypeMessage)
	if err != nil || !ok {
		t.Fatalf("expected stored engagement: ok=%t err=%v", ok, err)
	}
	if last.Metadata["points"] != 2 {
		t.Fatalf("stored metadata missing points stamp: %v", last.Metadata)
	}
	if last.Metadata["message_id"] != "m-1" {
		t.Fatalf("stored metadata missing caller keys: %v", last.Metadata)
	}
}

// Two service instances share one store but each runs its own contest
// read cache. After one instance settles the round, the other's cache
// still reports it ACTIVE for up to the TTL; the write path must drop
// that stale link instead of growing a settled entry.
func TestEngagementTracker_StaleCachedContestDoesNotGrowSettledEntries(t *testing.T) {
	store := memory.NewStore()
	users := memory.NewUserRepository(store)
	engagements := memory.NewEngagementRepository(store)
	base := memory.NewContestRepository(store)
	clock := newFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	contestsA := cacherepo.NewContestRepository(base, cache.NewStore(30*time.Second))
	contestsB := cacherepo.NewContestRepository(base, cache.NewStore(30*time.Second))

	managerA := newManagerForRepo(t, contestsA, clock)

	trackerB, err := NewEngagementTracker(
		engagement.PlatformTelegram,
		config.DefaultEngagement(),
		users,
		engagements,
		contestsB,
		nil,
		idgen.NewRandomGenerator(),
		logging.NewNop(),
	)
	if err != nil {
		t.Fatalf("build tracker: %v", err)
	}
	trackerB.now = clock.Now

	if err := users.Create(t.Context(), user.User{ID: "user-1", Username: "user-1"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	started, err := managerA.StartNewContest(t.Context())
	if err != nil {
		t.Fatalf("start contest: %v", err)
	}

	// Warms instance B's cache with the ACTIVE round.
	if _, err := trackerB.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage}); err != nil {
		t.Fatalf("track during active round: %v", err)
	}

	if _, err := managerA.EndCurrentContest(t.Context()); err != nil {
		t.Fatalf("end contest: %v", err)
	}

	// B's cache is stale: it still sees the settled round as ACTIVE.
	stale, ok, err := contestsB.GetActive(t.Context())
	if err != nil || !ok || stale.ID != started.ID {
		t.Fatalf("expected stale cached active round: ok=%t err=%v", ok, err)
	}

	clock.Advance(61 * time.Second)
	tracked, err := trackerB.TrackEngagement(t.Context(), EngagementEvent{UserID: "user-1", Type: engagement.TypeMessage})
	if err != nil {
		t.Fatalf("track after settlement: %v", err)
	}
	if !tracked {
		t.Fatalf("engagement itself must still be accepted")
	}

	// The user keeps earning; the settled standings stay frozen.
	u, _, err := users.GetByID(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if u.Points != 4 {
		t.Fatalf("unexpected user points: got=%d want=4", u.Points)
	}

	entry, ok, err := base.GetEntry(t.Context(), started.ID, "user-1")
	if err != nil || !ok {
		t.Fatalf("expected contest entry: ok=%t err=%v", ok, err)
	}
	if entry.Points != 2 {
		t.Fatalf("settled entry points moved: got=%d want=2", entry.Points)
	}
	if entry.Rank == nil || *entry.Rank != 1 {
		t.Fatalf("settled rank must be untouched")
	}
}
