package usecase

import (
	"testing"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/config"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/user"
	"github.com/ScotianOG/the-soless-system-sub002/internal/infrastructure/repository/memory"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/logging"
)

type streakFixture struct {
	store *memory.Store
	users *memory.UserRepository
	svc   *StreakService
	clock *fakeClock
}

func newStreakFixture(t *testing.T) *streakFixture {
	t.Helper()

	store := memory.NewStore()
	users := memory.NewUserRepository(store)
	engagements := memory.NewEngagementRepository(store)
	streaks := memory.NewStreakRepository(store)

	clock := newFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	svc := NewStreakService(streaks, engagements, config.DefaultEngagement().Streak, logging.NewNop())
	svc.now = clock.Now

	if err := users.Create(t.Context(), user.User{ID: "user-1", Username: "user-1"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return &streakFixture{store: store, users: users, svc: svc, clock: clock}
}

func (f *streakFixture) update(t *testing.T) int {
	t.Helper()
	count, err := f.svc.Update(t.Context(), "user-1", engagement.PlatformTelegram)
	if err != nil {
		t.Fatalf("update streak: %v", err)
	}
	return count
}

func TestStreakService_FirstActivitySeedsAtZero(t *testing.T) {
	f := newStreakFixture(t)

	if got := f.update(t); got != 0 {
		t.Fatalf("unexpected seeded count: got=%d want=0", got)
	}
}

func TestStreakService_ConsecutiveDaysIncrement(t *testing.T) {
	f := newStreakFixture(t)

	f.update(t)
	f.clock.Advance(24 * time.Hour)
	if got := f.update(t); got != 1 {
		t.Fatalf("day two count: got=%d want=1", got)
	}
	f.clock.Advance(24 * time.Hour)
	if got := f.update(t); got != 2 {
		t.Fatalf("day three count: got=%d want=2", got)
	}
}

func TestStreakService_SameDayRepeatDoesNotGrow(t *testing.T) {
	f := newStreakFixture(t)

	f.update(t)
	f.clock.Advance(24 * time.Hour)
	f.update(t)

	f.clock.Advance(time.Hour)
	if got := f.update(t); got != 1 {
		t.Fatalf("same-day repeat count: got=%d want=1", got)
	}
}

func TestStreakService_GapResetsToOne(t *testing.T) {
	f := newStreakFixture(t)

	f.update(t)
	f.clock.Advance(24 * time.Hour)
	f.update(t)
	f.clock.Advance(24 * time.Hour)
	f.update(t)

	// Three silent days: the chain breaks, and the activity that comes
	// back starts a fresh one-day streak.
	f.clock.Advance(72 * time.Hour)
	if got := f.update(t); got != 1 {
		t.Fatalf("count after gap: got=%d want=1", got)
	}
}

func TestStreakService_MilestoneAwardsBonus(t *testing.T) {
	f := newStreakFixture(t)

	f.update(t)
	for day := 0; day < 3; day++ {
		f.clock.Advance(24 * time.Hour)
		f.update(t)
	}

	u, ok, err := f.users.GetByID(t.Context(), "user-1")
	if err != nil || !ok {
		t.Fatalf("load user: ok=%t err=%v", ok, err)
	}
	if u.Points != 5 {
		t.Fatalf("expected milestone bonus of 5 points, got=%d", u.Points)
	}
}

func TestStreakService_PlatformsAreIndependent(t *testing.T) {
	f := newStreakFixture(t)

	f.update(t)
	f.clock.Advance(24 * time.Hour)
	f.update(t)

	count, err := f.svc.Update(t.Context(), "user-1", engagement.PlatformDiscord)
	if err != nil {
		t.Fatalf("update discord streak: %v", err)
	}
	if count != 1 {
		t.Fatalf("discord count: got=%d want=1", count)
	}
}
