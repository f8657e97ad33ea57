package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/config"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/streak"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/logging"
)

// StreakService maintains per-platform consecutive-day activity
// streaks and awards milestone bonuses.
type StreakService struct {
	streaks     streak.Repository
	engagements engagement.Repository
	cfg         config.StreakConfig
	logger      *logging.Logger
	now         func() time.Time
}

func NewStreakService(
	streaks streak.Repository,
	engagements engagement.Repository,
	cfg config.StreakConfig,
	logger *logging.Logger,
) *StreakService {
	if logger == nil {
		logger = logging.Default()
	}
	return &StreakService{
		streaks:     streaks,
		engagements: engagements,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Update applies one activity observation to the user's streak for the
// platform and returns the resulting count.
//
// Rules: a first-ever record seeds all platforms at zero; a gap longer
// than 48h starts a fresh streak at 1 (the triggering activity counts);
// a new UTC calendar day increments by 1; a same-day repeat changes
// nothing. Each increment that lands on a milestone multiple awards the
// configured bonus points through an atomic ledger write.
func (s *StreakService) Update(ctx context.Context, userID string, platform engagement.Platform) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.StreakService.Update")
	defer span.End()

	if !platform.Valid() {
		return 0, fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, platform)
	}

	now := s.now().UTC()

	record, exists, err := s.streaks.Get(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get streak record: %w", err)
	}
	if !exists {
		seeded := streak.Seed(userID, now)
		if err := s.streaks.Upsert(ctx, seeded); err != nil {
			return 0, fmt.Errorf("seed streak record: %w", err)
		}
		return 0, nil
	}

	state := record.ForPlatform(platform)
	if state == nil {
		return 0, fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, platform)
	}

	incremented := false
	switch {
	case now.Sub(state.LastActivity) > streak.MaxGap:
		// Too long a pause: the chain breaks and today restarts it.
		state.Count = 1
		state.LastActivity = now
		incremented = true
	case engagement.DayStart(now).After(engagement.DayStart(state.LastActivity)):
		state.Count++
		state.LastActivity = now
		incremented = true
	default:
		// Same-day repeat: a streak grows at most once per calendar day.
		return state.Count, nil
	}

	record.UpdatedAt = now
	if err := s.streaks.Upsert(ctx, record); err != nil {
		return 0, fmt.Errorf("update streak record: %w", err)
	}

	if incremented && s.cfg.BonusPoints > 0 && s.cfg.MilestoneEvery > 0 && state.Count%s.cfg.MilestoneEvery == 0 {
		if err := s.engagements.AwardBonus(ctx, userID, platform, s.cfg.BonusPoints, engagement.ReasonStreakBonus); err != nil {
			return state.Count, fmt.Errorf("award streak bonus: %w", err)
		}
		s.logger.InfoContext(ctx, "streak milestone bonus awarded",
			"user_id", userID,
			"platform", string(platform),
			"streak", state.Count,
			"bonus_points", s.cfg.BonusPoints,
		)
	}

	return state.Count, nil
}
