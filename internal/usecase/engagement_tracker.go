package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/config"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/contest"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/user"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/id"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/logging"
)

// EngagementEvent is one inbound user action reported by a platform
// adapter.
type EngagementEvent struct {
	UserID   string
	Type     engagement.Type
	Metadata map[string]any
}

// EngagementTracker validates and records engagement events for a
// single platform. Trackers are stateless beyond platform identity and
// safe to share between handlers.
type EngagementTracker struct {
	platform    engagement.Platform
	cfg         config.EngagementConfig
	users       user.Repository
	engagements engagement.Repository
	contests    contest.Repository
	streaks     *StreakService
	idgen       id.Generator
	logger      *logging.Logger
	now         func() time.Time
}

func NewEngagementTracker(
	platform engagement.Platform,
	cfg config.EngagementConfig,
	users user.Repository,
	engagements engagement.Repository,
	contests contest.Repository,
	streaks *StreakService,
	idgen id.Generator,
	logger *logging.Logger,
) (*EngagementTracker, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, platform)
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &EngagementTracker{
		platform:    platform,
		cfg:         cfg,
		users:       users,
		engagements: engagements,
		contests:    contests,
		streaks:     streaks,
		idgen:       idgen,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// NewEngagementTrackers builds one tracker per supported platform.
func NewEngagementTrackers(
	cfg config.EngagementConfig,
	users user.Repository,
	engagements engagement.Repository,
	contests contest.Repository,
	streaks *StreakService,
	idgen id.Generator,
	logger *logging.Logger,
) (map[engagement.Platform]*EngagementTracker, error) {
	out := make(map[engagement.Platform]*EngagementTracker, len(engagement.Platforms()))
	for _, platform := range engagement.Platforms() {
		tracker, err := NewEngagementTracker(platform, cfg, users, engagements, contests, streaks, idgen, logger)
		if err != nil {
			return nil, err
		}
		out[platform] = tracker
	}
	return out, nil
}

func (t *EngagementTracker) Platform() engagement.Platform {
	return t.platform
}

// CalculatePoints returns the configured point value for the type, or
// zero for an unknown type. It never fails: CanEngage is the authority
// on rejecting unknown types.
func (t *EngagementTracker) CalculatePoints(engagementType engagement.Type) int {
	rule, ok := t.cfg.Rule(t.platform, engagementType)
	if !ok {
		return 0
	}
	return rule.Points
}

// CanEngage checks an engagement attempt against the cooldown, daily
// limit, and global point cap rules. It returns nil when the attempt is
// allowed, and a typed rejection otherwise. The checks run outside any
// write transaction so rejected attempts fail fast without lock traffic.
func (t *EngagementTracker) CanEngage(ctx context.Context, userID string, engagementType engagement.Type) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.EngagementTracker.CanEngage")
	defer span.End()

	rule, ok := t.cfg.Rule(t.platform, engagementType)
	if !ok {
		return &engagement.ValidationError{Platform: t.platform, Type: engagementType, Reason: "unsupported type"}
	}

	now := t.now().UTC()
	dayStart := engagement.DayStart(now)

	last, exists, err := t.engagements.GetLast(ctx, userID, t.platform, engagementType)
	if err != nil {
		return &engagement.TransactionError{Op: "get last engagement", Err: err}
	}

	// The first-ever engagement of a kind is always free of cooldown
	// and daily-limit checks.
	if exists {
		if rule.CooldownSeconds > 0 {
			deadline := last.Timestamp.Add(time.Duration(rule.CooldownSeconds) * time.Second)
			if now.Before(deadline) {
				remaining := int(math.Ceil(deadline.Sub(now).Seconds()))
				return &engagement.CooldownError{Type: engagementType, RemainingSeconds: remaining}
			}
		}

		if rule.DailyLimit > 0 {
			count, err := t.engagements.CountSince(ctx, userID, t.platform, engagementType, dayStart)
			if err != nil {
				return &engagement.TransactionError{Op: "count daily engagements", Err: err}
			}
			if count >= rule.DailyLimit {
				return &engagement.DailyLimitError{Type: engagementType, Limit: rule.DailyLimit}
			}
		}
	}

	if max := t.cfg.RateLimit.MaxPointsPerDay; max > 0 {
		earnedToday, err := t.engagements.SumPointsSince(ctx, userID, dayStart)
		if err != nil {
			return &engagement.TransactionError{Op: "sum daily points", Err: err}
		}
		if earnedToday >= max {
			return &engagement.RateLimitError{MaxPointsPerDay: max}
		}
	}

	return nil
}

// TrackEngagement validates and records one engagement event. The
// engagement row, the ledger row, the user point increments, and the
// contest-entry upsert commit in a single transaction. Rejections from
// CanEngage propagate unwrapped so callers can branch on kind.
func (t *EngagementTracker) TrackEngagement(ctx context.Context, event EngagementEvent) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.EngagementTracker.TrackEngagement")
	defer span.End()

	if event.UserID == "" {
		return false, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	_, exists, err := t.users.GetByID(ctx, event.UserID)
	if err != nil {
		return false, &engagement.TransactionError{Op: "get user", Err: err}
	}
	if !exists {
		return false, &engagement.UserNotFoundError{UserID: event.UserID}
	}

	if err := t.CanEngage(ctx, event.UserID, event.Type); err != nil {
		return false, err
	}

	now := t.now().UTC()
	points := t.CalculatePoints(event.Type)

	engagementID, err := t.idgen.NewID()
	if err != nil {
		return false, fmt.Errorf("generate engagement id: %w", err)
	}

	contestID := ""
	if active, ok, err := t.contests.GetActive(ctx); err != nil {
		return false, &engagement.TransactionError{Op: "get active contest", Err: err}
	} else if ok {
		contestID = active.ID
	}

	// The caller keeps ownership of its metadata map; stamp the awarded
	// points onto a copy.
	metadata := make(map[string]any, len(event.Metadata)+1)
	for k, v := range event.Metadata {
		metadata[k] = v
	}
	metadata["points"] = points

	record := engagement.Record{
		Engagement: engagement.Engagement{
			ID:        engagementID,
			UserID:    event.UserID,
			Platform:  t.platform,
			Type:      event.Type,
			Points:    points,
			Metadata:  metadata,
			Timestamp: now,
		},
		ContestID: contestID,
	}
	if err := t.engagements.Record(ctx, record); err != nil {
		return false, &engagement.TransactionError{Op: "record engagement", Err: err}
	}

	// Streak maintenance happens after the commit and never fails the
	// tracked engagement.
	if t.streaks != nil {
		if _, err := t.streaks.Update(ctx, event.UserID, t.platform); err != nil {
			t.logger.WarnContext(ctx, "streak update failed",
				"user_id", event.UserID,
				"platform", string(t.platform),
				"error", err,
			)
		}
	}

	return true, nil
}
