package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
)

// EngagementRule configures one engagement type on one platform.
// Cooldown and DailyLimit are optional; zero means "no restriction".
type EngagementRule struct {
	Points          int `validate:"gte=0"`
	CooldownSeconds int `validate:"gte=0"`
	DailyLimit      int `validate:"gte=0"`
}

// PointsConfig maps platform and engagement type to its rule.
type PointsConfig map[engagement.Platform]map[engagement.Type]EngagementRule

// RateLimitConfig bounds total points a user can earn per UTC day
// across every engagement type.
type RateLimitConfig struct {
	MaxPointsPerDay int `validate:"gt=0"`
}

// Tier is a points threshold unlocking a fixed reward, independent of
// rank. Multiple users can hold the same tier.
type Tier struct {
	Name      string `validate:"required"`
	MinPoints int    `validate:"gte=0"`
	Reward    string `validate:"required"`
}

// RankPrize is a reward tied to finishing position in a settled round.
type RankPrize struct {
	Rank        int    `validate:"gt=0"`
	Reward      string `validate:"required"`
	Description string
}

// ContestConfig drives contest rounds and settlement.
type ContestConfig struct {
	RoundDurationHours int         `validate:"gt=0"`
	MinPointsToQualify int         `validate:"gte=0"`
	Tiers              []Tier      `validate:"dive"`
	Prizes             []RankPrize `validate:"dive"`
}

// StreakConfig drives milestone bonuses for consecutive-day activity.
type StreakConfig struct {
	BonusPoints    int `validate:"gte=0"`
	MilestoneEvery int `validate:"gt=0"`
}

// EngagementConfig is the versioned, read-mostly configuration tree
// consumed by the tracker, the streak service and the reward manager.
type EngagementConfig struct {
	Version   int
	Points    PointsConfig `validate:"required"`
	RateLimit RateLimitConfig
	Contest   ContestConfig
	Streak    StreakConfig
}

// Rule returns the rule for (platform, type) and whether one exists.
func (c EngagementConfig) Rule(p engagement.Platform, t engagement.Type) (EngagementRule, bool) {
	byType, ok := c.Points[p]
	if !ok {
		return EngagementRule{}, false
	}
	rule, ok := byType[t]
	return rule, ok
}

// DefaultEngagement returns the built-in configuration table.
func DefaultEngagement() EngagementConfig {
	return EngagementConfig{
		Version: 1,
		Points: PointsConfig{
			engagement.PlatformTelegram: {
				engagement.TypeMessage:     {Points: 2, CooldownSeconds: 60, DailyLimit: 20},
				engagement.TypeReaction:    {Points: 1, CooldownSeconds: 30, DailyLimit: 30},
				engagement.TypeReply:       {Points: 2, CooldownSeconds: 60, DailyLimit: 20},
				engagement.TypeQualityPost: {Points: 5, CooldownSeconds: 300, DailyLimit: 5},
				engagement.TypeVoiceChat:   {Points: 3, CooldownSeconds: 600, DailyLimit: 6},
				engagement.TypeInvite:      {Points: 10, DailyLimit: 10},
			},
			engagement.PlatformDiscord: {
				engagement.TypeMessage:   {Points: 2, CooldownSeconds: 60, DailyLimit: 20},
				engagement.TypeReaction:  {Points: 1, CooldownSeconds: 30, DailyLimit: 30},
				engagement.TypeVoiceChat: {Points: 3, CooldownSeconds: 600, DailyLimit: 6},
				engagement.TypeInvite:    {Points: 10, DailyLimit: 10},
			},
			engagement.PlatformTwitter: {
				engagement.TypeShare:   {Points: 5, CooldownSeconds: 300, DailyLimit: 10},
				engagement.TypeMention: {Points: 3, CooldownSeconds: 120, DailyLimit: 15},
			},
		},
		RateLimit: RateLimitConfig{MaxPointsPerDay: 100},
		Contest: ContestConfig{
			RoundDurationHours: 72,
			MinPointsToQualify: 25,
			Tiers: []Tier{
				{Name: "BRONZE", MinPoints: 25, Reward: "WHITELIST"},
				{Name: "SILVER", MinPoints: 50, Reward: "FREE_MINT"},
				{Name: "GOLD", MinPoints: 100, Reward: "FREE_GAS_MINT"},
			},
			Prizes: []RankPrize{
				{Rank: 1, Reward: "USDC", Description: "First place: 50 USDC"},
				{Rank: 2, Reward: "USDC", Description: "Second place: 25 USDC"},
				{Rank: 3, Reward: "USDC", Description: "Third place: 10 USDC"},
			},
		},
		Streak: StreakConfig{BonusPoints: 5, MilestoneEvery: 3},
	}
}

// LoadEngagement returns the default table with env overrides for the
// operational knobs, validated as a whole.
func LoadEngagement() (EngagementConfig, error) {
	cfg := DefaultEngagement()

	roundDuration, err := getEnvAsInt("CONTEST_ROUND_DURATION_HOURS", cfg.Contest.RoundDurationHours)
	if err != nil {
		return EngagementConfig{}, fmt.Errorf("parse CONTEST_ROUND_DURATION_HOURS: %w", err)
	}
	cfg.Contest.RoundDurationHours = roundDuration

	minQualify, err := getEnvAsInt("CONTEST_MIN_POINTS_TO_QUALIFY", cfg.Contest.MinPointsToQualify)
	if err != nil {
		return EngagementConfig{}, fmt.Errorf("parse CONTEST_MIN_POINTS_TO_QUALIFY: %w", err)
	}
	cfg.Contest.MinPointsToQualify = minQualify

	maxPointsPerDay, err := getEnvAsInt("MAX_POINTS_PER_DAY", cfg.RateLimit.MaxPointsPerDay)
	if err != nil {
		return EngagementConfig{}, fmt.Errorf("parse MAX_POINTS_PER_DAY: %w", err)
	}
	cfg.RateLimit.MaxPointsPerDay = maxPointsPerDay

	streakBonus, err := getEnvAsInt("STREAK_BONUS_POINTS", cfg.Streak.BonusPoints)
	if err != nil {
		return EngagementConfig{}, fmt.Errorf("parse STREAK_BONUS_POINTS: %w", err)
	}
	cfg.Streak.BonusPoints = streakBonus

	if err := cfg.Validate(); err != nil {
		return EngagementConfig{}, err
	}

	return cfg, nil
}

var engagementValidator = validator.New()

// Validate checks the tree's structural constraints.
func (c EngagementConfig) Validate() error {
	if len(c.Points) == 0 {
		return fmt.Errorf("engagement config: points table is empty")
	}
	for platform, byType := range c.Points {
		if !platform.Valid() {
			return fmt.Errorf("engagement config: unknown platform %q", platform)
		}
		for engagementType, rule := range byType {
			if err := engagementValidator.Struct(rule); err != nil {
				return fmt.Errorf("engagement config: rule %s/%s: %w", platform, engagementType, err)
			}
		}
	}
	if err := engagementValidator.Struct(c.RateLimit); err != nil {
		return fmt.Errorf("engagement config: rate limit: %w", err)
	}
	if err := engagementValidator.Struct(c.Contest); err != nil {
		return fmt.Errorf("engagement config: contest: %w", err)
	}
	if err := engagementValidator.Struct(c.Streak); err != nil {
		return fmt.Errorf("engagement config: streak: %w", err)
	}
	return nil
}
