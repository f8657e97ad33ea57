package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/streak"
	qb "github.com/ScotianOG/the-soless-system-sub002/internal/platform/querybuilder"
)

type streakTableModel struct {
	UserID               string    `db:"user_id"`
	TelegramCount        int       `db:"telegram_count"`
	TelegramLastActivity time.Time `db:"telegram_last_activity"`
	DiscordCount         int       `db:"discord_count"`
	DiscordLastActivity  time.Time `db:"discord_last_activity"`
	TwitterCount         int       `db:"twitter_count"`
	TwitterLastActivity  time.Time `db:"twitter_last_activity"`
	UpdatedAt            time.Time `db:"updated_at"`
}

type StreakRepository struct {
	db *sqlx.DB
}

func NewStreakRepository(db *sqlx.DB) *StreakRepository {
	return &StreakRepository{db: db}
}

func (r *StreakRepository) Get(ctx context.Context, userID string) (streak.UserStreak, bool, error) {
	query, args, err := qb.Select("*").From("user_streaks").
		Where(qb.Eq("user_id", userID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return streak.UserStreak{}, false, fmt.Errorf("build get user streak query: %w", err)
	}

	var row streakTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return streak.UserStreak{}, false, nil
		}
		return streak.UserStreak{}, false, fmt.Errorf("get user streak %s: %w", userID, err)
	}

	return streak.UserStreak{
		UserID:    row.UserID,
		Telegram:  streak.State{Count: row.TelegramCount, LastActivity: row.TelegramLastActivity},
		Discord:   streak.State{Count: row.DiscordCount, LastActivity: row.DiscordLastActivity},
		Twitter:   streak.State{Count: row.TwitterCount, LastActivity: row.TwitterLastActivity},
		UpdatedAt: row.UpdatedAt,
	}, true, nil
}

func (r *StreakRepository) Upsert(ctx context.Context, s streak.UserStreak) error {
	insertModel := streakTableModel{
		UserID:               s.UserID,
		TelegramCount:        s.Telegram.Count,
		TelegramLastActivity: s.Telegram.LastActivity,
		DiscordCount:         s.Discord.Count,
		DiscordLastActivity:  s.Discord.LastActivity,
		TwitterCount:         s.Twitter.Count,
		TwitterLastActivity:  s.Twitter.LastActivity,
		UpdatedAt:            s.UpdatedAt,
	}
	query, args, err := qb.InsertModel("user_streaks", insertModel, `ON CONFLICT (user_id)
DO UPDATE SET
    telegram_count = EXCLUDED.telegram_count,
    telegram_last_activity = EXCLUDED.telegram_last_activity,
    discord_count = EXCLUDED.discord_count,
    discord_last_activity = EXCLUDED.discord_last_activity,
    twitter_count = EXCLUDED.twitter_count,
    twitter_last_activity = EXCLUDED.twitter_last_activity,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build upsert user streak query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert user streak %s: %w", s.UserID, err)
	}
	return nil
}
