package postgres

import (
	"database/sql"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/contest"
)

type contestTableModel struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	StartTime time.Time `db:"start_time"`
	EndTime   time.Time `db:"end_time"`
	Status    string    `db:"status"`
	Metadata  string    `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type contestEntryTableModel struct {
	ID          int64         `db:"id"`
	ContestID   string        `db:"contest_id"`
	UserID      string        `db:"user_id"`
	Points      int           `db:"points"`
	Rank        sql.NullInt64 `db:"rank"`
	QualifiedAt sql.NullTime  `db:"qualified_at"`
	Metadata    string        `db:"metadata"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

// Rank is stored as 0 rather than NULL for tier rewards so the
// (contest_id, user_id, system, tier_name, rank) unique key can
// deduplicate re-runs of distribution.
type contestRewardTableModel struct {
	ID        string       `db:"id"`
	ContestID string       `db:"contest_id"`
	UserID    string       `db:"user_id"`
	Type      string       `db:"type"`
	System    string       `db:"system"`
	TierName  string       `db:"tier_name"`
	Rank      int          `db:"rank"`
	Status    string       `db:"status"`
	ExpiresAt sql.NullTime `db:"expires_at"`
	ClaimedAt sql.NullTime `db:"claimed_at"`
	CreatedAt time.Time    `db:"created_at"`
}

func contestFromRow(row contestTableModel) contest.Contest {
	out := contest.Contest{
		ID:        row.ID,
		Name:      row.Name,
		StartTime: row.StartTime,
		EndTime:   row.EndTime,
		Status:    contest.Status(row.Status),
	}
	decodeJSON(row.Metadata, &out.Metadata)
	return out
}

func entryFromRow(row contestEntryTableModel) contest.Entry {
	out := contest.Entry{
		ContestID:   row.ContestID,
		UserID:      row.UserID,
		Points:      row.Points,
		Rank:        nullInt64ToIntPtr(row.Rank),
		QualifiedAt: nullTimeToTimePtr(row.QualifiedAt),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	decodeJSON(row.Metadata, &out.Metadata)
	return out
}

func rewardFromRow(row contestRewardTableModel) contest.Reward {
	return contest.Reward{
		ID:        row.ID,
		ContestID: row.ContestID,
		UserID:    row.UserID,
		Type:      row.Type,
		System:    contest.RewardSystem(row.System),
		TierName:  row.TierName,
		Rank:      row.Rank,
		Status:    contest.RewardStatus(row.Status),
		ExpiresAt: nullTimeToTimePtr(row.ExpiresAt),
		ClaimedAt: nullTimeToTimePtr(row.ClaimedAt),
		CreatedAt: row.CreatedAt,
	}
}
