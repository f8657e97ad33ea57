package postgres

import (
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
)

type engagementTableModel struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Platform  string    `db:"platform"`
	Type      string    `db:"type"`
	Points    int       `db:"points"`
	Metadata  string    `db:"metadata"`
	Timestamp time.Time `db:"timestamp"`
	CreatedAt time.Time `db:"created_at"`
}

type engagementInsertModel struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Platform  string    `db:"platform"`
	Type      string    `db:"type"`
	Points    int       `db:"points"`
	Metadata  string    `db:"metadata"`
	Timestamp time.Time `db:"timestamp"`
}

type pointTransactionInsertModel struct {
	UserID    string    `db:"user_id"`
	Platform  string    `db:"platform"`
	Type      string    `db:"type"`
	Reason    string    `db:"reason"`
	Points    int       `db:"points"`
	ContestID *string   `db:"contest_id"`
	CreatedAt time.Time `db:"created_at"`
}

func engagementFromRow(row engagementTableModel) engagement.Engagement {
	return engagement.Engagement{
		ID:        row.ID,
		UserID:    row.UserID,
		Platform:  engagement.Platform(row.Platform),
		Type:      engagement.Type(row.Type),
		Points:    row.Points,
		Metadata:  decodeJSONMap(row.Metadata),
		Timestamp: row.Timestamp,
	}
}
