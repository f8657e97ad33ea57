package postgres

import (
	"database/sql"
	"time"
)

type userTableModel struct {
	ID             string       `db:"id"`
	Wallet         string       `db:"wallet"`
	Username       string       `db:"username"`
	Points         int          `db:"points"`
	LifetimePoints int          `db:"lifetime_points"`
	LastActive     sql.NullTime `db:"last_active"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
	DeletedAt      *time.Time   `db:"deleted_at"`
}

type userInsertModel struct {
	ID             string       `db:"id"`
	Wallet         string       `db:"wallet"`
	Username       string       `db:"username"`
	Points         int          `db:"points"`
	LifetimePoints int          `db:"lifetime_points"`
	LastActive     sql.NullTime `db:"last_active"`
}
