package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/user"
	qb "github.com/ScotianOG/the-soless-system-sub002/internal/platform/querybuilder"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (user.User, bool, error) {
	query, args, err := qb.Select("*").From("users").
		Where(
			qb.Eq("id", userID),
			qb.IsNull("deleted_at"),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return user.User{}, false, fmt.Errorf("build get user query: %w", err)
	}

	var row userTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return user.User{}, false, nil
		}
		return user.User{}, false, fmt.Errorf("get user %s: %w", userID, err)
	}

	return userFromRow(row), true, nil
}

func (r *UserRepository) Create(ctx context.Context, u user.User) error {
	insertModel := userInsertModel{
		ID:             u.ID,
		Wallet:         u.Wallet,
		Username:       u.Username,
		Points:         u.Points,
		LifetimePoints: u.LifetimePoints,
		LastActive:     lastActiveToNullTime(u.LastActive),
	}
	query, args, err := qb.InsertModel("users", insertModel, "")
	if err != nil {
		return fmt.Errorf("build insert user query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert user %s: %w", u.ID, err)
	}
	return nil
}

func userFromRow(row userTableModel) user.User {
	out := user.User{
		ID:             row.ID,
		Wallet:         row.Wallet,
		Username:       row.Username,
		Points:         row.Points,
		LifetimePoints: row.LifetimePoints,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.LastActive.Valid {
		out.LastActive = row.LastActive.Time
	}
	return out
}

func lastActiveToNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
