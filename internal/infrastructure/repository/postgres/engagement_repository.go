package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/contest"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
	qb "github.com/ScotianOG/the-soless-system-sub002/internal/platform/querybuilder"
)

type EngagementRepository struct {
	db *sqlx.DB
}

func NewEngagementRepository(db *sqlx.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

func (r *EngagementRepository) GetLast(ctx context.Context, userID string, platform engagement.Platform, engagementType engagement.Type) (engagement.Engagement, bool, error) {
	query, args, err := qb.Select("*").From("engagements").
		Where(
			qb.Eq("user_id", userID),
			qb.Eq("platform", string(platform)),
			qb.Eq("type", string(engagementType)),
		).
		OrderBy("timestamp DESC", "id DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return engagement.Engagement{}, false, fmt.Errorf("build get last engagement query: %w", err)
	}

	var row engagementTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return engagement.Engagement{}, false, nil
		}
		return engagement.Engagement{}, false, fmt.Errorf("get last engagement user=%s: %w", userID, err)
	}

	return engagementFromRow(row), true, nil
}

func (r *EngagementRepository) CountSince(ctx context.Context, userID string, platform engagement.Platform, engagementType engagement.Type, since time.Time) (int, error) {
	query, args, err := qb.Select("COUNT(1)").From("engagements").
		Where(
			qb.Eq("user_id", userID),
			qb.Eq("platform", string(platform)),
			qb.Eq("type", string(engagementType)),
			qb.Expr("timestamp >= ?", since),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count engagements query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count engagements user=%s: %w", userID, err)
	}
	return count, nil
}

func (r *EngagementRepository) SumPointsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query, args, err := qb.Select("COALESCE(SUM(points), 0)").From("point_transactions").
		Where(
			qb.Eq("user_id", userID),
			qb.Expr("created_at >= ?", since),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build sum points query: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("sum points user=%s: %w", userID, err)
	}
	return total, nil
}

// Record writes the engagement row, the ledger row, the user point
// increments, and the contest-entry upsert in one transaction.
//
// The contest link is re-validated inside the transaction: callers
// resolve the active contest from a read path that may be cached, so a
// round settled on another instance could still look ACTIVE to them.
// A link to a contest that is no longer ACTIVE is dropped — the user
// keeps the points, the settled standings stay frozen.
func (r *EngagementRepository) Record(ctx context.Context, record engagement.Record) error {
	item := record.Engagement

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx record engagement: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	contestID := record.ContestID
	if contestID != "" {
		active, err := contestActiveTx(ctx, tx, contestID)
		if err != nil {
			return err
		}
		if !active {
			contestID = ""
		}
	}

	insertModel := engagementInsertModel{
		ID:        item.ID,
		UserID:    item.UserID,
		Platform:  string(item.Platform),
		Type:      string(item.Type),
		Points:    item.Points,
		Metadata:  encodeJSONMap(item.Metadata),
		Timestamp: item.Timestamp,
	}
	query, args, err := qb.InsertModel("engagements", insertModel, "")
	if err != nil {
		return fmt.Errorf("build insert engagement query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert engagement %s: %w", item.ID, err)
	}

	if err := insertTransactionTx(ctx, tx, pointTransactionInsertModel{
		UserID:    item.UserID,
		Platform:  string(item.Platform),
		Type:      string(item.Type),
		Reason:    string(engagement.ReasonEngagement),
		Points:    item.Points,
		ContestID: nilIfEmpty(contestID),
		CreatedAt: item.Timestamp,
	}); err != nil {
		return err
	}

	if err := incrementUserPointsTx(ctx, tx, item.UserID, item.Points, &item.Timestamp); err != nil {
		return err
	}

	if contestID != "" {
		if err := upsertContestEntryTx(ctx, tx, contestID, item.UserID, item.Points, item.Timestamp); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record engagement tx: %w", err)
	}
	return nil
}

// AwardBonus credits points outside any engagement row, as one
// transaction over the ledger and the user counters.
func (r *EngagementRepository) AwardBonus(ctx context.Context, userID string, platform engagement.Platform, points int, reason engagement.TransactionReason) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx award bonus: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	if err := insertTransactionTx(ctx, tx, pointTransactionInsertModel{
		UserID:    userID,
		Platform:  string(platform),
		Type:      string(engagement.TypeStreakBonus),
		Reason:    string(reason),
		Points:    points,
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if err := incrementUserPointsTx(ctx, tx, userID, points, nil); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit award bonus tx: %w", err)
	}
	return nil
}

func insertTransactionTx(ctx context.Context, tx *sqlx.Tx, insertModel pointTransactionInsertModel) error {
	query, args, err := qb.InsertModel("point_transactions", insertModel, "")
	if err != nil {
		return fmt.Errorf("build insert point transaction query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert point transaction user=%s: %w", insertModel.UserID, err)
	}
	return nil
}

func incrementUserPointsTx(ctx context.Context, tx *sqlx.Tx, userID string, points int, lastActive *time.Time) error {
	builder := qb.Update("users").
		SetExpr("points", "points + ?", points).
		SetExpr("lifetime_points", "lifetime_points + ?", points).
		SetExpr("updated_at", "NOW()")
	if lastActive != nil {
		builder = builder.Set("last_active", *lastActive)
	}
	query, args, err := builder.
		Where(
			qb.Eq("id", userID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build increment user points query: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("increment points user=%s: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment points rows affected user=%s: %w", userID, err)
	}
	if affected == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

func contestActiveTx(ctx context.Context, tx *sqlx.Tx, contestID string) (bool, error) {
	query, args, err := qb.Select("COUNT(1)").From("contests").
		Where(
			qb.Eq("id", contestID),
			qb.Eq("status", string(contest.StatusActive)),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build contest active check query: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check contest %s active: %w", contestID, err)
	}
	return count > 0, nil
}

func upsertContestEntryTx(ctx context.Context, tx *sqlx.Tx, contestID, userID string, points int, now time.Time) error {
	query, args, err := qb.InsertInto("contest_entries").
		Columns("contest_id", "user_id", "points", "metadata", "created_at", "updated_at").
		Values(contestID, userID, points, "{}", now, now).
		Suffix(`ON CONFLICT (contest_id, user_id)
DO UPDATE SET
    points = contest_entries.points + EXCLUDED.points,
    updated_at = EXCLUDED.updated_at`).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert contest entry query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert contest entry contest=%s user=%s: %w", contestID, userID, err)
	}
	return nil
}

func nilIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
