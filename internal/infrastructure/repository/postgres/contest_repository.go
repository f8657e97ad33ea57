package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/contest"
	qb "github.com/ScotianOG/the-soless-system-sub002/internal/platform/querybuilder"
)

// rewardInsertBatchSize bounds the number of rows per INSERT so large
// settlements stay under the postgres bind-parameter limit.
const rewardInsertBatchSize = 500

type ContestRepository struct {
	db *sqlx.DB
}

func NewContestRepository(db *sqlx.DB) *ContestRepository {
	return &ContestRepository{db: db}
}

func (r *ContestRepository) GetActive(ctx context.Context) (contest.Contest, bool, error) {
	query, args, err := qb.Select("*").From("contests").
		Where(qb.Eq("status", string(contest.StatusActive))).
		OrderBy("start_time DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return contest.Contest{}, false, fmt.Errorf("build get active contest query: %w", err)
	}

	var row contestTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return contest.Contest{}, false, nil
		}
		return contest.Contest{}, false, fmt.Errorf("get active contest: %w", err)
	}
	return contestFromRow(row), true, nil
}

func (r *ContestRepository) GetByID(ctx context.Context, contestID string) (contest.Contest, bool, error) {
	query, args, err := qb.Select("*").From("contests").
		Where(qb.Eq("id", contestID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return contest.Contest{}, false, fmt.Errorf("build get contest query: %w", err)
	}

	var row contestTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return contest.Contest{}, false, nil
		}
		return contest.Contest{}, false, fmt.Errorf("get contest %s: %w", contestID, err)
	}
	return contestFromRow(row), true, nil
}

func (r *ContestRepository) CompleteActiveAndCreate(ctx context.Context, next contest.Contest) (contest.Contest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return contest.Contest{}, fmt.Errorf("begin tx rotate contest: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	closeQuery, closeArgs, err := qb.Update("contests").
		Set("status", string(contest.StatusCompleted)).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("status", string(contest.StatusActive))).
		ToSQL()
	if err != nil {
		return contest.Contest{}, fmt.Errorf("build close active contests query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, closeQuery, closeArgs...); err != nil {
		return contest.Contest{}, fmt.Errorf("close active contests: %w", err)
	}

	next.Status = contest.StatusActive
	query, args, err := qb.InsertInto("contests").
		Columns("id", "name", "start_time", "end_time", "status", "metadata").
		Values(next.ID, next.Name, next.StartTime, next.EndTime, string(next.Status), encodeJSON(next.Metadata)).
		ToSQL()
	if err != nil {
		return contest.Contest{}, fmt.Errorf("build insert contest query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return contest.Contest{}, fmt.Errorf("insert contest %s: %w", next.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return contest.Contest{}, fmt.Errorf("commit rotate contest tx: %w", err)
	}
	return next, nil
}

func (r *ContestRepository) ListEntries(ctx context.Context, contestID string) ([]contest.Entry, error) {
	query, args, err := qb.Select("*").From("contest_entries").
		Where(qb.Eq("contest_id", contestID)).
		OrderBy("points DESC", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list contest entries query: %w", err)
	}

	var rows []contestEntryTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list contest entries %s: %w", contestID, err)
	}

	out := make([]contest.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, entryFromRow(row))
	}
	return out, nil
}

func (r *ContestRepository) GetEntry(ctx context.Context, contestID, userID string) (contest.Entry, bool, error) {
	query, args, err := qb.Select("*").From("contest_entries").
		Where(
			qb.Eq("contest_id", contestID),
			qb.Eq("user_id", userID),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return contest.Entry{}, false, fmt.Errorf("build get contest entry query: %w", err)
	}

	var row contestEntryTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return contest.Entry{}, false, nil
		}
		return contest.Entry{}, false, fmt.Errorf("get contest entry contest=%s user=%s: %w", contestID, userID, err)
	}
	return entryFromRow(row), true, nil
}

func (r *ContestRepository) CountEntries(ctx context.Context, contestID string) (int, error) {
	query, args, err := qb.Select("COUNT(1)").From("contest_entries").
		Where(qb.Eq("contest_id", contestID)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count contest entries query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count contest entries %s: %w", contestID, err)
	}
	return count, nil
}

func (r *ContestRepository) Settle(ctx context.Context, contestID string, ranks map[string]int, meta contest.Metadata) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx settle contest: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	qualified := make(map[string]struct{}, len(meta.QualifiedUserIDs))
	for _, userID := range meta.QualifiedUserIDs {
		qualified[userID] = struct{}{}
	}

	for userID, rank := range ranks {
		builder := qb.Update("contest_entries").
			Set("rank", rank).
			SetExpr("updated_at", "NOW()")
		if _, ok := qualified[userID]; ok && meta.SettledAt != nil {
			builder = builder.SetExpr("qualified_at", "COALESCE(qualified_at, ?)", *meta.SettledAt)
		}
		query, args, err := builder.
			Where(
				qb.Eq("contest_id", contestID),
				qb.Eq("user_id", userID),
			).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build assign rank query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("assign rank contest=%s user=%s: %w", contestID, userID, err)
		}
	}

	query, args, err := qb.Update("contests").
		Set("status", string(contest.StatusCompleted)).
		Set("metadata", encodeJSON(meta)).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", contestID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build complete contest query: %w", err)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("complete contest %s: %w", contestID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete contest rows affected %s: %w", contestID, err)
	}
	if affected == 0 {
		return fmt.Errorf("contest %s not found", contestID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settle contest tx: %w", err)
	}
	return nil
}

func (r *ContestRepository) ListRewards(ctx context.Context, contestID string) ([]contest.Reward, error) {
	query, args, err := qb.Select("*").From("contest_rewards").
		Where(qb.Eq("contest_id", contestID)).
		OrderBy("created_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list contest rewards query: %w", err)
	}

	var rows []contestRewardTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list contest rewards %s: %w", contestID, err)
	}

	out := make([]contest.Reward, 0, len(rows))
	for _, row := range rows {
		out = append(out, rewardFromRow(row))
	}
	return out, nil
}

func (r *ContestRepository) GetReward(ctx context.Context, rewardID string) (contest.Reward, bool, error) {
	query, args, err := qb.Select("*").From("contest_rewards").
		Where(qb.Eq("id", rewardID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return contest.Reward{}, false, fmt.Errorf("build get reward query: %w", err)
	}

	var row contestRewardTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return contest.Reward{}, false, nil
		}
		return contest.Reward{}, false, fmt.Errorf("get reward %s: %w", rewardID, err)
	}
	return rewardFromRow(row), true, nil
}

func (r *ContestRepository) CreateRewardsAndUpdateEntries(ctx context.Context, rewards []contest.Reward, updates []contest.EntryMetadataUpdate) (int, error) {
	if len(rewards) == 0 && len(updates) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx create rewards: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	inserted := 0
	for start := 0; start < len(rewards); start += rewardInsertBatchSize {
		end := start + rewardInsertBatchSize
		if end > len(rewards) {
			end = len(rewards)
		}
		n, err := insertRewardBatchTx(ctx, tx, rewards[start:end])
		if err != nil {
			return 0, err
		}
		inserted += n
	}

	for _, update := range updates {
		query, args, err := qb.Update("contest_entries").
			Set("metadata", encodeJSON(update.Metadata)).
			SetExpr("updated_at", "NOW()").
			Where(
				qb.Eq("contest_id", update.ContestID),
				qb.Eq("user_id", update.UserID),
			).
			ToSQL()
		if err != nil {
			return 0, fmt.Errorf("build update entry metadata query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("update entry metadata contest=%s user=%s: %w", update.ContestID, update.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create rewards tx: %w", err)
	}
	return inserted, nil
}

func (r *ContestRepository) MarkRewardClaimed(ctx context.Context, rewardID string, claimedAt time.Time) (bool, error) {
	query, args, err := qb.Update("contest_rewards").
		Set("status", string(contest.RewardClaimed)).
		Set("claimed_at", claimedAt).
		Where(
			qb.Eq("id", rewardID),
			qb.Eq("status", string(contest.RewardPending)),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build claim reward query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim reward %s: %w", rewardID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim reward rows affected %s: %w", rewardID, err)
	}
	return affected > 0, nil
}

func (r *ContestRepository) ExpireRewards(ctx context.Context, now time.Time) (int, error) {
	query, args, err := qb.Update("contest_rewards").
		Set("status", string(contest.RewardExpired)).
		Where(
			qb.Eq("status", string(contest.RewardPending)),
			qb.Expr("expires_at IS NOT NULL AND expires_at <= ?", now),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build expire rewards query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("expire rewards: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire rewards rows affected: %w", err)
	}
	return int(affected), nil
}

// insertRewardBatchTx returns the rows actually written; ON CONFLICT
// DO NOTHING swallows rows already granted by a concurrent
// distribution, and those must not be reported as created.
func insertRewardBatchTx(ctx context.Context, tx *sqlx.Tx, rewards []contest.Reward) (int, error) {
	builder := qb.InsertInto("contest_rewards").
		Columns("id", "contest_id", "user_id", "type", "system", "tier_name", "rank", "status", "expires_at", "created_at")
	for _, reward := range rewards {
		builder = builder.Values(
			reward.ID,
			reward.ContestID,
			reward.UserID,
			reward.Type,
			string(reward.System),
			reward.TierName,
			reward.Rank,
			string(reward.Status),
			timePtrToNullTime(reward.ExpiresAt),
			reward.CreatedAt,
		)
	}
	query, args, err := builder.
		Suffix(`ON CONFLICT (contest_id, user_id, system, tier_name, rank) DO NOTHING`).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert rewards query: %w", err)
	}
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert rewards batch: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert rewards rows affected: %w", err)
	}
	return int(affected), nil
}
