package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/contest"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
)

type EngagementRepository struct {
	store *Store
}

func NewEngagementRepository(store *Store) *EngagementRepository {
	return &EngagementRepository{store: store}
}

func (r *EngagementRepository) GetLast(_ context.Context, userID string, platform engagement.Platform, engagementType engagement.Type) (engagement.Engagement, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for i := len(r.store.engagements) - 1; i >= 0; i-- {
		item := r.store.engagements[i]
		if item.UserID == userID && item.Platform == platform && item.Type == engagementType {
			return item, true, nil
		}
	}
	return engagement.Engagement{}, false, nil
}

func (r *EngagementRepository) CountSince(_ context.Context, userID string, platform engagement.Platform, engagementType engagement.Type, since time.Time) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, item := range r.store.engagements {
		if item.UserID == userID && item.Platform == platform && item.Type == engagementType && !item.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *EngagementRepository) SumPointsSince(_ context.Context, userID string, since time.Time) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	total := 0
	for _, tx := range r.store.transactions {
		if tx.UserID == userID && !tx.CreatedAt.Before(since) {
			total += tx.Points
		}
	}
	return total, nil
}

func (r *EngagementRepository) Record(_ context.Context, record engagement.Record) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.store.failNextRecord; err != nil {
		r.store.failNextRecord = nil
		return err
	}

	item := record.Engagement
	u, ok := r.store.users[item.UserID]
	if !ok {
		return fmt.Errorf("user %s not found", item.UserID)
	}

	// Re-validate the contest link at write time: the caller may have
	// resolved it from a cached read while another instance settled the
	// round. A stale link is dropped, not written.
	contestID := record.ContestID
	if contestID != "" {
		if c, exists := r.store.contests[contestID]; !exists || c.Status != contest.StatusActive {
			contestID = ""
		}
	}

	r.store.engagements = append(r.store.engagements, item)
	r.store.transactions = append(r.store.transactions, engagement.PointTransaction{
		ID:        r.store.nextID("tx"),
		UserID:    item.UserID,
		Platform:  item.Platform,
		Type:      item.Type,
		Reason:    engagement.ReasonEngagement,
		Points:    item.Points,
		ContestID: contestID,
		CreatedAt: item.Timestamp,
	})

	u.Points += item.Points
	u.LifetimePoints += item.Points
	u.LastActive = item.Timestamp
	r.store.users[item.UserID] = u

	if contestID != "" {
		r.upsertEntryLocked(contestID, item.UserID, item.Points, item.Timestamp)
	}

	return nil
}

func (r *EngagementRepository) AwardBonus(_ context.Context, userID string, platform engagement.Platform, points int, reason engagement.TransactionReason) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u, ok := r.store.users[userID]
	if !ok {
		return fmt.Errorf("user %s not found", userID)
	}

	now := time.Now().UTC()
	u.Points += points
	u.LifetimePoints += points
	r.store.users[userID] = u

	r.store.transactions = append(r.store.transactions, engagement.PointTransaction{
		ID:        r.store.nextID("tx"),
		UserID:    userID,
		Platform:  platform,
		Type:      engagement.TypeStreakBonus,
		Reason:    reason,
		Points:    points,
		CreatedAt: now,
	})
	return nil
}

func (r *EngagementRepository) upsertEntryLocked(contestID, userID string, points int, now time.Time) {
	byUser, ok := r.store.entries[contestID]
	if !ok {
		byUser = make(map[string]contest.Entry)
		r.store.entries[contestID] = byUser
	}

	entry, exists := byUser[userID]
	if !exists {
		entry = contest.Entry{
			ContestID: contestID,
			UserID:    userID,
			Points:    points,
			CreatedAt: now,
			UpdatedAt: now,
		}
		r.store.entryOrder[contestID] = append(r.store.entryOrder[contestID], userID)
	} else {
		entry.Points += points
		entry.UpdatedAt = now
	}
	byUser[userID] = entry
}
