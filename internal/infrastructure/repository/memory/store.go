package memory

import (
	"fmt"
	"sync"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/contest"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/streak"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/user"
)

// Store is the shared in-memory state behind every memory repository.
// One mutex guards all aggregates so the multi-table engagement write
// has the same all-or-nothing behavior as a database transaction.
type Store struct {
	mu sync.RWMutex

	users        map[string]user.User
	engagements  []engagement.Engagement
	transactions []engagement.PointTransaction
	streaks      map[string]streak.UserStreak

	contests     map[string]contest.Contest
	contestOrder []string
	entries      map[string]map[string]contest.Entry
	entryOrder   map[string][]string
	rewards      map[string]contest.Reward
	rewardOrder  []string

	seq int

	failNextRecord error
}

func NewStore() *Store {
	return &Store{
		users:      make(map[string]user.User),
		streaks:    make(map[string]streak.UserStreak),
		contests:   make(map[string]contest.Contest),
		entries:    make(map[string]map[string]contest.Entry),
		entryOrder: make(map[string][]string),
		rewards:    make(map[string]contest.Reward),
	}
}

// FailNextEngagementRecord makes the next Record call fail before any
// state changes, simulating a rolled-back transaction.
func (s *Store) FailNextEngagementRecord(err error) {
	s.mu.Lock()
	s.failNextRecord = err
	s.mu.Unlock()
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}
