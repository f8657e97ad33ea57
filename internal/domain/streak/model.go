package streak

import (
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
)

// MaxGap is the longest pause between activities before a streak
// resets. Two full days keeps a streak alive across one skipped day's
// worth of timezone drift but not an actually missed day.
const MaxGap = 48 * time.Hour

// State is the streak counter for one platform.
type State struct {
	Count        int
	LastActivity time.Time
}

// UserStreak tracks consecutive-activity streaks per platform. The
// platform fields are explicit rather than keyed by string so a typo'd
// platform name cannot become a silent no-op.
type UserStreak struct {
	UserID    string
	Telegram  State
	Discord   State
	Twitter   State
	UpdatedAt time.Time
}

// ForPlatform returns a pointer to the state for the given platform,
// or nil for an unknown platform.
func (s *UserStreak) ForPlatform(p engagement.Platform) *State {
	switch p {
	case engagement.PlatformTelegram:
		return &s.Telegram
	case engagement.PlatformDiscord:
		return &s.Discord
	case engagement.PlatformTwitter:
		return &s.Twitter
	}
	return nil
}

// Seed returns a fresh record with zero counts and now recorded as the
// last activity on all platforms. Seeding anchors future day-boundary
// checks without retroactively scoring past activity.
func Seed(userID string, now time.Time) UserStreak {
	state := State{Count: 0, LastActivity: now}
	return UserStreak{
		UserID:    userID,
		Telegram:  state,
		Discord:   state,
		Twitter:   state,
		UpdatedAt: now,
	}
}
