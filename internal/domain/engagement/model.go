package engagement

import "time"

// Platform is a social platform the system tracks engagement on.
type Platform string

const (
	PlatformTelegram Platform = "TELEGRAM"
	PlatformDiscord  Platform = "DISCORD"
	PlatformTwitter  Platform = "TWITTER"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformTelegram, PlatformDiscord, PlatformTwitter:
		return true
	}
	return false
}

func Platforms() []Platform {
	return []Platform{PlatformTelegram, PlatformDiscord, PlatformTwitter}
}

// Type is a countable user action on a platform.
type Type string

const (
	TypeMessage     Type = "MESSAGE"
	TypeReaction    Type = "REACTION"
	TypeReply       Type = "REPLY"
	TypeInvite      Type = "INVITE"
	TypeShare       Type = "SHARE"
	TypeQualityPost Type = "QUALITY_POST"
	TypeVoiceChat   Type = "VOICE_CHAT"
	TypeMention     Type = "MENTION"
	TypeStreakBonus Type = "STREAK_BONUS"
)

// Engagement is an append-only record of a single accepted user action.
type Engagement struct {
	ID        string
	UserID    string
	Platform  Platform
	Type      Type
	Points    int
	Metadata  map[string]any
	Timestamp time.Time
}

// TransactionReason classifies entries in the point ledger.
type TransactionReason string

const (
	ReasonEngagement  TransactionReason = "ENGAGEMENT"
	ReasonStreakBonus TransactionReason = "STREAK_BONUS"
)

// PointTransaction mirrors each point award for auditing and
// daily-limit computation. One row per accepted engagement.
type PointTransaction struct {
	ID        string
	UserID    string
	Platform  Platform
	Type      Type
	Reason    TransactionReason
	Points    int
	ContestID string
	CreatedAt time.Time
}

// DayStart returns the UTC start of the day containing t. Cooldown
// windows are relative, but daily limits reset at the UTC day boundary.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
