package engagement

import "fmt"

// The tracker's failure modes are distinguishable by type so callers
// can branch on kind with errors.As instead of matching message text.

// ValidationError reports an unsupported or malformed engagement type.
type ValidationError struct {
	Platform Platform
	Type     Type
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid engagement %s/%s: %s", e.Platform, e.Type, e.Reason)
	}
	return fmt.Sprintf("invalid engagement %s/%s", e.Platform, e.Type)
}

// CooldownError reports an engagement attempted before its cooldown
// elapsed. RemainingSeconds is rounded up so "retry after" is never early.
type CooldownError struct {
	Type             Type
	RemainingSeconds int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("engagement %s on cooldown for %ds", e.Type, e.RemainingSeconds)
}

// DailyLimitError reports that the per-type daily count is exhausted.
// Retryable after the next UTC day boundary.
type DailyLimitError struct {
	Type  Type
	Limit int
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("daily limit of %d reached for engagement %s", e.Limit, e.Type)
}

// RateLimitError reports that the user's total points earned today,
// across all engagement types, hit the global ceiling.
type RateLimitError struct {
	MaxPointsPerDay int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("daily point cap of %d reached", e.MaxPointsPerDay)
}

// UserNotFoundError reports an engagement for an unregistered user.
// The tracker never silently creates users.
type UserNotFoundError struct {
	UserID string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %s not found", e.UserID)
}

// TransactionError wraps an unexpected persistence failure inside the
// engagement write transaction. Validation-kind errors are never
// wrapped in one of these.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("engagement transaction failed during %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// IsRejection reports whether err is one of the validation-kind
// rejections (cooldown, limits, unsupported type, unknown user) as
// opposed to an unexpected failure.
func IsRejection(err error) bool {
	switch err.(type) {
	case *ValidationError, *CooldownError, *DailyLimitError, *RateLimitError, *UserNotFoundError:
		return true
	}
	return false
}
