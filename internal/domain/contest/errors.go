package contest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoActiveContest is returned by lifecycle operations that need a
// running round when none exists.
var ErrNoActiveContest = errors.New("no active contest")

// ErrRewardNotFound is returned when a reward id resolves to nothing.
var ErrRewardNotFound = errors.New("reward not found")

// LockAcquisitionError reports lifecycle lock contention. Transient;
// callers may retry with backoff but must not spin given lock TTLs of
// tens of seconds.
type LockAcquisitionError struct {
	Key string
}

func (e *LockAcquisitionError) Error() string {
	return fmt.Sprintf("could not acquire lifecycle lock %q", e.Key)
}

// ClaimError aggregates every violated claim precondition so the
// caller sees the complete picture instead of the first failure.
type ClaimError struct {
	RewardID   string
	Violations []string
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("cannot claim reward %s: %s", e.RewardID, strings.Join(e.Violations, "; "))
}
