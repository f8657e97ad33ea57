package user

import "time"

// User is an account known to the engagement system. Points are
// mutated only through atomic increments inside engagement
// transactions or contest-reset operations.
type User struct {
	ID             string
	Wallet         string
	Username       string
	Points         int
	LifetimePoints int
	LastActive     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
