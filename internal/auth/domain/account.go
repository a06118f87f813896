package domain

import "time"

// Account is a login-capable user joined with its constituent record.
type Account struct {
	ID            string
	ConstituentID string
	Username      string
	Email         string
	FullName      string
	PasswordHash  *string // nil for social-login-only accounts
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// activeAt reports whether [start, end] contains now. A nil end is open.
func activeAt(start time.Time, end *time.Time, now time.Time) bool {
	if start.After(now) {
		return false
	}
	return end == nil || !end.Before(now)
}
