package domain

import "time"

// OneTimeCode authorizes a single password reset for Email.
type OneTimeCode struct {
	ID        string
	Email     string
	Code      string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (c OneTimeCode) Used() bool { return c.UsedAt != nil }

func (c OneTimeCode) Expired(now time.Time) bool { return now.After(c.ExpiresAt) }
