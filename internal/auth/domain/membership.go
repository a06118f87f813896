package domain

import "time"

const (
	ProfileMember    = "MEMBER"
	ProfileVolunteer = "VOLUNTEER"
	ProfileAdmin     = "ADMIN"
)

// Membership grants a profile for a time window, optionally within a chapter.
type Membership struct {
	Profile   string
	ChapterID string
	StartedAt time.Time
	EndedAt   *time.Time
}

func (m Membership) IsActive(now time.Time) bool {
	return activeAt(m.StartedAt, m.EndedAt, now)
}
