package guard

import "github.com/memberhub/memberhub/internal/auth/domain"

type matcherKind int

const (
	matchExact matcherKind = iota
	matchChapter
	matchCommittee
)

// RoleMatcher is a predicate over structured role grants. Build one with
// Exact, ScopedChapter or ScopedCommittee.
type RoleMatcher struct {
	kind  matcherKind
	name  string
	scope string
}

// Exact matches an unscoped role by name.
func Exact(name string) RoleMatcher {
	return RoleMatcher{kind: matchExact, name: name}
}

// ScopedChapter matches the lead role of one chapter.
func ScopedChapter(chapterID string) RoleMatcher {
	return RoleMatcher{kind: matchChapter, name: domain.RoleLead, scope: chapterID}
}

// ScopedCommittee matches the chair role of one committee.
func ScopedCommittee(committeeID string) RoleMatcher {
	return RoleMatcher{kind: matchCommittee, name: domain.RoleChair, scope: committeeID}
}

func (m RoleMatcher) Match(g domain.RoleGrant) bool {
	if g.Name != m.name {
		return false
	}
	switch m.kind {
	case matchChapter:
		return m.scope != "" && g.ChapterID == m.scope && g.CommitteeID == ""
	case matchCommittee:
		return m.scope != "" && g.CommitteeID == m.scope && g.ChapterID == ""
	default:
		return g.ChapterID == "" && g.CommitteeID == ""
	}
}

func (m RoleMatcher) String() string {
	switch m.kind {
	case matchChapter:
		return domain.ChapterLeadRole(m.scope).String()
	case matchCommittee:
		return domain.CommitteeChairRole(m.scope).String()
	default:
		return m.name
	}
}

// ChapterLead admits the lead of chapterID.
func ChapterLead(chapterID string) Guard { return HasRole(ScopedChapter(chapterID)) }

// CommitteeChair admits the chair of committeeID.
func CommitteeChair(committeeID string) Guard { return HasRole(ScopedCommittee(committeeID)) }

// President admits holders of the global president role.
var President = HasRole(Exact(domain.RolePresident))
