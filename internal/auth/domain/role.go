package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MemberRolePrefix namespaces scoped roles held by members.
	MemberRolePrefix = "MEMBER"

	RoleLead      = "lead"
	RoleChair     = "chair"
	RolePresident = "president"
)

var ErrInvalidRole = errors.New("invalid role")

// RoleGrant is one role assignment. Scoped grants carry exactly one of
// ChapterID or CommitteeID; global grants carry neither.
type RoleGrant struct {
	Name        string
	ChapterID   string
	CommitteeID string
	StartedAt   time.Time
	EndedAt     *time.Time
}

func GlobalRole(name string) RoleGrant { return RoleGrant{Name: name} }

func ChapterLeadRole(chapterID string) RoleGrant {
	return RoleGrant{Name: RoleLead, ChapterID: chapterID}
}

func CommitteeChairRole(committeeID string) RoleGrant {
	return RoleGrant{Name: RoleChair, CommitteeID: committeeID}
}

// Validate checks that the grant survives a String/ParseRoleGrant round
// trip: lead grants name a chapter, chair grants a committee, and every
// other role is global.
func (g RoleGrant) Validate() error {
	if g.Name == "" || strings.Contains(g.Name, ".") {
		return fmt.Errorf("%w: name %q", ErrInvalidRole, g.Name)
	}
	if g.ChapterID != "" && g.CommitteeID != "" {
		return fmt.Errorf("%w: %s has both chapter and committee scope", ErrInvalidRole, g.Name)
	}
	switch g.Name {
	case RoleLead:
		if g.ChapterID == "" {
			return fmt.Errorf("%w: lead requires a chapter", ErrInvalidRole)
		}
	case RoleChair:
		if g.CommitteeID == "" {
			return fmt.Errorf("%w: chair requires a committee", ErrInvalidRole)
		}
	default:
		if g.ChapterID != "" || g.CommitteeID != "" {
			return fmt.Errorf("%w: %s is a global role", ErrInvalidRole, g.Name)
		}
	}
	return nil
}

func (g RoleGrant) IsActive(now time.Time) bool {
	return activeAt(g.StartedAt, g.EndedAt, now)
}

// String renders the canonical form: "president", "MEMBER.lead.<chapter>",
// "MEMBER.chair.<committee>".
func (g RoleGrant) String() string {
	switch {
	case g.ChapterID != "":
		return MemberRolePrefix + "." + g.Name + "." + g.ChapterID
	case g.CommitteeID != "":
		return MemberRolePrefix + "." + g.Name + "." + g.CommitteeID
	default:
		return g.Name
	}
}

// ParseRoleGrant is the inverse of String. The scope of a MEMBER role is
// decided by its name: lead roles are chapter scoped, chair roles committee
// scoped.
func ParseRoleGrant(s string) (RoleGrant, error) {
	if s == "" {
		return RoleGrant{}, fmt.Errorf("%w: empty", ErrInvalidRole)
	}
	if !strings.HasPrefix(s, MemberRolePrefix+".") {
		if strings.Contains(s, ".") {
			return RoleGrant{}, fmt.Errorf("%w: %q", ErrInvalidRole, s)
		}
		return GlobalRole(s), nil
	}

	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return RoleGrant{}, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	switch parts[1] {
	case RoleLead:
		return ChapterLeadRole(parts[2]), nil
	case RoleChair:
		return CommitteeChairRole(parts[2]), nil
	default:
		return RoleGrant{}, fmt.Errorf("%w: unknown scoped role %q", ErrInvalidRole, parts[1])
	}
}

// MarshalText lets identities carry roles in their string form.
func (g RoleGrant) MarshalText() ([]byte, error) {
	if g.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidRole)
	}
	return []byte(g.String()), nil
}

func (g *RoleGrant) UnmarshalText(b []byte) error {
	parsed, err := ParseRoleGrant(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
