package domain

import (
	"slices"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Identity is the authenticated principal of a request. It is rebuilt at
// login and refresh and otherwise travels inside the session token, so Roles
// and Profiles only ever hold grants that were active when it was built.
type Identity struct {
	ID            string      `json:"id"`
	ConstituentID string      `json:"constituentId"`
	Email         string      `json:"email"`
	FullName      string      `json:"fullName"`
	Roles         []RoleGrant `json:"roles"`
	Profiles      []string    `json:"profiles"`
}

// Validate is the schema a session token payload must satisfy.
func (i *Identity) Validate() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.ID, validation.Required),
		validation.Field(&i.ConstituentID, validation.Required),
		validation.Field(&i.Email, validation.Required),
	)
}

func (i *Identity) HasProfile(names ...string) bool {
	if i == nil {
		return false
	}
	for _, p := range i.Profiles {
		if slices.Contains(names, p) {
			return true
		}
	}
	return false
}

// RoleStrings returns the canonical string form of every role.
func (i *Identity) RoleStrings() []string {
	if i == nil {
		return nil
	}
	out := make([]string, len(i.Roles))
	for n, r := range i.Roles {
		out[n] = r.String()
	}
	return out
}
