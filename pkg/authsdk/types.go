package authsdk

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the machine readable code, e.g. "invalid_credentials".
	Error string `json:"error"`

	// Message is safe to show to the user.
	Message string `json:"message"`
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	// Identifier is a username or an email address. Matching is exact.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.Length(1, 254)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 1024)),
	)
}

// ForgotPasswordRequest is the body of POST /v1/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), validation.Match(emailPattern)),
	)
}

// ResetPasswordRequest is the body of POST /v1/auth/reset-password. Code and
// Password are checked by the service so that a bad code and a weak password
// are reported the same way regardless of transport.
type ResetPasswordRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254)),
	)
}

// Identity is the authenticated principal as returned by login, refresh and me.
type Identity struct {
	ID            string `json:"id"`
	ConstituentID string `json:"constituentId"`
	Email         string `json:"email"`
	FullName      string `json:"fullName"`

	// Roles are encoded grants: "president", "MEMBER.lead.<chapter>" or
	// "MEMBER.chair.<committee>".
	Roles []string `json:"roles"`

	// Profiles are the active membership profiles, e.g. "MEMBER".
	Profiles []string `json:"profiles"`
}

// MessageResponse carries a human readable acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	// Status is "ok" or "degraded".
	Status string `json:"status"`

	// Uptime is the process uptime, e.g. "1h23m45s".
	Uptime string `json:"uptime,omitempty"`

	Version string `json:"version,omitempty"`

	// Checks is only present on /readyz.
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency checked by /readyz.
type HealthChecks struct {
	Database string `json:"database"`
}
