package service

import (
	"errors"
	"net/http"
)

// Error is the typed application error surfaced to clients. Two Errors match
// under errors.Is when their codes match, so a ValidationError still Is
// ErrValidation.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidCredentials = &Error{"invalid_credentials", "invalid username or password", http.StatusUnauthorized}
	ErrSessionMissing     = &Error{"session_missing", "not logged in", http.StatusUnauthorized}
	ErrSessionExpired     = &Error{"session_expired", "session expired, log in again", http.StatusUnauthorized}
	ErrUnauthorized       = &Error{"unauthorized", "not permitted", http.StatusForbidden}
	ErrUserNotFound       = &Error{"user_not_found", "no account is registered with that email", http.StatusNotFound}
	ErrInvalidOtp         = &Error{"invalid_otp", "invalid code", http.StatusBadRequest}
	ErrOtpAlreadyUsed     = &Error{"otp_already_used", "code has already been used", http.StatusBadRequest}
	ErrValidation         = &Error{"validation_failed", "request is invalid", http.StatusBadRequest}
	ErrInternal           = &Error{"internal_error", "something went wrong", http.StatusInternalServerError}
)

// ValidationError wraps a field validation failure for the client.
func ValidationError(err error) *Error {
	return &Error{Code: ErrValidation.Code, Message: err.Error(), Status: ErrValidation.Status}
}

// AsError returns the *Error in err's chain, or ErrInternal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
