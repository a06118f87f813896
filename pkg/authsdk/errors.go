package authsdk

import (
	"errors"
	"fmt"
)

// Error codes returned by the service.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeSessionMissing     = "session_missing"
	CodeSessionExpired     = "session_expired"
	CodeUnauthorized       = "unauthorized"
	CodeUserNotFound       = "user_not_found"
	CodeInvalidOtp         = "invalid_otp"
	CodeOtpAlreadyUsed     = "otp_already_used"
	CodeValidation         = "validation_failed"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal_error"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
