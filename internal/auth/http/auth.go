package http

import (
	"errors"
	"net/http"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/internal/auth/service"
	"github.com/memberhub/memberhub/pkg/authsdk"
	"github.com/memberhub/memberhub/pkg/httpx"
	"github.com/memberhub/memberhub/pkg/slogx"
)

// forgotPasswordAck is returned whenever a reset code was sent.
const forgotPasswordAck = "if the address is registered, a reset code is on its way"

type AuthHandler struct {
	Credentials    *service.CredentialService
	Sessions       *service.SessionService
	PasswordResets *service.PasswordResetService
	Cookie         CookieConfig
	Events         *AuthEvents
}

// HandleLogin authenticates a username or email and password.
//
//	@Summary		Log in
//	@Description	Verifies the credentials and sets the session cookie. Every failure, including an unknown identifier, returns the same 401.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.Identity		"The authenticated identity"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid username or password"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limited"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	id, err := h.Credentials.LoginWithUsernameAndPassword(r.Context(), req.Identifier, req.Password)
	h.Events.record("login", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.issueSession(w, r, id)
}

// HandleLogout clears the session cookie.
//
//	@Summary		Log out
//	@Tags			Auth
//	@Success		204	"Session cookie cleared"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Cookie.clear(w)
	h.Events.record("logout", nil)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh reloads roles and profiles and renews the session.
//
//	@Summary		Refresh session
//	@Description	Re-reads the account's active roles and profiles and issues a new session cookie.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.Identity		"The refreshed identity"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Not logged in or session expired"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	current := IdentityFromContext(r.Context())
	if current == nil {
		writeServiceError(w, r, service.ErrSessionMissing)
		return
	}

	id, err := h.Sessions.Refresh(r.Context(), *current)
	h.Events.record("refresh", err)
	if err != nil {
		if errors.Is(err, service.ErrSessionMissing) {
			h.Cookie.clear(w)
		}
		writeServiceError(w, r, err)
		return
	}

	h.issueSession(w, r, id)
}

// HandleMe returns the identity in the session.
//
//	@Summary		Current identity
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.Identity		"The session identity"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Not logged in or session expired"
//	@Router			/v1/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		writeServiceError(w, r, service.ErrSessionMissing)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, id)
}

// HandleForgotPassword mails a one-time reset code.
//
//	@Summary		Request a password reset code
//	@Description	Replaces any outstanding code for the address and mails a new six digit code.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.ForgotPasswordRequest	true	"Account email"
//	@Success		202		{object}	authsdk.MessageResponse			"Code sent"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Malformed request"
//	@Failure		404		{object}	authsdk.ErrorResponse			"No account with that email"
//	@Failure		429		{object}	authsdk.ErrorResponse			"Rate limited"
//	@Router			/v1/auth/forgot-password [post].
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	_, err := h.PasswordResets.ForgotPassword(r.Context(), req.Email)
	h.Events.record("forgot_password", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, authsdk.MessageResponse{Message: forgotPasswordAck})
}

// HandleResetPassword redeems a reset code.
//
//	@Summary		Reset password
//	@Description	Consumes the code and replaces the account password. A code can be redeemed once.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body	authsdk.ResetPasswordRequest	true	"Email, code and new password"
//	@Success		204		"Password updated"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid or used code, or weak password"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limited"
//	@Router			/v1/auth/reset-password [post].
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	err := h.PasswordResets.ResetPassword(r.Context(), req.Email, req.Code, req.Password)
	h.Events.record("reset_password", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) issueSession(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	token, err := h.Sessions.Issue(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.Cookie.set(w, token)
	httpx.WriteJSON(w, http.StatusOK, id)
}

type validatable interface{ Validate() error }

// decodeRequest decodes and validates a JSON body, writing a 400 on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, v validatable) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		slogx.FromContext(r.Context()).Debug("malformed request body", "err", err)
		writeServiceError(w, r, service.ErrValidation)
		return false
	}
	if err := v.Validate(); err != nil {
		writeServiceError(w, r, service.ValidationError(err))
		return false
	}
	return true
}
