package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Login authenticates with a username or email and stores the session cookie.
func (c *SDKClient) Login(ctx context.Context, identifier, password string) (*Identity, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/login", LoginRequest{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return nil, err
	}

	var id Identity
	if err := decodeJSON(resp, &id, http.StatusOK); err != nil {
		return nil, err
	}
	return &id, nil
}

// Logout clears the session cookie.
func (c *SDKClient) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/logout", nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// Me returns the identity carried by the current session.
func (c *SDKClient) Me(ctx context.Context) (*Identity, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var id Identity
	if err := decodeJSON(resp, &id, http.StatusOK); err != nil {
		return nil, err
	}
	return &id, nil
}

// Refresh re-reads roles and profiles and renews the session cookie.
func (c *SDKClient) Refresh(ctx context.Context) (*Identity, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/refresh", nil)
	if err != nil {
		return nil, err
	}

	var id Identity
	if err := decodeJSON(resp, &id, http.StatusOK); err != nil {
		return nil, err
	}
	return &id, nil
}

// ForgotPassword asks the service to mail a reset code to email.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/forgot-password", ForgotPasswordRequest{Email: email})
	if err != nil {
		return nil, err
	}

	var msg MessageResponse
	if err := decodeJSON(resp, &msg, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ResetPassword redeems a reset code and sets a new password.
func (c *SDKClient) ResetPassword(ctx context.Context, email, code, password string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/reset-password", ResetPasswordRequest{
		Email:    email,
		Code:     code,
		Password: password,
	})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// RosterAccess reports whether the session may view the roster of chapterID.
// A denial is an *APIError with CodeUnauthorized.
func (c *SDKClient) RosterAccess(ctx context.Context, chapterID string) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/chapters/"+url.PathEscape(chapterID)+"/roster-access", nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}
