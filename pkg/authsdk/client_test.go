package authsdk_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memberhub/memberhub/pkg/authsdk"
)

func stubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_credentials","message":"invalid username or password"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "memberhub_session", Value: "token", Path: "/"})
		_ = json.NewEncoder(w).Encode(authsdk.Identity{ID: "u1", Email: "ada@example.org", Roles: []string{"president"}})
	})
	mux.HandleFunc("GET /v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("memberhub_session"); err != nil || c.Value != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"session_missing","message":"not logged in"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(authsdk.Identity{ID: "u1"})
	})
	mux.HandleFunc("POST /v1/auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"message":"sent"}`))
	})
	mux.HandleFunc("POST /v1/auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.ResetPasswordRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Code != "123456" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_otp","message":"invalid code"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /v1/chapters/{id}/roster-access", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "a b" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>upstream down</html>`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginKeepsSessionCookie(t *testing.T) {
	srv := stubServer(t)
	client, err := authsdk.NewSDKClient(srv.URL + "/")
	require.NoError(t, err)

	_, err = client.Me(t.Context())
	require.True(t, authsdk.IsCode(err, authsdk.CodeSessionMissing))

	id, err := client.Login(t.Context(), "ada", "secret")
	require.NoError(t, err)
	require.Equal(t, []string{"president"}, id.Roles)

	id, err = client.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, "u1", id.ID)
}

func TestAPIErrorCarriesBody(t *testing.T) {
	srv := stubServer(t)
	client, err := authsdk.NewSDKClient(srv.URL)
	require.NoError(t, err)

	_, err = client.Login(t.Context(), "ada", "wrong")
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, authsdk.CodeInvalidCredentials, apiErr.Code)
	require.Equal(t, "invalid username or password", apiErr.Message)
}

func TestPasswordResetCalls(t *testing.T) {
	srv := stubServer(t)
	client, err := authsdk.NewSDKClient(srv.URL)
	require.NoError(t, err)

	msg, err := client.ForgotPassword(t.Context(), "ada@example.org")
	require.NoError(t, err)
	require.Equal(t, "sent", msg.Message)

	require.NoError(t, client.ResetPassword(t.Context(), "ada@example.org", "123456", "new password"))
	err = client.ResetPassword(t.Context(), "ada@example.org", "000000", "new password")
	require.True(t, authsdk.IsCode(err, authsdk.CodeInvalidOtp))
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := stubServer(t)
	client, err := authsdk.NewSDKClient(srv.URL)
	require.NoError(t, err)

	err = client.RosterAccess(t.Context(), "a b")
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, authsdk.CodeInternal, apiErr.Code)
}

func TestRequestValidation(t *testing.T) {
	require.Error(t, authsdk.LoginRequest{Identifier: "ada"}.Validate())
	require.NoError(t, authsdk.LoginRequest{Identifier: "ada", Password: "x"}.Validate())
	require.Error(t, authsdk.ForgotPasswordRequest{Email: "not-an-email"}.Validate())
	require.NoError(t, authsdk.ForgotPasswordRequest{Email: "ada@example.org"}.Validate())
	require.Error(t, authsdk.ResetPasswordRequest{Code: "123456"}.Validate())
}
