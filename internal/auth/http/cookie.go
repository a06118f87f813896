package http

import (
	"net/http"
	"time"
)

const (
	DefaultCookieName   = "memberhub_session"
	DefaultCookieMaxAge = 7 * 24 * time.Hour
)

// CookieConfig controls the session cookie. Secure is only turned off for
// local development over plain HTTP.
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return DefaultCookieName
	}
	return c.Name
}

func (c CookieConfig) maxAge() time.Duration {
	if c.MaxAge <= 0 {
		return DefaultCookieMaxAge
	}
	return c.MaxAge
}

func (c CookieConfig) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.maxAge().Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) token(r *http.Request) string {
	ck, err := r.Cookie(c.name())
	if err != nil {
		return ""
	}
	return ck.Value
}
