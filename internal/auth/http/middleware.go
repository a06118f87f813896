package http

import (
	"context"
	"net/http"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/internal/auth/guard"
	"github.com/memberhub/memberhub/internal/auth/service"
	"github.com/memberhub/memberhub/pkg/httpx"
	"github.com/memberhub/memberhub/pkg/jwtx"
	"github.com/memberhub/memberhub/pkg/slogx"
)

type ctxKeyIdentity struct{}

// WithIdentity stores the authenticated identity in ctx.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, id)
}

// IdentityFromContext returns the identity attached by Authenticate or
// AuthenticateLax, or nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(ctxKeyIdentity{}).(*domain.Identity)
	return id
}

// SessionDecoder is satisfied by *service.SessionService.
type SessionDecoder interface {
	Decode(token string) jwtx.Result[domain.Identity]
}

// Authenticate rejects requests without a valid session cookie. A missing or
// tampered cookie is "not logged in"; an expired one asks the user to log in
// again.
func Authenticate(sessions SessionDecoder, cookie CookieConfig) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookie.token(r)
			if token == "" {
				writeServiceError(w, r, service.ErrSessionMissing)
				return
			}

			res := sessions.Decode(token)
			switch res.Kind {
			case jwtx.Valid:
				next.ServeHTTP(w, withIdentity(r, &res.Payload))
			case jwtx.Expired:
				writeServiceError(w, r, service.ErrSessionExpired)
			default:
				writeServiceError(w, r, service.ErrSessionMissing)
			}
		})
	}
}

// AuthenticateLax attaches the identity when the cookie is valid and
// otherwise passes the request through anonymously.
func AuthenticateLax(sessions SessionDecoder, cookie CookieConfig) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := cookie.token(r); token != "" {
				if res := sessions.Decode(token); res.Kind == jwtx.Valid {
					r = withIdentity(r, &res.Payload)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withIdentity(r *http.Request, id *domain.Identity) *http.Request {
	ctx := WithIdentity(r.Context(), id)
	ctx = slogx.With(ctx, "account_id", id.ID)
	return r.WithContext(ctx)
}

// Authorize admits the request only when g evaluates true for the identity
// in context.
func Authorize(g guard.Guard) httpx.Middleware {
	return AuthorizeFor(func(*http.Request) guard.Guard { return g })
}

// AuthorizeFor builds the guard per request, typically from path values.
func AuthorizeFor(build func(*http.Request) guard.Guard) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := build(r).Evaluate(r.Context(), IdentityFromContext(r.Context()))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			if !ok {
				slogx.FromContext(r.Context()).Info("access denied", "path", r.URL.Path)
				writeServiceError(w, r, service.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
