package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/memberhub/memberhub/api/auth" // Swagger docs
	"github.com/memberhub/memberhub/internal/auth/guard"
	"github.com/memberhub/memberhub/internal/auth/service"
	"github.com/memberhub/memberhub/internal/auth/store"
	"github.com/memberhub/memberhub/pkg/httpx"
	"github.com/memberhub/memberhub/pkg/slogx"
)

const metricsNamespace = "memberhub"

// Limits are the two rate limit tiers. Credential and reset endpoints use
// Strict; everything else uses Standard.
type Limits struct {
	Strict   httpx.Limit
	Standard httpx.Limit
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	metrics      *httpx.Metrics
	events       *AuthEvents

	store                store.Store
	Cookie               CookieConfig
	Limits               Limits
	CredentialService    *service.CredentialService
	SessionService       *service.SessionService
	PasswordResetService *service.PasswordResetService
}

// NewRouter registers its collectors with reg; a nil reg uses a private one.
func NewRouter(buildVersion string, st store.Store, reg *prometheus.Registry, logger *slog.Logger) *Router {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		metrics:      httpx.NewMetrics(reg, metricsNamespace),
		events:       NewAuthEvents(reg, metricsNamespace),
		store:        st,
		Cookie:       CookieConfig{Secure: true},
		Limits:       Limits{Strict: httpx.StrictLimit, Standard: httpx.StandardLimit},
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerChapters()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	r.handler = httpx.Chain(r.metrics.Instrument(r.Mux), r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			memberhub Authentication API
//	@version		0.1.0
//	@description	Session authentication and role based authorization for the memberhub membership platform.
//	@description
//	@description	Sessions are HS256 signed tokens carried in the HttpOnly memberhub_session cookie.
//
//	@contact.name	memberhub maintainers
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) limit(name string, l httpx.Limit, key httpx.KeyFunc) httpx.Middleware {
	return httpx.NewRateLimiter(name, l, key, httpx.WithRateLimitMetrics(r.metrics)).Middleware
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Credentials:    r.CredentialService,
		Sessions:       r.SessionService,
		PasswordResets: r.PasswordResetService,
		Cookie:         r.Cookie,
		Events:         r.events,
	}
	authn := Authenticate(r.SessionService, r.Cookie)

	// Each address gets the standard budget across all identifiers, and the
	// strict budget per identifier within it.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			r.limit("login_ip", r.Limits.Standard, httpx.ClientIP),
			r.limit("login", r.Limits.Strict, httpx.Compose("|", httpx.ClientIP, httpx.JSONField("identifier"))),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout", http.HandlerFunc(h.HandleLogout))
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			authn,
			r.limit("refresh", r.Limits.Standard, httpx.ClientIP),
		),
	)
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			authn,
		),
	)
	r.Mux.Handle("POST /v1/auth/forgot-password",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			r.limit("forgot_password", r.Limits.Strict, httpx.ClientIP),
		),
	)
	r.Mux.Handle("POST /v1/auth/reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			r.limit("reset_password", r.Limits.Strict, httpx.ClientIP),
		),
	)
}

func (r *Router) registerChapters() {
	r.Mux.Handle("GET /v1/chapters/{id}/roster-access",
		httpx.Chain(http.HandlerFunc(HandleRosterAccess),
			r.limit("chapters", r.Limits.Standard, httpx.ClientIP),
			AuthenticateLax(r.SessionService, r.Cookie),
			AuthorizeFor(func(req *http.Request) guard.Guard {
				return RosterAccess(r.SessionService, req.PathValue("id"))
			}),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - monitoring systems may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			r.limit("livez", r.Limits.Standard, httpx.ClientIP),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			r.limit("readyz", r.Limits.Standard, httpx.ClientIP),
		),
	)
	r.Mux.Handle("GET /metrics", r.metrics.Handler())
}
