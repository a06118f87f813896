package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/memberhub/memberhub/internal/auth/http"
	"github.com/memberhub/memberhub/internal/auth/mail"
	"github.com/memberhub/memberhub/internal/auth/service"
	"github.com/memberhub/memberhub/internal/auth/store"
	"github.com/memberhub/memberhub/pkg/cryptox"
	"github.com/memberhub/memberhub/pkg/jwtx"
	"github.com/memberhub/memberhub/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	codec    *jwtx.Codec
	hasher   cryptox.Hasher
	mailer   mail.Mailer
	registry *prometheus.Registry

	credentialService    *service.CredentialService
	sessionService       *service.SessionService
	passwordResetService *service.PasswordResetService
	housekeepingService  *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	logger := slogx.New(slogx.Config{
		Service: "memberhub-auth",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	return newApplication(cfg, logger)
}

func newApplication(cfg Config, logger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{cfg: cfg, logger: logger}

	if err := app.initSecrets(); err != nil {
		return nil, err
	}

	db, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.logger.Info("database ready", "driver", cfg.DatabaseDriver)

	app.initMailer()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler exposes the routed handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run serves until ctx is cancelled or the server fails, then shuts down.
func (app *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.server.Addr)
	if err != nil {
		_ = app.db.Close()
		return fmt.Errorf("listen: %w", err)
	}
	return app.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "addr", ln.Addr().String(), "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.db.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		app.logger.Info("shutdown requested", "cause", context.Cause(ctx))
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initSecrets() error {
	secret, err := loadTokenSecret(app.cfg, app.logger)
	if err != nil {
		return err
	}
	app.codec, err = jwtx.NewCodec(secret,
		jwtx.WithIssuer(app.cfg.Issuer),
		jwtx.WithDefaultTTL(app.cfg.AccessTTL),
		jwtx.WithLogger(app.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}

	pepper, err := LoadPepper(app.cfg)
	if err != nil {
		return err
	}
	app.hasher = cryptox.Hasher{Pepper: pepper}
	return nil
}

func (app *Application) initMailer() {
	if app.cfg.SMTP.Host == "" {
		app.logger.Warn("SMTP_HOST not set, reset codes will not be delivered")
		app.mailer = mail.LogMailer{Logger: app.logger}
		return
	}
	app.mailer = mail.NewSMTPMailer(app.cfg.SMTP)
	app.logger.Info("smtp mailer configured", "host", app.cfg.SMTP.Host, "port", app.cfg.SMTP.Port)
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.credentialService = &service.CredentialService{Store: app.db, Hasher: app.hasher}
	app.sessionService = &service.SessionService{Store: app.db, Codec: app.codec, TTL: app.cfg.AccessTTL}
	app.passwordResetService = &service.PasswordResetService{
		Store:   app.db,
		Hasher:  app.hasher,
		Mailer:  app.mailer,
		CodeTTL: app.cfg.OTPTTL,
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := httpapi.NewRouter(BuildVersion, app.db, app.registry, app.logger)
	router.Cookie = app.cfg.Cookie
	router.Limits = app.cfg.Limits
	router.CredentialService = app.credentialService
	router.SessionService = app.sessionService
	router.PasswordResetService = app.passwordResetService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
