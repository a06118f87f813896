package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	httpapi "github.com/memberhub/memberhub/internal/auth/http"
	"github.com/memberhub/memberhub/internal/auth/mail"
	"github.com/memberhub/memberhub/internal/auth/service"
	"github.com/memberhub/memberhub/pkg/httpx"
	"github.com/memberhub/memberhub/pkg/jwtx"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is read once at start and passed by value; nothing below app reads
// the environment.
type Config struct {
	Issuer          string        // Issuer claim on session tokens (default: memberhub)
	AccessTTL       time.Duration // Session token lifetime (default: 1h)
	TokenSecret     string        // Optional: HS256 secret, overrides TokenSecretFile
	TokenSecretFile string        // Path to the HS256 secret, generated if absent (default: ./token-secret)
	PepperFile      string        // Path to the password pepper, generated if absent (default: ./pepper)
	OTPTTL          time.Duration // Reset code lifetime (default: 6m)

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseFile   string // SQLite database path (default: ./memberhub.db)
	DatabaseURL    string // PostgreSQL DSN, required for the postgres driver

	Cookie httpapi.CookieConfig
	SMTP   mail.SMTPConfig // Host empty means reset codes are logged as dropped
	Limits httpapi.Limits

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired code cleanup interval (default: 1h)
}

func LoadConfig() Config {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) Config {
	return Config{
		Issuer:          getEnvOrDefault(getenv, "AUTH_ISSUER", "memberhub"),
		AccessTTL:       getEnvDurationOrDefault(getenv, "AUTH_ACCESS_TTL", jwtx.DefaultTTL),
		TokenSecret:     getenv("AUTH_TOKEN_SECRET"),
		TokenSecretFile: getEnvOrDefault(getenv, "AUTH_TOKEN_SECRET_FILE", "token-secret"),
		PepperFile:      getEnvOrDefault(getenv, "AUTH_PEPPER_FILE", "pepper"),
		OTPTTL:          getEnvDurationOrDefault(getenv, "AUTH_OTP_TTL", service.DefaultCodeTTL),

		DatabaseDriver: strings.ToLower(getEnvOrDefault(getenv, "AUTH_DATABASE_DRIVER", DriverSQLite)),
		DatabaseFile:   getEnvOrDefault(getenv, "AUTH_DATABASE_FILE", "memberhub.db"),
		DatabaseURL:    getenv("AUTH_DATABASE_URL"),

		Cookie: httpapi.CookieConfig{
			Name:   getEnvOrDefault(getenv, "AUTH_COOKIE_NAME", httpapi.DefaultCookieName),
			MaxAge: getEnvDurationOrDefault(getenv, "AUTH_COOKIE_MAX_AGE", httpapi.DefaultCookieMaxAge),
			Secure: getEnvBoolOrDefault(getenv, "AUTH_COOKIE_SECURE", true),
		},
		SMTP: mail.SMTPConfig{
			Host:     getenv("SMTP_HOST"),
			Port:     getEnvIntOrDefault(getenv, "SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME"),
			Password: getenv("SMTP_PASSWORD"),
			From:     getEnvOrDefault(getenv, "SMTP_FROM", "no-reply@memberhub.local"),
		},
		Limits: httpapi.Limits{
			Strict:   httpx.LimitFromEnv(getenv, "STRICT", httpx.StrictLimit),
			Standard: httpx.LimitFromEnv(getenv, "STANDARD", httpx.StandardLimit),
		},

		Env:                  getEnvOrDefault(getenv, "ENV", "dev"),
		LogLevel:             getEnvOrDefault(getenv, "LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault(getenv, "LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault(getenv, "PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault(getenv, "SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault(getenv, "HOUSEKEEPING_INTERVAL", time.Hour),
	}
}

func (c Config) Validate() error {
	var fileRules, urlRules, secretRules []validation.Rule
	switch c.DatabaseDriver {
	case DriverSQLite:
		fileRules = append(fileRules, validation.Required)
	case DriverPostgres:
		urlRules = append(urlRules, validation.Required)
	}
	if c.TokenSecret != "" {
		secretRules = append(secretRules, validation.Length(jwtx.MinSecretLength, 0))
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.Issuer, validation.Required),
		validation.Field(&c.AccessTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.OTPTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.DatabaseDriver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DatabaseFile, fileRules...),
		validation.Field(&c.DatabaseURL, urlRules...),
		validation.Field(&c.TokenSecret, secretRules...),
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	)
}

func getEnvOrDefault(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(getenv func(string) string, key string, defaultValue int) int {
	value := getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(getenv func(string) string, key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	value := getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
