package app

import (
	"fmt"
	"log/slog"

	"github.com/memberhub/memberhub/pkg/cryptox"
	"github.com/memberhub/memberhub/pkg/jwtx"
)

const (
	tokenSecretSize = 48
	pepperSize      = cryptox.TokenSize256
)

// loadTokenSecret prefers the inline secret and otherwise reads, or creates,
// the secret file. Rotating the secret logs everyone out.
func loadTokenSecret(cfg Config, logger *slog.Logger) ([]byte, error) {
	if cfg.TokenSecret != "" {
		return []byte(cfg.TokenSecret), nil
	}

	secret, err := cryptox.LoadOrCreateSecret(cfg.TokenSecretFile, tokenSecretSize)
	if err != nil {
		return nil, fmt.Errorf("load token secret: %w", err)
	}
	if len(secret) < jwtx.MinSecretLength {
		return nil, fmt.Errorf("token secret in %s is shorter than %d bytes", cfg.TokenSecretFile, jwtx.MinSecretLength)
	}
	logger.Info("token secret loaded", "path", cfg.TokenSecretFile)
	return []byte(secret), nil
}

// LoadPepper reads, or creates, the password pepper. Losing it invalidates
// every stored password hash.
func LoadPepper(cfg Config) (string, error) {
	pepper, err := cryptox.LoadOrCreateSecret(cfg.PepperFile, pepperSize)
	if err != nil {
		return "", fmt.Errorf("load pepper: %w", err)
	}
	return pepper, nil
}
