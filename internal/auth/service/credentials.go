package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/internal/auth/store"
	"github.com/memberhub/memberhub/pkg/cryptox"
	"github.com/memberhub/memberhub/pkg/slogx"
)

// CredentialService verifies identifier + password logins.
type CredentialService struct {
	Store  store.Store
	Hasher cryptox.Hasher
	Now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// LoginWithUsernameAndPassword matches identifier against username or email
// and returns the identity with its currently active roles and profiles.
// Every failure, including an unknown identifier, is ErrInvalidCredentials.
func (s *CredentialService) LoginWithUsernameAndPassword(ctx context.Context, identifier, password string) (domain.Identity, error) {
	log := slogx.FromContext(ctx)

	acct, err := s.Store.Accounts().GetAccountByIdentifier(ctx, identifier)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.burnHash(password)
		log.Info("login rejected", "reason", "unknown_identifier")
		return domain.Identity{}, ErrInvalidCredentials
	case err != nil:
		return domain.Identity{}, fmt.Errorf("lookup account: %w", err)
	}

	if !acct.HasPassword() {
		s.burnHash(password)
		log.Info("login rejected", "reason", "no_password", "account_id", acct.ID)
		return domain.Identity{}, ErrInvalidCredentials
	}

	if err := s.Hasher.VerifyPassword(password, *acct.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrMismatch) {
			log.Error("stored password hash unreadable", "account_id", acct.ID, "err", err)
		} else {
			log.Info("login rejected", "reason", "password_mismatch", "account_id", acct.ID)
		}
		return domain.Identity{}, ErrInvalidCredentials
	}

	id, err := loadIdentity(ctx, s.Store, acct, nowFunc(s.Now))
	if err != nil {
		return domain.Identity{}, err
	}
	log.Info("login succeeded", "account_id", acct.ID)
	return id, nil
}

// burnHash spends the same work as a real verification so that failures
// for unknown accounts take as long as wrong passwords.
func (s *CredentialService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.HashPassword("memberhub-timing-equaliser")
	})
	if s.dummyHash != "" {
		_ = s.Hasher.VerifyPassword(password, s.dummyHash)
	}
}
