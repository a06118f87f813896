package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/internal/auth/store"
	"github.com/memberhub/memberhub/pkg/jwtx"
)

// SessionService turns identities into session tokens and back.
type SessionService struct {
	Store store.Store
	Codec *jwtx.Codec
	TTL   time.Duration
	Now   func() time.Time
}

// Issue signs identity into a session token.
func (s *SessionService) Issue(identity domain.Identity) (string, error) {
	token, err := s.Codec.Encode(identity, s.TTL)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// Decode verifies a session token against the identity schema.
func (s *SessionService) Decode(token string) jwtx.Result[domain.Identity] {
	return jwtx.Decode[domain.Identity](s.Codec, token)
}

// Refresh rebuilds identity from storage so role and profile changes since
// login take effect. A deleted account ends the session.
func (s *SessionService) Refresh(ctx context.Context, identity domain.Identity) (domain.Identity, error) {
	acct, err := s.Store.Accounts().GetAccountByID(ctx, identity.ID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Identity{}, ErrSessionMissing
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("lookup account: %w", err)
	}
	return loadIdentity(ctx, s.Store, acct, nowFunc(s.Now))
}

// IsChapterMember backs the storage-aware chapter guard.
func (s *SessionService) IsChapterMember(ctx context.Context, identity *domain.Identity, chapterID string) (bool, error) {
	if identity == nil {
		return false, nil
	}
	return s.Store.Profiles().IsChapterMember(ctx, identity.ID, chapterID, nowFunc(s.Now))
}
