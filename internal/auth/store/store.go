package store

import (
	"context"
	"errors"
	"time"

	"github.com/memberhub/memberhub/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories hang off it as methods so that code inside
// WithTx only ever sees the transaction-scoped repos.
type Store interface {
	Accounts() Accounts
	Roles() Roles
	Profiles() Profiles
	OneTimeCodes() OneTimeCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing if fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetAccountByIdentifier matches identifier against username or email,
	// exactly and case-sensitively.
	GetAccountByIdentifier(ctx context.Context, identifier string) (domain.Account, error)

	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// CreateAccount returns ErrAlreadyExists when the username or email is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	// UpdatePasswordHash sets password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, accountID string, hash string) error
}

type Roles interface {
	// ListActiveRoles returns the grants whose window contains now.
	ListActiveRoles(ctx context.Context, accountID string, now time.Time) ([]domain.RoleGrant, error)

	// GrantRole rejects grants whose name and scope disagree with
	// domain.ErrInvalidRole.
	GrantRole(ctx context.Context, accountID string, g domain.RoleGrant) error
}

type Profiles interface {
	// ListActiveProfiles returns the distinct profile names of memberships
	// whose window contains now, sorted.
	ListActiveProfiles(ctx context.Context, accountID string, now time.Time) ([]string, error)

	AddMembership(ctx context.Context, accountID string, m domain.Membership) error

	// IsChapterMember reports whether the account holds an active membership
	// in chapterID.
	IsChapterMember(ctx context.Context, accountID, chapterID string, now time.Time) (bool, error)
}

type OneTimeCodes interface {
	CreateOneTimeCode(ctx context.Context, c domain.OneTimeCode) error

	// DeleteOneTimeCodesByEmail removes every code for email. Inside a
	// transaction it also serialises other replacements for the same email
	// until commit.
	DeleteOneTimeCodesByEmail(ctx context.Context, email string) error

	// GetOneTimeCodeByEmail returns the newest code for email.
	GetOneTimeCodeByEmail(ctx context.Context, email string) (domain.OneTimeCode, error)

	ListOneTimeCodesByEmail(ctx context.Context, email string) ([]domain.OneTimeCode, error)

	// LockOneTimeCode re-reads a code and holds a row lock on it until the
	// transaction ends, where the driver supports row locks.
	LockOneTimeCode(ctx context.Context, id string) (domain.OneTimeCode, error)

	// MarkOneTimeCodeUsed sets used_at only if it is still null. It reports
	// false when another transaction got there first.
	MarkOneTimeCodeUsed(ctx context.Context, id string, usedAt time.Time) (bool, error)

	// DeleteExpiredOneTimeCodes is housekeeping. Used codes are kept so a
	// replay still reads as used until a new request supersedes them. It
	// returns the rows removed.
	DeleteExpiredOneTimeCodes(ctx context.Context, now time.Time) (int64, error)
}
