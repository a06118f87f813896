package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/memberhub/memberhub/internal/auth/domain"
)

type accountsRepo struct {
	db dbtx
}

const accountColumns = `id, constituent_id, username, email, full_name, password_hash, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var (
		a    domain.Account
		hash sql.NullString
	)
	if err := row.Scan(&a.ID, &a.ConstituentID, &a.Username, &a.Email, &a.FullName, &hash, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	if hash.Valid {
		a.PasswordHash = &hash.String
	}
	return a, nil
}

func (r *accountsRepo) GetAccountByIdentifier(ctx context.Context, identifier string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE username = $1 OR email = $1
		 ORDER BY (username = $1) DESC
		 LIMIT 1`, identifier))
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	var hash sql.NullString
	if a.PasswordHash != nil {
		hash = sql.NullString{String: *a.PasswordHash, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ConstituentID, a.Username, a.Email, a.FullName, hash, a.CreatedAt, now)
	return mapConflict(err)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, accountID string, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = now() WHERE id = $2`,
		hash, accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}
