package sqlite

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
		a                domain.Account
		hash             sql.NullString
		created, updated int64
	)
	if err := row.Scan(&a.ID, &a.ConstituentID, &a.Username, &a.Email, &a.FullName, &hash, &created, &updated); err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	a.PasswordHash = mapNullStringPtr(hash)
	a.CreatedAt = fromUnix(created)
	a.UpdatedAt = fromUnix(updated)
	return a, nil
}

func (r *accountsRepo) GetAccountByIdentifier(ctx context.Context, identifier string) (domain.Account, error) {
	// Usernames win over emails if one account's username is another's email.
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE username = ? OR email = ?
		 ORDER BY CASE WHEN username = ? THEN 0 ELSE 1 END
		 LIMIT 1`,
		identifier, identifier, identifier))
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ConstituentID, a.Username, a.Email, a.FullName,
		mapOptionalString(a.PasswordHash), toUnix(a.CreatedAt), toUnix(now))
	return mapConflict(err)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, accountID string, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toUnix(time.Now()), accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
