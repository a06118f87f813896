package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/memberhub/memberhub/internal/auth/domain"
)

type codesRepo struct {
	db dbtx
}

const codeColumns = `id, email, code, expires_at, used_at, created_at`

func scanCode(row interface{ Scan(...any) error }) (domain.OneTimeCode, error) {
	var (
		c    domain.OneTimeCode
		used sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Email, &c.Code, &c.ExpiresAt, &used, &c.CreatedAt); err != nil {
		return domain.OneTimeCode{}, mapNotFound(err)
	}
	if used.Valid {
		c.UsedAt = &used.Time
	}
	return c, nil
}

func (r *codesRepo) CreateOneTimeCode(ctx context.Context, c domain.OneTimeCode) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO one_time_codes (`+codeColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Email, c.Code, c.ExpiresAt, nullTime(c.UsedAt), c.CreatedAt)
	return mapConflict(err)
}

// DeleteOneTimeCodesByEmail first takes a transaction-scoped advisory lock
// on email. Concurrent replacements for the same email queue behind it, so
// each DELETE sees the previous commit's row and only the last insert
// survives.
func (r *codesRepo) DeleteOneTimeCodesByEmail(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, email); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE email = $1`, email)
	return err
}

func (r *codesRepo) GetOneTimeCodeByEmail(ctx context.Context, email string) (domain.OneTimeCode, error) {
	return scanCode(r.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes
		 WHERE email = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, email))
}

func (r *codesRepo) ListOneTimeCodesByEmail(ctx context.Context, email string) ([]domain.OneTimeCode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes WHERE email = $1 ORDER BY created_at, id`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OneTimeCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *codesRepo) LockOneTimeCode(ctx context.Context, id string) (domain.OneTimeCode, error) {
	return scanCode(r.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes WHERE id = $1 FOR UPDATE`, id))
}

func (r *codesRepo) MarkOneTimeCodeUsed(ctx context.Context, id string, usedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE one_time_codes SET used_at = $1 WHERE id = $2 AND used_at IS NULL`, usedAt, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *codesRepo) DeleteExpiredOneTimeCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE expires_at < $1 AND used_at IS NULL`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
