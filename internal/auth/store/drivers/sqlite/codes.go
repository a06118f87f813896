package sqlite

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
		c                domain.OneTimeCode
		expires, created int64
		used             sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.Email, &c.Code, &expires, &used, &created); err != nil {
		return domain.OneTimeCode{}, mapNotFound(err)
	}
	c.ExpiresAt = fromUnix(expires)
	c.UsedAt = mapNullUnix(used)
	c.CreatedAt = fromUnix(created)
	return c, nil
}

func (r *codesRepo) CreateOneTimeCode(ctx context.Context, c domain.OneTimeCode) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO one_time_codes (`+codeColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Email, c.Code, toUnix(c.ExpiresAt), mapOptionalUnix(c.UsedAt), toUnix(c.CreatedAt))
	return mapConflict(err)
}

func (r *codesRepo) DeleteOneTimeCodesByEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE email = ?`, email)
	return err
}

func (r *codesRepo) GetOneTimeCodeByEmail(ctx context.Context, email string) (domain.OneTimeCode, error) {
	return scanCode(r.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes
		 WHERE email = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, email))
}

func (r *codesRepo) ListOneTimeCodesByEmail(ctx context.Context, email string) ([]domain.OneTimeCode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes WHERE email = ? ORDER BY created_at, id`, email)
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

// LockOneTimeCode is a plain read: SQLite has no row locks, and the write
// lock taken by the surrounding transaction's first write serialises
// resets. MarkOneTimeCodeUsed's conditional update closes the remaining gap.
func (r *codesRepo) LockOneTimeCode(ctx context.Context, id string) (domain.OneTimeCode, error) {
	return scanCode(r.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes WHERE id = ?`, id))
}

func (r *codesRepo) MarkOneTimeCodeUsed(ctx context.Context, id string, usedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE one_time_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		toUnix(usedAt), id)
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE expires_at < ? AND used_at IS NULL`, toUnix(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
