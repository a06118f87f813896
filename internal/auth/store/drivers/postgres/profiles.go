package postgres

import (
	"context"
	"time"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/pkg/idx"
)

type profilesRepo struct {
	db dbtx
}

func (r *profilesRepo) ListActiveProfiles(ctx context.Context, accountID string, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT profile FROM memberships
		 WHERE account_id = $1 AND started_at <= $2 AND (ended_at IS NULL OR ended_at >= $2)
		 ORDER BY profile`,
		accountID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *profilesRepo) AddMembership(ctx context.Context, accountID string, m domain.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (id, account_id, profile, chapter_id, started_at, ended_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		idx.New().String(), accountID, m.Profile, m.ChapterID, m.StartedAt, nullTime(m.EndedAt))
	return err
}

func (r *profilesRepo) IsChapterMember(ctx context.Context, accountID, chapterID string, now time.Time) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM memberships
		   WHERE account_id = $1 AND chapter_id = $2
		     AND started_at <= $3 AND (ended_at IS NULL OR ended_at >= $3)
		 )`,
		accountID, chapterID, now).Scan(&found)
	return found, err
}
