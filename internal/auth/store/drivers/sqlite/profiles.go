package sqlite

import (
	"context"
	"time"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/pkg/idx"
)

type profilesRepo struct {
	db dbtx
}

const activeMembership = `started_at <= ? AND (ended_at IS NULL OR ended_at >= ?)`

func (r *profilesRepo) ListActiveProfiles(ctx context.Context, accountID string, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT profile FROM memberships
		 WHERE account_id = ? AND `+activeMembership+`
		 ORDER BY profile`,
		accountID, toUnix(now), toUnix(now))
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
		 VALUES (?, ?, ?, ?, ?, ?)`,
		idx.New().String(), accountID, m.Profile, mapStringNull(m.ChapterID),
		toUnix(m.StartedAt), mapOptionalUnix(m.EndedAt))
	return err
}

func (r *profilesRepo) IsChapterMember(ctx context.Context, accountID, chapterID string, now time.Time) (bool, error) {
	var found int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM memberships
		   WHERE account_id = ? AND chapter_id = ? AND `+activeMembership+`
		 )`,
		accountID, chapterID, toUnix(now), toUnix(now)).Scan(&found)
	if err != nil {
		return false, err
	}
	return found == 1, nil
}
