package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/pkg/idx"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) ListActiveRoles(ctx context.Context, accountID string, now time.Time) ([]domain.RoleGrant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, coalesce(chapter_id, ''), coalesce(committee_id, ''), started_at, ended_at
		 FROM role_assignments
		 WHERE account_id = $1 AND started_at <= $2 AND (ended_at IS NULL OR ended_at >= $2)
		 ORDER BY started_at, id`,
		accountID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoleGrant
	for rows.Next() {
		var (
			g     domain.RoleGrant
			ended sql.NullTime
		)
		if err := rows.Scan(&g.Name, &g.ChapterID, &g.CommitteeID, &g.StartedAt, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			g.EndedAt = &ended.Time
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *rolesRepo) GrantRole(ctx context.Context, accountID string, g domain.RoleGrant) error {
	if err := g.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO role_assignments (id, account_id, name, chapter_id, committee_id, started_at, ended_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)`,
		idx.New().String(), accountID, g.Name, g.ChapterID, g.CommitteeID, g.StartedAt, nullTime(g.EndedAt))
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
