package sqlite

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
		`SELECT name, chapter_id, committee_id, started_at, ended_at
		 FROM role_assignments
		 WHERE account_id = ? AND started_at <= ? AND (ended_at IS NULL OR ended_at >= ?)
		 ORDER BY started_at, id`,
		accountID, toUnix(now), toUnix(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoleGrant
	for rows.Next() {
		var (
			g                  domain.RoleGrant
			chapter, committee sql.NullString
			started            int64
			ended              sql.NullInt64
		)
		if err := rows.Scan(&g.Name, &chapter, &committee, &started, &ended); err != nil {
			return nil, err
		}
		g.ChapterID = mapNullString(chapter)
		g.CommitteeID = mapNullString(committee)
		g.StartedAt = fromUnix(started)
		g.EndedAt = mapNullUnix(ended)
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
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		idx.New().String(), accountID, g.Name, mapStringNull(g.ChapterID), mapStringNull(g.CommitteeID),
		toUnix(g.StartedAt), mapOptionalUnix(g.EndedAt))
	return err
}
