package team

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caretrack/caretrack/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const teamCols = `id, name, title, parent_id, active, restricted, direct_add, display_order, created_at, updated_at`

func (r *repoPG) List(ctx context.Context) ([]*Team, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+teamCols+` FROM team WHERE active ORDER BY display_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*Team, error) {
	t, err := scanTeam(r.conn(ctx).QueryRow(ctx,
		`SELECT `+teamCols+` FROM team WHERE name = $1`, name))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

func scanTeam(row pgx.Row) (*Team, error) {
	var t Team
	err := row.Scan(
		&t.ID, &t.Name, &t.Title, &t.ParentID, &t.Active,
		&t.Restricted, &t.DirectAdd, &t.DisplayOrder, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
