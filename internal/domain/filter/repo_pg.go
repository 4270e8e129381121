package filter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
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

const filterCols = `id, user_id, name, criteria, created_at, updated_at`

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Filter, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+filterCols+` FROM search_filter WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filters []*Filter
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Filter, error) {
	f, err := scanFilter(r.conn(ctx).QueryRow(ctx,
		`SELECT `+filterCols+` FROM search_filter WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return f, err
}

func (r *repoPG) Create(ctx context.Context, f *Filter) error {
	criteria, err := json.Marshal(f.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO search_filter (id, user_id, name, criteria)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		f.ID, f.UserID, f.Name, criteria,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
}

func (r *repoPG) Update(ctx context.Context, f *Filter) error {
	criteria, err := json.Marshal(f.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE search_filter
		 SET name = $2, criteria = $3, updated_at = NOW()
		 WHERE id = $1`,
		f.ID, f.Name, criteria)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM search_filter WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanFilter(row pgx.Row) (*Filter, error) {
	var (
		f   Filter
		raw []byte
	)
	err := row.Scan(&f.ID, &f.UserID, &f.Name, &raw, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &f.Criteria); err != nil {
			return nil, fmt.Errorf("decode criteria: %w", err)
		}
	}
	return &f, nil
}
