package lookup

import (
	"context"

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

const listCols = `id, name, created_at, updated_at`

func (r *repoPG) Lists(ctx context.Context) ([]*List, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+listCols+` FROM lookup_list ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []*List
	for rows.Next() {
		var l List
		if err := rows.Scan(&l.ID, &l.Name, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lists = append(lists, &l)
	}
	return lists, rows.Err()
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*List, error) {
	var l List
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+listCols+` FROM lookup_list WHERE name = $1`, name).
		Scan(&l.ID, &l.Name, &l.CreatedAt, &l.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	l.Items, err = r.Items(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repoPG) Items(ctx context.Context, listID uuid.UUID) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, list_id, name, code
		FROM lookup_item WHERE list_id = $1 ORDER BY name`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	byID := map[uuid.UUID]*Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ListID, &it.Name, &it.Code); err != nil {
			return nil, err
		}
		items = append(items, &it)
		byID[it.ID] = &it
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srows, err := r.conn(ctx).Query(ctx, `
		SELECT s.item_id, s.name
		FROM lookup_synonym s
		JOIN lookup_item i ON i.id = s.item_id
		WHERE i.list_id = $1 ORDER BY s.name`, listID)
	if err != nil {
		return nil, err
	}
	defer srows.Close()

	for srows.Next() {
		var (
			itemID uuid.UUID
			name   string
		)
		if err := srows.Scan(&itemID, &name); err != nil {
			return nil, err
		}
		if it, ok := byID[itemID]; ok {
			it.Synonyms = append(it.Synonyms, name)
		}
	}
	return items, srows.Err()
}

func (r *repoPG) CanonicalItem(ctx context.Context, listName, value string) (Ref, bool, error) {
	var ref Ref
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT i.id, i.name
		FROM lookup_item i
		JOIN lookup_list l ON l.id = i.list_id
		LEFT JOIN lookup_synonym s ON s.item_id = i.id
		WHERE l.name = $1 AND (LOWER(i.name) = LOWER($2) OR LOWER(s.name) = LOWER($2))
		LIMIT 1`, listName, value).Scan(&ref.ID, &ref.Name)
	if err == pgx.ErrNoRows {
		return Ref{}, false, nil
	}
	if err != nil {
		return Ref{}, false, err
	}
	return ref, true, nil
}
