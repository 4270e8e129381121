package patient

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

func (r *repoPG) Create(ctx context.Context) (*Patient, error) {
	p := &Patient{ID: uuid.New()}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id) VALUES ($1)
		RETURNING created_at, updated_at`, p.ID).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, created_at, updated_at FROM patient WHERE id = $1`, id).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) FindByHospitalNumber(ctx context.Context, hospitalNumber string) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT p.id, p.created_at, p.updated_at
		FROM patient p
		JOIN demographics d ON d.patient_id = p.id
		WHERE LOWER(d.hospital_number) = LOWER($1)
		LIMIT 1`, hospitalNumber).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) SearchByHospitalNumber(ctx context.Context, hospitalNumber string) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.created_at, p.updated_at
		FROM patient p
		JOIN demographics d ON d.patient_id = p.id
		WHERE LOWER(d.hospital_number) = LOWER($1)
		ORDER BY d.date_of_birth`, hospitalNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatients(rows)
}

func (r *repoPG) SearchByName(ctx context.Context, name string) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.id, p.created_at, p.updated_at
		FROM patient p
		JOIN demographics d ON d.patient_id = p.id
		WHERE d.name ILIKE '%' || $1 || '%'
		ORDER BY d.date_of_birth`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatients(rows)
}

func collectPatients(rows pgx.Rows) ([]*Patient, error) {
	var patients []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		patients = append(patients, &p)
	}
	return patients, rows.Err()
}
