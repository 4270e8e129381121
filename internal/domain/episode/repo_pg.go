package episode

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caretrack/caretrack/internal/domain/team"
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

const episodeCols = `e.id, e.patient_id, e.category, e.date_of_admission, e.discharge_date,
	e.consistency_token, e.active, e.created_at, e.updated_at`

func (r *repoPG) Create(ctx context.Context, e *Episode) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO episode (id, patient_id, category, date_of_admission, discharge_date, consistency_token, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		e.ID, e.PatientID, e.Category, e.DateOfAdmission, e.DischargeDate, e.ConsistencyToken, e.Active).
		Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Episode, error) {
	e, err := scanEpisode(r.conn(ctx).QueryRow(ctx, `
		SELECT `+episodeCols+` FROM episode e WHERE e.id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *repoPG) Update(ctx context.Context, e *Episode) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE episode
		SET category = $2, date_of_admission = $3, discharge_date = $4,
		    consistency_token = $5, active = $6, updated_at = NOW()
		WHERE id = $1`,
		e.ID, e.Category, e.DateOfAdmission, e.DischargeDate, e.ConsistencyToken, e.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Episode, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+episodeCols+` FROM episode e WHERE e.active ORDER BY e.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

func (r *repoPG) ListActiveByTag(ctx context.Context, teamName string) ([]*Episode, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT `+episodeCols+`
		FROM episode e
		JOIN tagging t ON t.episode_id = e.id AND NOT t.archived
		JOIN team tm ON tm.id = t.team_id
		WHERE e.active AND LOWER(tm.name) = LOWER($1)
		ORDER BY e.created_at`, teamName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

func (r *repoPG) ListActiveMine(ctx context.Context, userID uuid.UUID) ([]*Episode, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT `+episodeCols+`
		FROM episode e
		JOIN tagging t ON t.episode_id = e.id AND NOT t.archived
		WHERE e.active AND t.user_id = $1
		ORDER BY e.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Episode, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+episodeCols+` FROM episode e WHERE e.patient_id = $1 ORDER BY e.created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

func (r *repoPG) ActiveForPatient(ctx context.Context, patientID uuid.UUID) (*Episode, error) {
	e, err := scanEpisode(r.conn(ctx).QueryRow(ctx, `
		SELECT `+episodeCols+` FROM episode e
		WHERE e.patient_id = $1 AND e.active
		ORDER BY e.created_at DESC
		LIMIT 1`, patientID))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *repoPG) IDsForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id FROM episode WHERE patient_id = ANY($1)`, patientIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *repoPG) EverTagged(ctx context.Context, teamName string) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT t.episode_id
		FROM tagging t
		JOIN team tm ON tm.id = t.team_id
		WHERE LOWER(tm.name) = LOWER($1)`, teamName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *repoPG) Taggings(ctx context.Context, episodeID uuid.UUID) ([]*Tagging, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT t.id, t.episode_id, t.team_id, t.user_id, t.archived, t.created_at,
		       tm.name, COALESCE(tm.restricted, FALSE)
		FROM tagging t
		LEFT JOIN team tm ON tm.id = t.team_id
		WHERE t.episode_id = $1 AND NOT t.archived
		ORDER BY t.created_at`, episodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*Tagging
	for rows.Next() {
		var (
			t    Tagging
			name *string
		)
		err := rows.Scan(&t.ID, &t.EpisodeID, &t.TeamID, &t.UserID, &t.Archived, &t.CreatedAt,
			&name, &t.Restricted)
		if err != nil {
			return nil, err
		}
		if name != nil {
			t.TeamName = *name
		} else {
			t.TeamName = team.MineTeamName
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

func (r *repoPG) AddTagging(ctx context.Context, t *Tagging) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tagging (id, episode_id, team_id, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		t.ID, t.EpisodeID, t.TeamID, t.UserID).
		Scan(&t.CreatedAt)
}

func (r *repoPG) ArchiveTagging(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE tagging SET archived = TRUE WHERE id = $1`, id)
	return err
}

func scanEpisode(row pgx.Row) (*Episode, error) {
	var e Episode
	err := row.Scan(
		&e.ID, &e.PatientID, &e.Category, &e.DateOfAdmission, &e.DischargeDate,
		&e.ConsistencyToken, &e.Active, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEpisodes(rows pgx.Rows) ([]*Episode, error) {
	var episodes []*Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

func collectIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
