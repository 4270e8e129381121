package record

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caretrack/caretrack/internal/platform/db"
	"github.com/caretrack/caretrack/internal/schema"
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

// selectSQL builds the read query for a record type: base columns, one
// column per plain field, and for each hybrid field the joined canonical
// name plus the free-text column.
func selectSQL(rt *schema.RecordType) string {
	cols := []string{"t.id", "t." + rt.OwnerColumn(), "t.consistency_token", "t.created_at", "t.updated_at"}
	var joins strings.Builder
	for _, f := range rt.Fields {
		if f.Kind == schema.KindHybrid {
			alias := "li_" + f.Name
			cols = append(cols, alias+".name", "t."+f.FTColumn())
			fmt.Fprintf(&joins, " LEFT JOIN lookup_item %s ON %s.id = t.%s", alias, alias, f.FKColumn())
			continue
		}
		cols = append(cols, "t."+f.Column())
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + rt.Table + " t" + joins.String()
}

// recordScanner holds typed scan targets matching selectSQL's column
// order and renders them into a Record.
type recordScanner struct {
	rt        *schema.RecordType
	id        uuid.UUID
	owner     uuid.UUID
	token     string
	createdAt time.Time
	updatedAt time.Time
	slots     []any
}

func newRecordScanner(rt *schema.RecordType) *recordScanner {
	s := &recordScanner{rt: rt}
	for _, f := range rt.Fields {
		switch f.Kind {
		case schema.KindHybrid:
			s.slots = append(s.slots, new(*string), new(*string))
		case schema.KindBoolean:
			s.slots = append(s.slots, new(*bool))
		case schema.KindDate:
			s.slots = append(s.slots, new(*time.Time))
		default:
			s.slots = append(s.slots, new(*string))
		}
	}
	return s
}

func (s *recordScanner) targets() []any {
	out := []any{&s.id, &s.owner, &s.token, &s.createdAt, &s.updatedAt}
	return append(out, s.slots...)
}

func (s *recordScanner) record() *Record {
	rec := &Record{
		ID:               s.id,
		Type:             s.rt,
		OwnerID:          s.owner,
		ConsistencyToken: s.token,
		Values:           make(map[string]any, len(s.rt.Fields)),
		CreatedAt:        s.createdAt,
		UpdatedAt:        s.updatedAt,
	}
	i := 0
	for _, f := range s.rt.Fields {
		switch f.Kind {
		case schema.KindHybrid:
			canonical := *(s.slots[i].(**string))
			ft := *(s.slots[i+1].(**string))
			i += 2
			switch {
			case canonical != nil:
				rec.Values[f.Name] = *canonical
			case ft != nil:
				rec.Values[f.Name] = *ft
			default:
				rec.Values[f.Name] = nil
			}
		case schema.KindBoolean:
			b := *(s.slots[i].(**bool))
			i++
			if b != nil {
				rec.Values[f.Name] = *b
			} else {
				rec.Values[f.Name] = nil
			}
		case schema.KindDate:
			d := *(s.slots[i].(**time.Time))
			i++
			if d != nil {
				rec.Values[f.Name] = d.Format(DateLayoutISO)
			} else {
				rec.Values[f.Name] = nil
			}
		default:
			v := *(s.slots[i].(**string))
			i++
			if v != nil {
				rec.Values[f.Name] = *v
			} else {
				rec.Values[f.Name] = nil
			}
		}
	}
	return rec
}

func (r *repoPG) Get(ctx context.Context, rt *schema.RecordType, id uuid.UUID) (*Record, error) {
	s := newRecordScanner(rt)
	err := r.conn(ctx).QueryRow(ctx, selectSQL(rt)+` WHERE t.id = $1`, id).Scan(s.targets()...)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.record(), nil
}

func (r *repoPG) ListFor(ctx context.Context, rt *schema.RecordType, ownerID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		selectSQL(rt)+fmt.Sprintf(` WHERE t.%s = $1 ORDER BY t.created_at, t.id`, rt.OwnerColumn()),
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		s := newRecordScanner(rt)
		if err := rows.Scan(s.targets()...); err != nil {
			return nil, err
		}
		recs = append(recs, s.record())
	}
	return recs, rows.Err()
}

func (r *repoPG) SingletonFor(ctx context.Context, rt *schema.RecordType, ownerID uuid.UUID) (*Record, error) {
	s := newRecordScanner(rt)
	err := r.conn(ctx).QueryRow(ctx,
		selectSQL(rt)+fmt.Sprintf(` WHERE t.%s = $1 LIMIT 1`, rt.OwnerColumn()),
		ownerID).Scan(s.targets()...)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.record(), nil
}

func (r *repoPG) Create(ctx context.Context, rt *schema.RecordType, rec *Record, values []ColumnValue) error {
	cols := []string{"id", rt.OwnerColumn(), "consistency_token"}
	args := []any{rec.ID, rec.OwnerID, rec.ConsistencyToken}
	for _, cv := range values {
		cols = append(cols, cv.Column)
		args = append(args, cv.Value)
	}
	placeholders := make([]string, len(cols))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING created_at, updated_at`,
		rt.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *repoPG) Update(ctx context.Context, rt *schema.RecordType, rec *Record, values []ColumnValue) error {
	sets := []string{"consistency_token = $2", "updated_at = NOW()"}
	args := []any{rec.ID, rec.ConsistencyToken}
	for _, cv := range values {
		args = append(args, cv.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", cv.Column, len(args)))
	}
	sql := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, rt.Table, strings.Join(sets, ", "))
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, rt *schema.RecordType, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, rt.Table), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// likePattern escapes LIKE wildcards in a user value and wraps it for a
// substring match.
func likePattern(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, "%", `\%`)
	value = strings.ReplaceAll(value, "_", `\_`)
	return "%" + value + "%"
}

func matchPrefix(rt *schema.RecordType) string {
	return fmt.Sprintf(`SELECT DISTINCT t.%s FROM %s t`, rt.OwnerColumn(), rt.Table)
}

func (r *repoPG) MatchPlain(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp Compare, value string) ([]uuid.UUID, error) {
	var (
		sql string
		arg string
	)
	switch cmp {
	case CompareContains:
		sql = matchPrefix(rt) + fmt.Sprintf(` WHERE t.%s ILIKE $1`, field.Column())
		arg = likePattern(value)
	case CompareExact:
		sql = matchPrefix(rt) + fmt.Sprintf(` WHERE LOWER(t.%s) = LOWER($1)`, field.Column())
		arg = value
	default:
		return nil, fmt.Errorf("compare %s not valid for text fields", cmp)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOwnerIDs(rows)
}

func (r *repoPG) MatchBoolean(ctx context.Context, rt *schema.RecordType, field schema.Field, value bool) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx,
		matchPrefix(rt)+fmt.Sprintf(` WHERE t.%s = $1`, field.Column()), value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOwnerIDs(rows)
}

func (r *repoPG) MatchDate(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp Compare, value time.Time) ([]uuid.UUID, error) {
	var op string
	switch cmp {
	case CompareExact:
		op = "="
	case CompareOnOrBefore:
		op = "<="
	case CompareOnOrAfter:
		op = ">="
	default:
		return nil, fmt.Errorf("compare %s not valid for dates", cmp)
	}
	rows, err := r.conn(ctx).Query(ctx,
		matchPrefix(rt)+fmt.Sprintf(` WHERE t.%s %s $1`, field.Column(), op), value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOwnerIDs(rows)
}

func (r *repoPG) MatchHybrid(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp Compare, canonicalName, rawQuery string) ([]uuid.UUID, error) {
	join := fmt.Sprintf(` LEFT JOIN lookup_item li ON li.id = t.%s`, field.FKColumn())

	var (
		where string
		args  []any
	)
	switch cmp {
	case CompareContains:
		where = fmt.Sprintf(` WHERE (li.name ILIKE $1 OR t.%s ILIKE $2)`, field.FTColumn())
		args = []any{likePattern(canonicalName), likePattern(rawQuery)}
	case CompareExact:
		where = fmt.Sprintf(` WHERE (LOWER(li.name) = LOWER($1) OR LOWER(t.%s) = LOWER($2))`, field.FTColumn())
		args = []any{canonicalName, rawQuery}
	default:
		return nil, fmt.Errorf("compare %s not valid for lookup fields", cmp)
	}

	rows, err := r.conn(ctx).Query(ctx, matchPrefix(rt)+join+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOwnerIDs(rows)
}

func collectOwnerIDs(rows pgx.Rows) ([]uuid.UUID, error) {
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
