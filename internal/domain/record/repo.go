package record

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/caretrack/caretrack/internal/schema"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConsistency is returned when a write carries a stale
	// consistency token. Handlers map it to 409.
	ErrConsistency = errors.New("item has changed")
	// ErrSingletonExists guards singleton types against second rows.
	ErrSingletonExists = errors.New("record already exists for owner")
)

// ColumnValue is one storage column and the typed value to write there.
// The parse step produces these; the repository turns them into SQL.
type ColumnValue struct {
	Column string
	Value  any
}

type Repository interface {
	Get(ctx context.Context, rt *schema.RecordType, id uuid.UUID) (*Record, error)
	// ListFor returns every instance owned by ownerID in creation order.
	ListFor(ctx context.Context, rt *schema.RecordType, ownerID uuid.UUID) ([]*Record, error)
	// SingletonFor returns the single instance for ownerID, or
	// ErrNotFound when none exists yet.
	SingletonFor(ctx context.Context, rt *schema.RecordType, ownerID uuid.UUID) (*Record, error)
	Create(ctx context.Context, rt *schema.RecordType, rec *Record, values []ColumnValue) error
	Update(ctx context.Context, rt *schema.RecordType, rec *Record, values []ColumnValue) error
	Delete(ctx context.Context, rt *schema.RecordType, id uuid.UUID) error

	// Match queries return the distinct owner IDs of instances whose
	// field satisfies the comparison.
	MatchPlain(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp Compare, value string) ([]uuid.UUID, error)
	MatchBoolean(ctx context.Context, rt *schema.RecordType, field schema.Field, value bool) ([]uuid.UUID, error)
	MatchDate(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp Compare, value time.Time) ([]uuid.UUID, error)
	// MatchHybrid matches the lookup reference against canonicalName and
	// the free-text column against rawQuery, unioned.
	MatchHybrid(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp Compare, canonicalName, rawQuery string) ([]uuid.UUID, error)
}
