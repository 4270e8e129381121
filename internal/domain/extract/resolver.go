package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caretrack/caretrack/internal/domain/record"
	"github.com/caretrack/caretrack/internal/schema"
)

// RecordMatcher finds the owner ids of subrecord instances satisfying
// one field comparison. Satisfied by the record service.
type RecordMatcher interface {
	MatchPlain(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp record.Compare, value string) ([]uuid.UUID, error)
	MatchBoolean(ctx context.Context, rt *schema.RecordType, field schema.Field, value bool) ([]uuid.UUID, error)
	MatchDate(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp record.Compare, value time.Time) ([]uuid.UUID, error)
	MatchHybrid(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp record.Compare, rawQuery string) ([]uuid.UUID, error)
}

// EpisodeIndex answers the episode-shaped halves of resolution: tag
// history lookups and patient-to-episode expansion. Satisfied by the
// episode service.
type EpisodeIndex interface {
	EverTagged(ctx context.Context, teamName string) ([]uuid.UUID, error)
	IDsForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]uuid.UUID, error)
}

// Resolver turns one criterion into the set of episode ids matching it.
type Resolver struct {
	registry *schema.Registry
	records  RecordMatcher
	episodes EpisodeIndex
}

func NewResolver(registry *schema.Registry, records RecordMatcher, episodes EpisodeIndex) *Resolver {
	return &Resolver{registry: registry, records: records, episodes: episodes}
}

// Resolve dispatches on the field's declared kind. Patient-scoped types
// match patients first and expand to every episode of each match. Any
// failure aborts the criterion; nothing is silently dropped.
func (r *Resolver) Resolve(ctx context.Context, c Criterion) (Set, error) {
	rt, err := r.registry.Resolve(c.Column)
	if err != nil {
		return nil, err
	}
	f, err := rt.Field(c.Field)
	if err != nil {
		return nil, err
	}

	if f.Kind == schema.KindTag {
		ids, err := r.episodes.EverTagged(ctx, f.Name)
		if err != nil {
			return nil, fmt.Errorf("resolve tag %q: %w", f.Name, err)
		}
		return NewSet(ids...), nil
	}

	owners, err := r.matchOwners(ctx, rt, f, c)
	if err != nil {
		return nil, err
	}

	if rt.Scope == schema.ScopePatient {
		episodeIDs, err := r.episodes.IDsForPatients(ctx, owners)
		if err != nil {
			return nil, fmt.Errorf("expand patients: %w", err)
		}
		return NewSet(episodeIDs...), nil
	}
	return NewSet(owners...), nil
}

func (r *Resolver) matchOwners(ctx context.Context, rt *schema.RecordType, f schema.Field, c Criterion) ([]uuid.UUID, error) {
	switch f.Kind {
	case schema.KindBoolean:
		return r.records.MatchBoolean(ctx, rt, f, strings.EqualFold(c.Query, "true"))
	case schema.KindDate:
		day, err := record.ParseDate(c.Query)
		if err != nil {
			return nil, err
		}
		return r.records.MatchDate(ctx, rt, f, dateCompareFor(c.QueryType), day)
	case schema.KindHybrid:
		return r.records.MatchHybrid(ctx, rt, f, compareFor(c.QueryType), c.Query)
	default:
		return r.records.MatchPlain(ctx, rt, f, compareFor(c.QueryType), c.Query)
	}
}

// compareFor maps a wire query type onto a text comparison. Anything
// other than Contains matches exactly.
func compareFor(queryType string) record.Compare {
	if queryType == QueryContains {
		return record.CompareContains
	}
	return record.CompareExact
}

// dateCompareFor maps a wire query type onto a date comparison. Both
// bounds are inclusive.
func dateCompareFor(queryType string) record.Compare {
	switch queryType {
	case QueryBefore:
		return record.CompareOnOrBefore
	case QueryAfter:
		return record.CompareOnOrAfter
	default:
		return record.CompareExact
	}
}
