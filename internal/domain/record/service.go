package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/caretrack/caretrack/internal/domain/lookup"
	"github.com/caretrack/caretrack/internal/schema"
)

var (
	// ErrNotSubrecord is returned for registry types without stored
	// instances of their own, such as the virtual tags type.
	ErrNotSubrecord = errors.New("record type has no stored instances")
	ErrMissingOwner = errors.New("owner id is required")
)

// SynonymResolver maps free text to canonical lookup items. Satisfied
// by the lookup service.
type SynonymResolver interface {
	Canonical(ctx context.Context, lookupList, value string) (lookup.Ref, bool, error)
}

type Service struct {
	registry *schema.Registry
	repo     Repository
	synonyms SynonymResolver
}

func NewService(registry *schema.Registry, repo Repository, synonyms SynonymResolver) *Service {
	return &Service{registry: registry, repo: repo, synonyms: synonyms}
}

// Registry exposes the schema the service was built with.
func (s *Service) Registry() *schema.Registry {
	return s.registry
}

func (s *Service) resolveStored(typeName string) (*schema.RecordType, error) {
	rt, err := s.registry.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	if rt.Virtual || rt.Scope == schema.ScopeNone {
		return nil, ErrNotSubrecord
	}
	return rt, nil
}

// Get returns one rendered record.
func (s *Service) Get(ctx context.Context, typeName string, id uuid.UUID) (*Record, error) {
	rt, err := s.resolveStored(typeName)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, rt, id)
}

// ListFor returns the records of one type owned by ownerID.
func (s *Service) ListFor(ctx context.Context, typeName string, ownerID uuid.UUID) ([]*Record, error) {
	rt, err := s.resolveStored(typeName)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFor(ctx, rt, ownerID)
}

// Create stores a new record from an API payload. The payload must
// carry the owner column for the type's scope. Singleton types reject
// a second instance per owner.
func (s *Service) Create(ctx context.Context, typeName string, payload map[string]any) (*Record, error) {
	rt, err := s.resolveStored(typeName)
	if err != nil {
		return nil, err
	}

	ownerID, err := ownerFromPayload(rt, payload)
	if err != nil {
		return nil, err
	}

	if rt.Singleton {
		if _, err := s.repo.SingletonFor(ctx, rt, ownerID); err == nil {
			return nil, ErrSingletonExists
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	values, err := s.parseValues(ctx, rt, payload)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:               uuid.New(),
		Type:             rt,
		OwnerID:          ownerID,
		ConsistencyToken: newConsistencyToken(),
	}
	if err := s.repo.Create(ctx, rt, rec, values); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, rt, rec.ID)
}

// Update rewrites the supplied fields of an existing record. When the
// stored record carries a consistency token the payload must echo it,
// otherwise the write is rejected with ErrConsistency.
func (s *Service) Update(ctx context.Context, typeName string, id uuid.UUID, payload map[string]any) (*Record, error) {
	rt, err := s.resolveStored(typeName)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.Get(ctx, rt, id)
	if err != nil {
		return nil, err
	}
	if existing.ConsistencyToken != "" {
		provided, _ := payload["consistency_token"].(string)
		if provided != existing.ConsistencyToken {
			return nil, ErrConsistency
		}
	}

	values, err := s.parseValues(ctx, rt, payload)
	if err != nil {
		return nil, err
	}

	existing.ConsistencyToken = newConsistencyToken()
	if err := s.repo.Update(ctx, rt, existing, values); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, rt, id)
}

// Delete removes one record.
func (s *Service) Delete(ctx context.Context, typeName string, id uuid.UUID) error {
	rt, err := s.resolveStored(typeName)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, rt, id)
}

// UpsertSingleton writes values onto the singleton instance for an
// owner, creating it when absent. Used by the admission flow, where the
// payload is authored server-side and carries no consistency token.
func (s *Service) UpsertSingleton(ctx context.Context, typeName string, ownerID uuid.UUID, payload map[string]any) (*Record, error) {
	rt, err := s.resolveStored(typeName)
	if err != nil {
		return nil, err
	}
	if !rt.Singleton {
		return nil, fmt.Errorf("record type %q is not a singleton", rt.Name)
	}

	values, err := s.parseValues(ctx, rt, payload)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.SingletonFor(ctx, rt, ownerID)
	if errors.Is(err, ErrNotFound) {
		rec := &Record{
			ID:               uuid.New(),
			Type:             rt,
			OwnerID:          ownerID,
			ConsistencyToken: newConsistencyToken(),
		}
		if err := s.repo.Create(ctx, rt, rec, values); err != nil {
			return nil, err
		}
		return s.repo.Get(ctx, rt, rec.ID)
	}
	if err != nil {
		return nil, err
	}

	existing.ConsistencyToken = newConsistencyToken()
	if err := s.repo.Update(ctx, rt, existing, values); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, rt, existing.ID)
}

// SerializeFor renders every subrecord of the given scope owned by
// ownerID, keyed by record type name. Singletons serialize as a
// one-element list so clients handle every type uniformly.
func (s *Service) SerializeFor(ctx context.Context, scope schema.Scope, ownerID uuid.UUID) (map[string]any, error) {
	var types []*schema.RecordType
	if scope == schema.ScopePatient {
		types = s.registry.PatientSubrecords()
	} else {
		types = s.registry.EpisodeSubrecords()
	}

	out := make(map[string]any, len(types))
	for _, rt := range types {
		recs, err := s.repo.ListFor(ctx, rt, ownerID)
		if err != nil {
			return nil, err
		}
		items := make([]map[string]any, 0, len(recs))
		for _, rec := range recs {
			items = append(items, rec.Serialize())
		}
		out[rt.Name] = items
	}
	return out, nil
}

// MatchPlain returns the owner IDs whose field matches value.
func (s *Service) MatchPlain(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp Compare, value string) ([]uuid.UUID, error) {
	return s.repo.MatchPlain(ctx, rt, field, cmp, value)
}

// MatchBoolean returns the owner IDs whose field equals value.
func (s *Service) MatchBoolean(ctx context.Context, rt *schema.RecordType, field schema.Field, value bool) ([]uuid.UUID, error) {
	return s.repo.MatchBoolean(ctx, rt, field, value)
}

// MatchDate returns the owner IDs whose field satisfies the comparison.
func (s *Service) MatchDate(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp Compare, value time.Time) ([]uuid.UUID, error) {
	return s.repo.MatchDate(ctx, rt, field, cmp, value)
}

// MatchHybrid resolves rawQuery against the field's lookup list, then
// matches the reference arm with the canonical name and the free-text
// arm with the raw query. An unresolvable query still matches free
// text, so values typed outside the vocabulary stay findable.
func (s *Service) MatchHybrid(ctx context.Context, rt *schema.RecordType, field schema.Field, cmp Compare, rawQuery string) ([]uuid.UUID, error) {
	canonical := rawQuery
	if ref, ok, err := s.synonyms.Canonical(ctx, field.LookupList, rawQuery); err != nil {
		return nil, err
	} else if ok {
		canonical = ref.Name
	}
	return s.repo.MatchHybrid(ctx, rt, field, cmp, canonical, rawQuery)
}

// reservedKeys are payload entries handled outside field parsing.
var reservedKeys = map[string]bool{
	"id":                true,
	"patient_id":        true,
	"episode_id":        true,
	"consistency_token": true,
	"created_at":        true,
	"updated_at":        true,
}

func ownerFromPayload(rt *schema.RecordType, payload map[string]any) (uuid.UUID, error) {
	raw, ok := payload[rt.OwnerColumn()].(string)
	if !ok || raw == "" {
		return uuid.Nil, ErrMissingOwner
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", rt.OwnerColumn(), err)
	}
	return id, nil
}

// parseValues turns an API payload into typed column writes, resolving
// hybrid fields against their lookup lists. Unknown keys are rejected
// so client typos fail loudly instead of dropping data.
func (s *Service) parseValues(ctx context.Context, rt *schema.RecordType, payload map[string]any) ([]ColumnValue, error) {
	fields := make(map[string]any, len(payload))
	for key, v := range payload {
		if reservedKeys[key] {
			continue
		}
		if _, err := rt.Field(key); err != nil {
			return nil, err
		}
		fields[schema.NormalizeField(key)] = v
	}

	var out []ColumnValue
	for _, f := range rt.Fields {
		raw, present := fields[f.Name]
		if !present {
			continue
		}
		switch f.Kind {
		case schema.KindBoolean:
			if raw == nil {
				out = append(out, ColumnValue{Column: f.Column(), Value: nil})
				continue
			}
			v, err := boolValue(raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			out = append(out, ColumnValue{Column: f.Column(), Value: v})
		case schema.KindDate:
			str, _ := stringValue(raw)
			if str == "" {
				out = append(out, ColumnValue{Column: f.Column(), Value: nil})
				continue
			}
			d, err := ParseDate(str)
			if err != nil {
				return nil, err
			}
			out = append(out, ColumnValue{Column: f.Column(), Value: d})
		case schema.KindHybrid:
			str, _ := stringValue(raw)
			if str == "" {
				out = append(out,
					ColumnValue{Column: f.FKColumn(), Value: nil},
					ColumnValue{Column: f.FTColumn(), Value: nil})
				continue
			}
			ref, ok, err := s.synonyms.Canonical(ctx, f.LookupList, str)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out,
					ColumnValue{Column: f.FKColumn(), Value: ref.ID},
					ColumnValue{Column: f.FTColumn(), Value: nil})
				continue
			}
			out = append(out,
				ColumnValue{Column: f.FKColumn(), Value: nil},
				ColumnValue{Column: f.FTColumn(), Value: str})
		default:
			if raw == nil {
				out = append(out, ColumnValue{Column: f.Column(), Value: nil})
				continue
			}
			str, ok := stringValue(raw)
			if !ok {
				return nil, fmt.Errorf("field %s: want string", f.Name)
			}
			out = append(out, ColumnValue{Column: f.Column(), Value: str})
		}
	}
	return out, nil
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case nil:
		return "", true
	}
	return "", false
}

func boolValue(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, fmt.Errorf("want boolean, got %q", t)
		}
		return b, nil
	}
	return false, fmt.Errorf("want boolean, got %T", v)
}
