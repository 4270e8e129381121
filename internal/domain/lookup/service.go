package lookup

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	listsKey     = "lookup:lists"
	canonicalKey = "lookup:canonical:"
)

// CacheRecorder counts cache hits and misses. Satisfied by the metrics
// package.
type CacheRecorder interface {
	RecordLookupCache(hit bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordLookupCache(bool) {}

// Service reads lookup lists through a write-around cache. Vocabularies
// change rarely, so entries live until the TTL expires; cache failures
// fall through to Postgres and are logged, never surfaced.
type Service struct {
	repo     Repository
	kv       KVStore
	ttl      time.Duration
	logger   zerolog.Logger
	recorder CacheRecorder
}

// NewService builds the lookup service. kv may be nil to disable
// caching entirely.
func NewService(repo Repository, kv KVStore, ttl time.Duration, logger zerolog.Logger, recorder CacheRecorder) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		repo:     repo,
		kv:       kv,
		ttl:      ttl,
		logger:   logger.With().Str("component", "lookup").Logger(),
		recorder: recorder,
	}
}

// Lists returns every lookup list with items and synonyms attached.
func (s *Service) Lists(ctx context.Context) ([]*List, error) {
	if s.kv != nil {
		if raw, err := s.kv.Get(ctx, listsKey); err == nil {
			var lists []*List
			if err := json.Unmarshal([]byte(raw), &lists); err == nil {
				s.recorder.RecordLookupCache(true)
				return lists, nil
			}
		} else if err != ErrCacheMiss {
			s.logger.Warn().Err(err).Msg("lookup cache read failed")
		}
		s.recorder.RecordLookupCache(false)
	}

	lists, err := s.repo.Lists(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range lists {
		l.Items, err = s.repo.Items(ctx, l.ID)
		if err != nil {
			return nil, err
		}
	}

	if s.kv != nil {
		if raw, err := json.Marshal(lists); err == nil {
			if err := s.kv.Set(ctx, listsKey, string(raw), s.ttl); err != nil {
				s.logger.Warn().Err(err).Msg("lookup cache write failed")
			}
		}
	}
	return lists, nil
}

// Get returns one list by name with its items attached.
func (s *Service) Get(ctx context.Context, name string) (*List, error) {
	return s.repo.GetByName(ctx, name)
}

// Canonical resolves value to its canonical item within the named
// list, matching item names and synonyms case-insensitively. The
// second return reports whether the input matched anything.
func (s *Service) Canonical(ctx context.Context, listName, value string) (Ref, bool, error) {
	key := canonicalKey + listName + ":" + strings.ToLower(value)

	if s.kv != nil {
		if cached, err := s.kv.Get(ctx, key); err == nil {
			var ref Ref
			if err := json.Unmarshal([]byte(cached), &ref); err == nil {
				s.recorder.RecordLookupCache(true)
				return ref, true, nil
			}
		} else if err != ErrCacheMiss {
			s.logger.Warn().Err(err).Msg("lookup cache read failed")
		}
		s.recorder.RecordLookupCache(false)
	}

	ref, ok, err := s.repo.CanonicalItem(ctx, listName, value)
	if err != nil {
		return Ref{}, false, err
	}
	if !ok {
		return Ref{}, false, nil
	}

	if s.kv != nil {
		if raw, err := json.Marshal(ref); err == nil {
			if err := s.kv.Set(ctx, key, string(raw), s.ttl); err != nil {
				s.logger.Warn().Err(err).Msg("lookup cache write failed")
			}
		}
	}
	return ref, true, nil
}
