package extract

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

// Criterion is one line of the legacy search wire format.
type Criterion struct {
	Column    string `json:"column"`
	Field     string `json:"field"`
	QueryType string `json:"queryType"`
	Query     string `json:"query"`
	Combine   string `json:"combine"`
}

// Comparison types accepted in a criterion's queryType. Anything other
// than Contains falls back to an exact match; Before and After only
// change behavior on date fields.
const (
	QueryEquals   = "Equals"
	QueryContains = "Contains"
	QueryBefore   = "Before"
	QueryAfter    = "After"
)

// Combinators accepted in a criterion's combine slot.
const (
	CombineAnd = "and"
	CombineOr  = "or"
	CombineNot = "not"
)

// Set is a materialized collection of episode IDs. Criteria resolve to
// sets and the combinator folds them, so every set algebra step works
// on ids already fetched from storage.
type Set map[uuid.UUID]struct{}

func NewSet(ids ...uuid.UUID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Contains(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Intersect returns the ids present in both sets.
func (s Set) Intersect(other Set) Set {
	out := Set{}
	for id := range s {
		if other.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Union returns the ids present in either set.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Difference returns the ids in s that are not in other.
func (s Set) Difference(other Set) Set {
	out := Set{}
	for id := range s {
		if !other.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// IDs returns the members in a stable order, so projections and tests
// see deterministic output.
func (s Set) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}
