package schema

import (
	"fmt"
	"sort"
)

// Registry maps normalized type names to record-type descriptors. It is
// populated once at startup and read-only afterwards, so lookups are safe
// for concurrent use.
type Registry struct {
	types map[string][]*RecordType
}

func NewRegistry(types ...*RecordType) *Registry {
	r := &Registry{types: make(map[string][]*RecordType)}
	for _, rt := range types {
		r.Register(rt)
	}
	return r
}

// Register adds a descriptor under its normalized name. The declared
// Name is kept as-is: it is the key subrecords serialize under.
// Registering two descriptors with the same name and scope panics: that
// is a programming error, not a runtime condition.
func (r *Registry) Register(rt *RecordType) {
	key := NormalizeType(rt.Name)
	for _, existing := range r.types[key] {
		if existing.Scope == rt.Scope {
			panic(fmt.Sprintf("schema: duplicate record type %q with scope %s", key, rt.Scope))
		}
	}
	r.types[key] = append(r.types[key], rt)
}

// Resolve finds the descriptor for a wire-format column name.
//
// When the name is registered under more than one scope, a patient- or
// episode-scoped subrecord is preferred over a generic type. Two or more
// scoped candidates cannot be told apart and yield an AmbiguousTypeError
// rather than an arbitrary pick.
func (r *Registry) Resolve(name string) (*RecordType, error) {
	key := NormalizeType(name)
	candidates := r.types[key]
	switch len(candidates) {
	case 0:
		return nil, &UnknownTypeError{Name: name}
	case 1:
		return candidates[0], nil
	}

	var scoped []*RecordType
	for _, rt := range candidates {
		if rt.Scope == ScopePatient || rt.Scope == ScopeEpisode {
			scoped = append(scoped, rt)
		}
	}
	if len(scoped) == 1 {
		return scoped[0], nil
	}

	names := make([]string, 0, len(candidates))
	for _, rt := range candidates {
		names = append(names, fmt.Sprintf("%s (%s)", rt.Name, rt.Scope))
	}
	sort.Strings(names)
	return nil, &AmbiguousTypeError{Name: name, Candidates: names}
}

// Classify resolves a (type, field) pair to the field's kind.
// Precedence is carried by the declaration itself: a field is whatever kind
// it was registered as, and undeclared fields fail with UnknownFieldError.
func (r *Registry) Classify(typeName, fieldName string) (FieldKind, error) {
	rt, err := r.Resolve(typeName)
	if err != nil {
		return KindPlain, err
	}
	f, err := rt.Field(fieldName)
	if err != nil {
		return KindPlain, err
	}
	return f.Kind, nil
}

// Subrecords returns every patient- or episode-scoped non-virtual type,
// sorted by name for deterministic iteration.
func (r *Registry) Subrecords() []*RecordType {
	var out []*RecordType
	for _, candidates := range r.types {
		for _, rt := range candidates {
			if rt.Virtual || rt.Scope == ScopeNone {
				continue
			}
			out = append(out, rt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// EpisodeSubrecords returns the episode-scoped non-virtual types in
// deterministic order.
func (r *Registry) EpisodeSubrecords() []*RecordType {
	var out []*RecordType
	for _, rt := range r.Subrecords() {
		if rt.Scope == ScopeEpisode {
			out = append(out, rt)
		}
	}
	return out
}

// PatientSubrecords returns the patient-scoped non-virtual types in
// deterministic order.
func (r *Registry) PatientSubrecords() []*RecordType {
	var out []*RecordType
	for _, rt := range r.Subrecords() {
		if rt.Scope == ScopePatient {
			out = append(out, rt)
		}
	}
	return out
}
