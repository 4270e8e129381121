// Package schema holds the record-type registry: the static description of
// every clinical record type the service knows about, which scope owns it,
// and how each of its fields is matched during advanced search.
package schema

import (
	"fmt"
	"strings"
)

// Scope says which top-level entity owns instances of a record type.
type Scope int

const (
	// ScopeNone marks types that are not patient or episode subrecords.
	ScopeNone Scope = iota
	ScopePatient
	ScopeEpisode
)

func (s Scope) String() string {
	switch s {
	case ScopePatient:
		return "patient"
	case ScopeEpisode:
		return "episode"
	default:
		return "none"
	}
}

// FieldKind selects the matching strategy for a field. It is decided once,
// at classification time, so resolvers never inspect storage types.
type FieldKind int

const (
	// KindPlain matches as a case-insensitive string, exact or substring.
	KindPlain FieldKind = iota
	// KindBoolean matches against a parsed truthy token.
	KindBoolean
	// KindDate matches dd/mm/yyyy literals with inclusive Before/After bounds.
	KindDate
	// KindHybrid matches either a lookup-list reference or a free-text
	// fallback, unioned. Backed by two columns: <name>_fk_id and <name>_ft.
	KindHybrid
	// KindTag matches episodes ever tagged with the team named by the
	// criterion's field. Only the virtual "tags" type classifies this way.
	KindTag
)

func (k FieldKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindHybrid:
		return "hybrid"
	case KindTag:
		return "tag"
	default:
		return "plain"
	}
}

// Field describes one declared field of a record type.
type Field struct {
	Name string
	Kind FieldKind
	// LookupList names the controlled vocabulary backing a hybrid field.
	// Empty for every other kind.
	LookupList string
}

// Column returns the storage column for plain, boolean and date fields.
func (f Field) Column() string { return f.Name }

// FKColumn and FTColumn return the two columns backing a hybrid field.
func (f Field) FKColumn() string { return f.Name + "_fk_id" }
func (f Field) FTColumn() string { return f.Name + "_ft" }

// RecordType describes one named clinical record type.
type RecordType struct {
	// Name is the declared API name, e.g. "past_medical_history".
	// Resolution normalizes incoming names, so queries may spell it
	// with spaces or camel case and still land here.
	Name    string
	Display string
	Table   string
	Scope   Scope
	// Singleton types keep exactly one instance per owner.
	Singleton bool
	// Virtual types have no subrecord table of their own; the only one is
	// "tags", which maps onto the tagging relation and classifies every
	// field name as a tag lookup.
	Virtual bool
	Fields  []Field
}

// Field returns the descriptor for a declared field. The lookup normalizes
// the requested name the same way criteria arrive off the wire.
func (rt *RecordType) Field(name string) (Field, error) {
	if rt.Virtual {
		return Field{Name: NormalizeField(name), Kind: KindTag}, nil
	}
	want := NormalizeField(name)
	for _, f := range rt.Fields {
		if f.Name == want {
			return f, nil
		}
	}
	return Field{}, &UnknownFieldError{Type: rt.Name, Field: name}
}

// OwnerColumn is the foreign key column tying an instance to its owner.
func (rt *RecordType) OwnerColumn() string {
	if rt.Scope == ScopePatient {
		return "patient_id"
	}
	return "episode_id"
}

// NormalizeType collapses a wire-format column name to a registry key:
// lowercased, spaces and underscores removed. "Past Medical History",
// "past_medical_history" and "PastMedicalHistory" all resolve alike.
func NormalizeType(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "")
	return strings.ReplaceAll(name, "_", "")
}

// NormalizeField lowercases a field name and turns spaces into underscores,
// matching how field names are declared.
func NormalizeField(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// UnknownTypeError reports a criterion column that names no registered type.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown record type %q", e.Name)
}

// UnknownFieldError reports a field that is not declared on its type.
type UnknownFieldError struct {
	Type  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("record type %q has no field %q", e.Type, e.Field)
}

// AmbiguousTypeError reports a type name registered under more than one
// scope where no candidate can be deterministically preferred.
type AmbiguousTypeError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguousTypeError) Error() string {
	return fmt.Sprintf("record type %q is ambiguous between %s; qualify the query",
		e.Name, strings.Join(e.Candidates, ", "))
}
