// Package record stores and queries the dynamic clinical subrecords
// described by the schema registry. One package serves every record
// type: the registry says which table and columns a type uses, and the
// repository builds its SQL from that description. Table and column
// names only ever come from the static registry, never from request
// input.
package record

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caretrack/caretrack/internal/schema"
)

// Date layouts: the wire format used by clients and search criteria,
// and the ISO form records are rendered with.
const (
	DateLayoutWire = "02/01/2006"
	DateLayoutISO  = "2006-01-02"
)

// Record is one subrecord row with its rendered field values. Hybrid
// fields are flattened to a single value: the canonical lookup name
// when the reference column is set, otherwise the free-text fallback.
type Record struct {
	ID               uuid.UUID
	Type             *schema.RecordType
	OwnerID          uuid.UUID
	ConsistencyToken string
	Values           map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Serialize renders the record as an API payload.
func (r *Record) Serialize() map[string]any {
	out := map[string]any{
		"id":                r.ID,
		r.Type.OwnerColumn(): r.OwnerID,
		"consistency_token": r.ConsistencyToken,
		"created_at":        r.CreatedAt,
		"updated_at":        r.UpdatedAt,
	}
	for k, v := range r.Values {
		out[k] = v
	}
	return out
}

// Compare selects how a match query compares stored values.
type Compare int

const (
	// CompareExact matches the whole value ignoring case.
	CompareExact Compare = iota
	// CompareContains matches a substring ignoring case.
	CompareContains
	// CompareOnOrBefore matches dates up to and including the bound.
	CompareOnOrBefore
	// CompareOnOrAfter matches dates from the bound onwards.
	CompareOnOrAfter
)

func (c Compare) String() string {
	switch c {
	case CompareContains:
		return "contains"
	case CompareOnOrBefore:
		return "on-or-before"
	case CompareOnOrAfter:
		return "on-or-after"
	default:
		return "exact"
	}
}

// MalformedDateError reports a date value that fits no accepted layout.
type MalformedDateError struct {
	Value string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("malformed date %q, want dd/mm/yyyy", e.Value)
}

// ParseDate reads a date in the wire format, falling back to ISO.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{DateLayoutWire, DateLayoutISO} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &MalformedDateError{Value: s}
}

// newConsistencyToken returns the 8-hex-char token stamped on every
// write. Clients must echo it back to update a record.
func newConsistencyToken() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
