// Package episode manages clinical care episodes: the admission flow,
// updates guarded by consistency tokens, tagging to clinical teams, and
// per-viewer serialization. An episode belongs to exactly one patient;
// its clinical content lives in subrecords keyed off the episode id.
package episode

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is assigned to episodes admitted without an explicit
// category.
const DefaultCategory = "inpatient"

type Episode struct {
	ID               uuid.UUID
	PatientID        uuid.UUID
	Category         string
	DateOfAdmission  *time.Time
	DischargeDate    *time.Time
	ConsistencyToken string
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Tagging ties an episode to a clinical team, or to a single user for
// the personal list. Exactly one of TeamID and UserID is set. Removed
// tags are archived rather than deleted so historical membership stays
// queryable.
type Tagging struct {
	ID        uuid.UUID
	EpisodeID uuid.UUID
	TeamID    *uuid.UUID
	UserID    *uuid.UUID
	Archived  bool
	CreatedAt time.Time

	// TeamName and Restricted are joined from the team row on read.
	// Personal taggings carry the pseudo team name "mine".
	TeamName   string
	Restricted bool
}

// newConsistencyToken returns the 8-hex-char token stamped on every
// episode write.
func newConsistencyToken() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
