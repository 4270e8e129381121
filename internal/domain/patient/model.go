// Package patient holds the patient root records. Clinical data lives
// in subrecords owned by the patient or one of their episodes, so the
// patient row itself is little more than an identity the rest of the
// system hangs off.
package patient

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
