// Package lookup manages the controlled vocabularies behind coded
// record fields. Each list holds canonical item names plus synonyms;
// search input is resolved against both so "heart attack" and
// "Myocardial Infarction" find the same episodes.
package lookup

import (
	"time"

	"github.com/google/uuid"
)

type List struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Items     []*Item   `json:"items,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Item struct {
	ID       uuid.UUID `json:"id"`
	ListID   uuid.UUID `json:"list_id"`
	Name     string    `json:"name"`
	Code     string    `json:"code,omitempty"`
	Synonyms []string  `json:"synonyms,omitempty"`
}

// Ref points at one canonical item. Returned by synonym resolution so
// callers can store the reference or render the display name.
type Ref struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
