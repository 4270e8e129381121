// Package filter stores saved searches. A filter is a named criteria
// list owned by the user who saved it; other users never see it.
package filter

import (
	"time"

	"github.com/google/uuid"

	"github.com/caretrack/caretrack/internal/domain/extract"
)

type Filter struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Criteria  []extract.Criterion
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Serialize renders the filter the way the search UI consumes it.
func (f *Filter) Serialize() map[string]any {
	criteria := f.Criteria
	if criteria == nil {
		criteria = []extract.Criterion{}
	}
	return map[string]any{
		"id":       f.ID,
		"name":     f.Name,
		"criteria": criteria,
	}
}
