// Package team manages the clinical teams episodes are tagged with.
// Teams form a two-level tree; tagging an episode to a subteam implies
// membership of the parent list. Restricted teams are hidden from
// everyone but superusers.
package team

import (
	"time"

	"github.com/google/uuid"
)

type Team struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Title        string     `json:"title"`
	ParentID     *uuid.UUID `json:"parent_id,omitempty"`
	Active       bool       `json:"active"`
	Restricted   bool       `json:"restricted"`
	DirectAdd    bool       `json:"direct_add"`
	DisplayOrder int        `json:"display_order"`
	Subteams     []*Team    `json:"subteams,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MineTeamName is the pseudo team resolving to episodes the calling
// user has tagged personally.
const MineTeamName = "mine"
