package episode

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("episode not found")
	// ErrConsistency is returned when an update carries a stale
	// consistency token. Handlers map it to 409.
	ErrConsistency = errors.New("episode has changed")
)

type Repository interface {
	Create(ctx context.Context, e *Episode) error
	Get(ctx context.Context, id uuid.UUID) (*Episode, error)
	Update(ctx context.Context, e *Episode) error

	// ListActive returns every active episode in admission order.
	ListActive(ctx context.Context) ([]*Episode, error)
	// ListActiveByTag returns the active episodes currently tagged to
	// the named team.
	ListActiveByTag(ctx context.Context, teamName string) ([]*Episode, error)
	// ListActiveMine returns the active episodes on the user's
	// personal list.
	ListActiveMine(ctx context.Context, userID uuid.UUID) ([]*Episode, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Episode, error)
	// ActiveForPatient returns the patient's active episode, or
	// ErrNotFound when there is none.
	ActiveForPatient(ctx context.Context, patientID uuid.UUID) (*Episode, error)
	// IDsForPatients expands patient ids to the ids of every episode
	// they own, active or not.
	IDsForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]uuid.UUID, error)
	// EverTagged returns the ids of episodes that have ever carried
	// the named team tag, archived taggings included.
	EverTagged(ctx context.Context, teamName string) ([]uuid.UUID, error)

	// Taggings returns the episode's current (non-archived) taggings
	// with team names and restriction flags attached.
	Taggings(ctx context.Context, episodeID uuid.UUID) ([]*Tagging, error)
	AddTagging(ctx context.Context, t *Tagging) error
	ArchiveTagging(ctx context.Context, id uuid.UUID) error
}
