package lookup

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("lookup list not found")

type Repository interface {
	// Lists returns every lookup list without items.
	Lists(ctx context.Context) ([]*List, error)
	// GetByName returns one list with its items and synonyms attached.
	GetByName(ctx context.Context, name string) (*List, error)
	// Items returns the items of a list with synonyms attached.
	Items(ctx context.Context, listID uuid.UUID) ([]*Item, error)
	// CanonicalItem resolves value against item names and synonyms of
	// the named list, case-insensitively. The second return reports
	// whether a match was found.
	CanonicalItem(ctx context.Context, listName, value string) (Ref, bool, error)
}
