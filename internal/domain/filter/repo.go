package filter

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("filter not found")

type Repository interface {
	// ListByUser returns the user's filters in creation order.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Filter, error)
	Get(ctx context.Context, id uuid.UUID) (*Filter, error)
	Create(ctx context.Context, f *Filter) error
	Update(ctx context.Context, f *Filter) error
	Delete(ctx context.Context, id uuid.UUID) error
}
