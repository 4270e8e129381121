package team

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("team not found")

type Repository interface {
	// List returns all active teams as a flat slice ordered by
	// display_order then name.
	List(ctx context.Context) ([]*Team, error)
	// GetByName returns one team by its slug name.
	GetByName(ctx context.Context, name string) (*Team, error)
}
