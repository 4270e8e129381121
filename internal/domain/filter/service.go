package filter

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/caretrack/caretrack/internal/domain/extract"
)

// ErrMissingName rejects saves without a filter name.
var ErrMissingName = errors.New("filter name is required")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the caller's saved filters.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Filter, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get returns one filter. Another user's filter is indistinguishable
// from a missing one.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*Filter, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.UserID != userID {
		return nil, ErrNotFound
	}
	return f, nil
}

// Create saves a named criteria list for the caller.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, name string, criteria []extract.Criterion) (*Filter, error) {
	if name == "" {
		return nil, ErrMissingName
	}
	f := &Filter{
		ID:       uuid.New(),
		UserID:   userID,
		Name:     name,
		Criteria: criteria,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Update rewrites the caller's filter.
func (s *Service) Update(ctx context.Context, id, userID uuid.UUID, name string, criteria []extract.Criterion) (*Filter, error) {
	f, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ErrMissingName
	}
	f.Name = name
	f.Criteria = criteria
	if err := s.repo.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes the caller's filter.
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
