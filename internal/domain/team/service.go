package team

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// VisibleTeams returns the active team tree: root teams with subteams
// nested, both in display order. Restricted teams and their subteams
// are dropped unless includeRestricted is set.
func (s *Service) VisibleTeams(ctx context.Context, includeRestricted bool) ([]*Team, error) {
	flat, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]*Team, 0, len(flat))
	byID := make(map[uuid.UUID]*Team, len(flat))
	for _, t := range flat {
		if t.Restricted && !includeRestricted {
			continue
		}
		t.Subteams = nil
		byID[t.ID] = t
		visible = append(visible, t)
	}

	var roots []*Team
	for _, t := range visible {
		if t.ParentID == nil {
			roots = append(roots, t)
			continue
		}
		// A subteam whose parent is restricted or inactive stays hidden.
		if parent, ok := byID[*t.ParentID]; ok {
			parent.Subteams = append(parent.Subteams, t)
		}
	}
	return roots, nil
}

// Get returns one team by name.
func (s *Service) Get(ctx context.Context, name string) (*Team, error) {
	return s.repo.GetByName(ctx, name)
}
