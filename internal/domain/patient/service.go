package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/caretrack/caretrack/internal/platform/auth"
	"github.com/caretrack/caretrack/internal/schema"
)

// ErrNoSearchTerms is returned when a search request carries neither a
// hospital number nor a name.
var ErrNoSearchTerms = errors.New("no search terms")

// SubrecordSerializer renders the subrecords owned by a patient or
// episode. Satisfied by the record service.
type SubrecordSerializer interface {
	SerializeFor(ctx context.Context, scope schema.Scope, ownerID uuid.UUID) (map[string]any, error)
}

// EpisodeSerializer renders a patient's episodes for a viewer.
// Satisfied by the episode service.
type EpisodeSerializer interface {
	SerializeForPatient(ctx context.Context, patientID uuid.UUID, viewer auth.User) ([]map[string]any, error)
}

type Service struct {
	repo     Repository
	records  SubrecordSerializer
	episodes EpisodeSerializer
}

func NewService(repo Repository, records SubrecordSerializer, episodes EpisodeSerializer) *Service {
	return &Service{repo: repo, records: records, episodes: episodes}
}

// Search finds patients by hospital number (exact, case-insensitive) or
// by name (substring). Hospital number wins when both are supplied.
// Results are serialized with demographics and episodes attached.
func (s *Service) Search(ctx context.Context, hospitalNumber, name string, viewer auth.User) ([]map[string]any, error) {
	var (
		patients []*Patient
		err      error
	)
	switch {
	case hospitalNumber != "":
		patients, err = s.repo.SearchByHospitalNumber(ctx, hospitalNumber)
	case name != "":
		patients, err = s.repo.SearchByName(ctx, name)
	default:
		return nil, ErrNoSearchTerms
	}
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0, len(patients))
	for _, p := range patients {
		serialized, err := s.serialize(ctx, p, viewer)
		if err != nil {
			return nil, err
		}
		results = append(results, serialized)
	}
	return results, nil
}

// Get returns one serialized patient.
func (s *Service) Get(ctx context.Context, id uuid.UUID, viewer auth.User) (map[string]any, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.serialize(ctx, p, viewer)
}

// GetOrCreate finds the patient carrying hospitalNumber, creating a
// bare patient row when none exists. The second return reports whether
// a new patient was created.
func (s *Service) GetOrCreate(ctx context.Context, hospitalNumber string) (*Patient, bool, error) {
	if hospitalNumber != "" {
		p, err := s.repo.FindByHospitalNumber(ctx, hospitalNumber)
		if err == nil {
			return p, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}
	p, err := s.repo.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (s *Service) serialize(ctx context.Context, p *Patient, viewer auth.User) (map[string]any, error) {
	out := map[string]any{"id": p.ID}

	subs, err := s.records.SerializeFor(ctx, schema.ScopePatient, p.ID)
	if err != nil {
		return nil, err
	}
	for k, v := range subs {
		out[k] = v
	}

	episodes, err := s.episodes.SerializeForPatient(ctx, p.ID, viewer)
	if err != nil {
		return nil, err
	}
	out["episodes"] = episodes
	return out, nil
}
