package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("patient not found")

type Repository interface {
	Create(ctx context.Context) (*Patient, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// FindByHospitalNumber returns the patient whose demographics carry
	// the given hospital number, matched case-insensitively.
	FindByHospitalNumber(ctx context.Context, hospitalNumber string) (*Patient, error)
	// SearchByHospitalNumber matches the hospital number exactly
	// (ignoring case), ordered by date of birth.
	SearchByHospitalNumber(ctx context.Context, hospitalNumber string) ([]*Patient, error)
	// SearchByName matches a substring of the demographics name
	// (ignoring case), ordered by date of birth.
	SearchByName(ctx context.Context, name string) ([]*Patient, error)
}
