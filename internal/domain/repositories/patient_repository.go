package repositories

import (
	"context"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
)

// PatientRepository defines the interface for patient persistence.
type PatientRepository interface {
	Create(ctx context.Context, patient *entities.Patient) error
	GetByID(ctx context.Context, id string) (*entities.Patient, error)
	// GetActiveByPhone resolves an inbound channel identity to an enrolled
	// patient. Inactive patients are treated as unknown.
	GetActiveByPhone(ctx context.Context, phone string) (*entities.Patient, error)
	List(ctx context.Context) ([]*entities.Patient, error)
}

// DoctorRepository defines the interface for doctor persistence.
type DoctorRepository interface {
	Create(ctx context.Context, doctor *entities.Doctor) error
	GetByID(ctx context.Context, id string) (*entities.Doctor, error)
}

// HospitalRepository defines the interface for hospital persistence.
type HospitalRepository interface {
	Create(ctx context.Context, hospital *entities.Hospital) error
}
