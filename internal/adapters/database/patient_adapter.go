package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/domain/repositories"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/careloop/postop-followup/backend/pkg/errors"
)

// PatientAdapter implements patient persistence in Postgres.
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter.
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a patient record.
func (a *PatientAdapter) Create(ctx context.Context, patient *entities.Patient) error {
	if patient == nil {
		return apperrors.NewInternalError("patient is nil", fmt.Errorf("patient is nil"))
	}
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	record := goqu.Record{
		"id":                patient.ID,
		"phone":             patient.Phone,
		"name":              patient.Name,
		"date_of_birth":     patient.DateOfBirth,
		"surgery_date":      patient.SurgeryDate,
		"surgery_type":      sql.NullString{String: patient.SurgeryType, Valid: patient.SurgeryType != ""},
		"hospital_id":       patient.HospitalID,
		"primary_doctor_id": patient.PrimaryDoctorID,
		"is_active":         patient.IsActive,
		"created_at":        patient.CreatedAt,
		"updated_at":        patient.UpdatedAt,
	}

	query, args, err := a.db.Insert("patients").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build patient insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create patient", err)
	}

	return nil
}

// GetByID fetches a patient by id.
func (a *PatientAdapter) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	query, args, err := a.db.From("patients").
		Select(patientColumns()...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build patient query", err)
	}

	patient, err := a.scanPatient(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("patient not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}
	return patient, nil
}

// GetActiveByPhone resolves an inbound channel identity to an enrolled
// patient. Inactive patients are treated as not found.
func (a *PatientAdapter) GetActiveByPhone(ctx context.Context, phone string) (*entities.Patient, error) {
	query, args, err := a.db.From("patients").
		Select(patientColumns()...).
		Where(goqu.Ex{"phone": phone, "is_active": true}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build patient query", err)
	}

	patient, err := a.scanPatient(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("patient not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}
	return patient, nil
}

// List returns all patients, newest enrollment first.
func (a *PatientAdapter) List(ctx context.Context) ([]*entities.Patient, error) {
	query, args, err := a.db.From("patients").
		Select(patientColumns()...).
		Order(goqu.I("created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build patient list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list patients", err)
	}
	defer rows.Close()

	patients := []*entities.Patient{}
	for rows.Next() {
		patient, err := a.scanPatient(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient", err)
		}
		patients = append(patients, patient)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate patients", err)
	}

	return patients, nil
}

func patientColumns() []interface{} {
	return []interface{}{
		"id", "phone", "name", "date_of_birth", "surgery_date", "surgery_type",
		"hospital_id", "primary_doctor_id", "is_active", "created_at", "updated_at",
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (a *PatientAdapter) scanPatient(row rowScanner) (*entities.Patient, error) {
	var patient entities.Patient
	var surgeryType sql.NullString
	err := row.Scan(
		&patient.ID,
		&patient.Phone,
		&patient.Name,
		&patient.DateOfBirth,
		&patient.SurgeryDate,
		&surgeryType,
		&patient.HospitalID,
		&patient.PrimaryDoctorID,
		&patient.IsActive,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	patient.SurgeryType = surgeryType.String
	return &patient, nil
}

// DoctorAdapter implements doctor persistence in Postgres.
type DoctorAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDoctorAdapter creates a new doctor adapter.
func NewDoctorAdapter(client *postgres.Client) repositories.DoctorRepository {
	return &DoctorAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a doctor record.
func (a *DoctorAdapter) Create(ctx context.Context, doctor *entities.Doctor) error {
	if doctor == nil {
		return apperrors.NewInternalError("doctor is nil", fmt.Errorf("doctor is nil"))
	}
	if doctor.ID == "" {
		doctor.ID = uuid.NewString()
	}

	record := goqu.Record{
		"id":          doctor.ID,
		"name":        doctor.Name,
		"phone":       sql.NullString{String: doctor.Phone, Valid: doctor.Phone != ""},
		"email":       sql.NullString{String: doctor.Email, Valid: doctor.Email != ""},
		"specialty":   sql.NullString{String: doctor.Specialty, Valid: doctor.Specialty != ""},
		"hospital_id": doctor.HospitalID,
	}

	query, args, err := a.db.Insert("doctors").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build doctor insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create doctor", err)
	}

	return nil
}

// GetByID fetches a doctor by id.
func (a *DoctorAdapter) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	query, args, err := a.db.From("doctors").
		Select("id", "name", "phone", "email", "specialty", "hospital_id").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build doctor query", err)
	}

	var doctor entities.Doctor
	var phone, email, specialty sql.NullString
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&doctor.ID, &doctor.Name, &phone, &email, &specialty, &doctor.HospitalID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("doctor not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get doctor", err)
	}
	doctor.Phone = phone.String
	doctor.Email = email.String
	doctor.Specialty = specialty.String
	return &doctor, nil
}

// HospitalAdapter implements hospital persistence in Postgres.
type HospitalAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewHospitalAdapter creates a new hospital adapter.
func NewHospitalAdapter(client *postgres.Client) repositories.HospitalRepository {
	return &HospitalAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a hospital record.
func (a *HospitalAdapter) Create(ctx context.Context, hospital *entities.Hospital) error {
	if hospital == nil {
		return apperrors.NewInternalError("hospital is nil", fmt.Errorf("hospital is nil"))
	}
	if hospital.ID == "" {
		hospital.ID = uuid.NewString()
	}

	record := goqu.Record{
		"id":      hospital.ID,
		"name":    hospital.Name,
		"address": sql.NullString{String: hospital.Address, Valid: hospital.Address != ""},
		"phone":   sql.NullString{String: hospital.Phone, Valid: hospital.Phone != ""},
	}

	query, args, err := a.db.Insert("hospitals").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build hospital insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create hospital", err)
	}

	return nil
}
