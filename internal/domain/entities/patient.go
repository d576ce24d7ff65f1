package entities

import "time"

// Patient is a post-surgical patient enrolled in follow-up messaging.
type Patient struct {
	ID              string     `json:"id" db:"id"`
	Phone           string     `json:"phone" db:"phone"`
	Name            string     `json:"name" db:"name"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	SurgeryDate     *time.Time `json:"surgery_date,omitempty" db:"surgery_date"`
	SurgeryType     string     `json:"surgery_type" db:"surgery_type"`
	HospitalID      *string    `json:"hospital_id,omitempty" db:"hospital_id"`
	PrimaryDoctorID *string    `json:"primary_doctor_id,omitempty" db:"primary_doctor_id"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Doctor is a clinician who receives escalations for their patients.
type Doctor struct {
	ID         string  `json:"id" db:"id"`
	Name       string  `json:"name" db:"name"`
	Phone      string  `json:"phone" db:"phone"`
	Email      string  `json:"email" db:"email"`
	Specialty  string  `json:"specialty" db:"specialty"`
	HospitalID *string `json:"hospital_id,omitempty" db:"hospital_id"`
}

// Hospital groups doctors and patients under one care organization.
type Hospital struct {
	ID      string `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Address string `json:"address" db:"address"`
	Phone   string `json:"phone" db:"phone"`
}
