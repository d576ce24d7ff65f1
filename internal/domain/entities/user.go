package entities

import "time"

// Role controls which API surfaces a user may reach.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// User is a dashboard login, linked to the patient or doctor it acts for.
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	PatientID    *string   `json:"patient_id,omitempty" db:"patient_id"`
	DoctorID     *string   `json:"doctor_id,omitempty" db:"doctor_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
