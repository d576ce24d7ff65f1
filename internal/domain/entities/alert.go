package entities

import "time"

// AlertTypeHighRisk marks alerts raised by the HIGH-risk pipeline branch.
const AlertTypeHighRisk = "high_risk"

// Alert is a durable escalation record awaiting clinical acknowledgement.
type Alert struct {
	ID             string     `json:"id" db:"id"`
	PatientID      string     `json:"patient_id" db:"patient_id"`
	DoctorID       *string    `json:"doctor_id,omitempty" db:"doctor_id"`
	AlertType      string     `json:"alert_type" db:"alert_type"`
	Reason         string     `json:"reason" db:"reason"`
	Acknowledged   bool       `json:"acknowledged" db:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// AlertWithPatient joins an alert with the patient name for dashboard listings.
type AlertWithPatient struct {
	Alert
	PatientName string `json:"patient_name" db:"patient_name"`
}

// AlertEvent is published on the event bus when a new alert is written, so
// dashboards learn about escalations without polling.
type AlertEvent struct {
	ID        string    `json:"id"`
	AlertID   string    `json:"alert_id"`
	PatientID string    `json:"patient_id"`
	AlertType string    `json:"alert_type"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
