package entities

import "time"

// ExtractedSignals is the JSON blob persisted with every conversation row.
// It mirrors the judgment the pipeline derived from the patient message.
type ExtractedSignals struct {
	Symptoms  []string `json:"symptoms"`
	PainLevel *int     `json:"pain"`
}

// Conversation is one durable message-in/response-out record.
type Conversation struct {
	ID               string           `json:"id" db:"id"`
	PatientID        string           `json:"patient_id" db:"patient_id"`
	DoctorID         *string          `json:"doctor_id,omitempty" db:"doctor_id"`
	Channel          string           `json:"channel" db:"channel"`
	PatientMessage   string           `json:"patient_message" db:"patient_message"`
	AgentResponse    string           `json:"agent_response" db:"agent_response"`
	ExtractedSignals ExtractedSignals `json:"extracted_symptoms" db:"extracted_symptoms"`
	RiskLevel        RiskLevel        `json:"risk_level" db:"risk_level"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// PainPoint is a single day in a patient's pain trend series.
type PainPoint struct {
	Date string `json:"date"`
	Pain int    `json:"pain"`
}
