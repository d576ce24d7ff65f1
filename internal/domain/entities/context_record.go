package entities

import "time"

// ContextRecord is a short text snippet stored in the similarity index,
// always tagged with the patient it belongs to.
type ContextRecord struct {
	ID        string            `json:"id"`
	PatientID string            `json:"patient_id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
