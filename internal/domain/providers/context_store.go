package providers

import "context"

// ContextStore holds short per-patient text records ranked by semantic
// similarity. Retrieval is strictly scoped to one patient identity;
// returning another patient's records is a contract violation.
//
// Retrieve fails closed: when the embedding step or the index is
// unavailable it returns an empty slice rather than an error, so the
// pipeline always completes with zero context.
type ContextStore interface {
	Retrieve(ctx context.Context, patientID, query string, topK int) []string
	Store(ctx context.Context, patientID, text string, metadata map[string]string) (string, error)
	DeleteAll(ctx context.Context, patientID string) error
}
