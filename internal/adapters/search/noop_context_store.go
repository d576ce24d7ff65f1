package search

import (
	"context"

	"github.com/careloop/postop-followup/backend/internal/domain/providers"
	apperrors "github.com/careloop/postop-followup/backend/pkg/errors"
)

// NoopContextStore is the degraded context store used when the search
// backend is unavailable. Retrieval yields no context; writes fail loudly.
type NoopContextStore struct{}

var _ providers.ContextStore = (*NoopContextStore)(nil)

// NewNoopContextStore creates a context store that holds nothing.
func NewNoopContextStore() *NoopContextStore {
	return &NoopContextStore{}
}

func (s *NoopContextStore) Retrieve(ctx context.Context, patientID, query string, topK int) []string {
	return []string{}
}

func (s *NoopContextStore) Store(ctx context.Context, patientID, text string, metadata map[string]string) (string, error) {
	return "", apperrors.NewExternalError("context store unavailable", nil)
}

func (s *NoopContextStore) DeleteAll(ctx context.Context, patientID string) error {
	return nil
}
