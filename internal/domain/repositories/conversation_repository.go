package repositories

import (
	"context"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
)

// ConversationRepository is the durable log of every pipeline invocation.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *entities.Conversation) error
	ListByPatient(ctx context.Context, patientID string) ([]*entities.Conversation, error)
	// PainTrend returns the daily pain series recorded for a patient,
	// oldest day first, skipping days with no reported pain level.
	PainTrend(ctx context.Context, patientID string) ([]entities.PainPoint, error)
}
