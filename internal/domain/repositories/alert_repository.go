package repositories

import (
	"context"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
)

// AlertRepository persists clinical escalation records.
//
// Create must be a fire-and-confirm durable write: duplicate alerts from a
// retried call are acceptable, lost alerts are not.
type AlertRepository interface {
	Create(ctx context.Context, alert *entities.Alert) error
	ListUnacknowledged(ctx context.Context) ([]*entities.AlertWithPatient, error)
	Acknowledge(ctx context.Context, id string) error
}
