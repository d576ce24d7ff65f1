package providers

import (
	"context"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
)

// AlertsChannel carries every newly created alert to subscribed dashboards.
const AlertsChannel = "alerts"

// EventBus fans alert events out to interested subscribers.
type EventBus interface {
	Publish(ctx context.Context, channel string, event *entities.AlertEvent) error
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AlertEvent, error)
	Close() error
}
