package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/domain/providers"
	"github.com/careloop/postop-followup/backend/internal/domain/repositories"
	"github.com/careloop/postop-followup/backend/pkg/retry"
)

// EscalationService raises a clinical alert for a HIGH-risk message. The
// alert insert is the durable step and is retried; the event-bus publish is
// best effort, since dashboards can still poll the alerts table.
type EscalationService struct {
	alerts repositories.AlertRepository
	bus    providers.EventBus
}

// NewEscalationService creates a new escalation service. bus may be nil
// when Redis is unavailable; escalations still persist.
func NewEscalationService(alerts repositories.AlertRepository, bus providers.EventBus) *EscalationService {
	return &EscalationService{alerts: alerts, bus: bus}
}

// Escalate writes an alert carrying the patient's verbatim message as the
// reason. A returned error means the alert is NOT durably recorded and the
// caller must surface the failure.
func (s *EscalationService) Escalate(ctx context.Context, patient *entities.Patient, message string) error {
	alert := &entities.Alert{
		ID:        uuid.NewString(),
		PatientID: patient.ID,
		DoctorID:  patient.PrimaryDoctorID,
		AlertType: entities.AlertTypeHighRisk,
		Reason:    message,
		CreatedAt: time.Now().UTC(),
	}

	err := retry.DoWithLog(ctx, retry.WriteConfig(), "alert write",
		func() error {
			return s.alerts.Create(ctx, alert)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Int("attempt", attempt).Err(err).Dur("next_delay", nextDelay).
				Str("patient_id", patient.ID).Msg("Alert write failed, retrying")
		},
	)
	if err != nil {
		return err
	}

	log.Info().Str("alert_id", alert.ID).Str("patient_id", patient.ID).Msg("Escalation alert recorded")

	if s.bus != nil {
		event := &entities.AlertEvent{
			ID:        uuid.NewString(),
			AlertID:   alert.ID,
			PatientID: alert.PatientID,
			AlertType: alert.AlertType,
			Reason:    alert.Reason,
			CreatedAt: alert.CreatedAt,
		}
		if err := s.bus.Publish(ctx, providers.AlertsChannel, event); err != nil {
			log.Warn().Err(err).Str("alert_id", alert.ID).Msg("Failed to publish alert event")
		}
	}

	return nil
}
