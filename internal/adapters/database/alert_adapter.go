package database

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/domain/repositories"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/careloop/postop-followup/backend/pkg/errors"
)

// AlertAdapter implements escalation persistence in Postgres.
type AlertAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAlertAdapter creates a new alert adapter.
func NewAlertAdapter(client *postgres.Client) repositories.AlertRepository {
	return &AlertAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts an alert record.
func (a *AlertAdapter) Create(ctx context.Context, alert *entities.Alert) error {
	if alert == nil {
		return apperrors.NewInternalError("alert is nil", fmt.Errorf("alert is nil"))
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.AlertType == "" {
		alert.AlertType = entities.AlertTypeHighRisk
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	record := goqu.Record{
		"id":           alert.ID,
		"patient_id":   alert.PatientID,
		"doctor_id":    alert.DoctorID,
		"alert_type":   alert.AlertType,
		"reason":       alert.Reason,
		"acknowledged": alert.Acknowledged,
		"created_at":   alert.CreatedAt,
	}

	query, args, err := a.db.Insert("alerts").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build alert insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create alert", err)
	}

	return nil
}

// ListUnacknowledged returns open alerts joined with the patient name,
// newest first.
func (a *AlertAdapter) ListUnacknowledged(ctx context.Context) ([]*entities.AlertWithPatient, error) {
	query, args, err := a.db.From(goqu.T("alerts").As("a")).
		Join(goqu.T("patients").As("p"), goqu.On(goqu.Ex{"a.patient_id": goqu.I("p.id")})).
		Select(
			goqu.I("a.id"), goqu.I("a.patient_id"), goqu.I("a.doctor_id"),
			goqu.I("a.alert_type"), goqu.I("a.reason"), goqu.I("a.acknowledged"),
			goqu.I("a.acknowledged_at"), goqu.I("a.created_at"), goqu.I("p.name"),
		).
		Where(goqu.Ex{"a.acknowledged": false}).
		Order(goqu.I("a.created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build alert list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list alerts", err)
	}
	defer rows.Close()

	alerts := []*entities.AlertWithPatient{}
	for rows.Next() {
		var alert entities.AlertWithPatient
		err := rows.Scan(
			&alert.ID, &alert.PatientID, &alert.DoctorID,
			&alert.AlertType, &alert.Reason, &alert.Acknowledged,
			&alert.AcknowledgedAt, &alert.CreatedAt, &alert.PatientName,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan alert", err)
		}
		alerts = append(alerts, &alert)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate alerts", err)
	}

	return alerts, nil
}

// Acknowledge marks an alert as handled by clinical staff.
func (a *AlertAdapter) Acknowledge(ctx context.Context, id string) error {
	query, args, err := a.db.Update("alerts").
		Set(goqu.Record{
			"acknowledged":    true,
			"acknowledged_at": time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build alert update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to acknowledge alert", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read affected rows", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("alert not found")
	}

	return nil
}
