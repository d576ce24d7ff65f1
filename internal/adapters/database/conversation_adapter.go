package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/domain/repositories"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/careloop/postop-followup/backend/pkg/errors"
)

// ConversationAdapter implements the conversation log in Postgres. The
// extracted signals travel as a JSONB blob so the schema does not chase
// every new symptom field.
type ConversationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewConversationAdapter creates a new conversation adapter.
func NewConversationAdapter(client *postgres.Client) repositories.ConversationRepository {
	return &ConversationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create appends one message/response pair to the log.
func (a *ConversationAdapter) Create(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return apperrors.NewInternalError("conversation is nil", fmt.Errorf("conversation is nil"))
	}
	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}
	if conversation.ExtractedSignals.Symptoms == nil {
		conversation.ExtractedSignals.Symptoms = []string{}
	}

	signals, err := json.Marshal(conversation.ExtractedSignals)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal extracted signals", err)
	}

	record := goqu.Record{
		"id":                 conversation.ID,
		"patient_id":         conversation.PatientID,
		"doctor_id":          conversation.DoctorID,
		"channel":            conversation.Channel,
		"patient_message":    conversation.PatientMessage,
		"agent_response":     conversation.AgentResponse,
		"extracted_symptoms": string(signals),
		"risk_level":         string(conversation.RiskLevel),
		"created_at":         conversation.CreatedAt,
	}

	query, args, err := a.db.Insert("conversations").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build conversation insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create conversation", err)
	}

	return nil
}

// ListByPatient returns a patient's conversation history, oldest first.
func (a *ConversationAdapter) ListByPatient(ctx context.Context, patientID string) ([]*entities.Conversation, error) {
	query, args, err := a.db.From("conversations").
		Select("id", "patient_id", "doctor_id", "channel", "patient_message",
			"agent_response", "extracted_symptoms", "risk_level", "created_at").
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build conversation list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list conversations", err)
	}
	defer rows.Close()

	conversations := []*entities.Conversation{}
	for rows.Next() {
		var conv entities.Conversation
		var signals []byte
		var risk string
		err := rows.Scan(
			&conv.ID, &conv.PatientID, &conv.DoctorID, &conv.Channel,
			&conv.PatientMessage, &conv.AgentResponse, &signals, &risk, &conv.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan conversation", err)
		}
		if len(signals) > 0 {
			if err := json.Unmarshal(signals, &conv.ExtractedSignals); err != nil {
				return nil, apperrors.NewInternalError("failed to unmarshal extracted signals", err)
			}
		}
		conv.RiskLevel = entities.RiskLevel(risk)
		conversations = append(conversations, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate conversations", err)
	}

	return conversations, nil
}

// PainTrend reads the daily pain series out of the JSONB signals column,
// keeping the last reported level per day, oldest day first.
func (a *ConversationAdapter) PainTrend(ctx context.Context, patientID string) ([]entities.PainPoint, error) {
	query, args, err := a.db.From("conversations").
		Select(
			goqu.L("to_char(created_at, 'YYYY-MM-DD')").As("day"),
			goqu.L("extracted_symptoms->>'pain'").As("pain"),
		).
		Where(
			goqu.Ex{"patient_id": patientID},
			goqu.L("extracted_symptoms->>'pain' IS NOT NULL"),
		).
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build pain trend query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query pain trend", err)
	}
	defer rows.Close()

	points := []entities.PainPoint{}
	for rows.Next() {
		var day, pain string
		if err := rows.Scan(&day, &pain); err != nil {
			return nil, apperrors.NewInternalError("failed to scan pain trend row", err)
		}
		level, err := strconv.Atoi(pain)
		if err != nil {
			continue
		}
		if n := len(points); n > 0 && points[n-1].Date == day {
			points[n-1].Pain = level
			continue
		}
		points = append(points, entities.PainPoint{Date: day, Pain: level})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate pain trend", err)
	}

	return points, nil
}
