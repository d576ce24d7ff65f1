package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/domain/providers"
	"github.com/careloop/postop-followup/backend/internal/domain/repositories"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/observability"
	apperrors "github.com/careloop/postop-followup/backend/pkg/errors"
)

// Result is the outcome of one follow-up pipeline run. Response is always
// populated, even when the run also returns an error.
type Result struct {
	Response           string             `json:"response"`
	Symptoms           []string           `json:"symptoms"`
	PainLevel          *int               `json:"pain_level"`
	Risk               entities.RiskLevel `json:"risk"`
	NeedsClarification bool               `json:"needs_clarification"`
	Escalated          bool               `json:"escalated"`
}

// FollowUpService runs the follow-up pipeline for one inbound patient
// message: retrieve context, extract a judgment, apply the clarification
// policy, compose the reply, escalate HIGH risk, append history.
//
// Runs are serialized per patient and concurrent across patients.
type FollowUpService struct {
	patients      repositories.PatientRepository
	conversations repositories.ConversationRepository
	contextStore  providers.ContextStore
	extraction    *ExtractionService
	policy        *AssessmentPolicy
	composer      *ResponseComposer
	escalation    *EscalationService
	threads       *ThreadStore
	metrics       *observability.Metrics
	topK          int
	modelTimeout  time.Duration
}

// NewFollowUpService wires the pipeline together.
func NewFollowUpService(
	patients repositories.PatientRepository,
	conversations repositories.ConversationRepository,
	contextStore providers.ContextStore,
	extraction *ExtractionService,
	policy *AssessmentPolicy,
	composer *ResponseComposer,
	escalation *EscalationService,
	threads *ThreadStore,
	metrics *observability.Metrics,
	topK int,
	modelTimeout time.Duration,
) *FollowUpService {
	return &FollowUpService{
		patients:      patients,
		conversations: conversations,
		contextStore:  contextStore,
		extraction:    extraction,
		policy:        policy,
		composer:      composer,
		escalation:    escalation,
		threads:       threads,
		metrics:       metrics,
		topK:          topK,
		modelTimeout:  modelTimeout,
	}
}

// Run processes one patient message and returns the reply. On an
// escalation-write failure the Result is still fully populated (the urgent
// reply stands) and the error reports the unrecorded alert; callers must
// not discard it silently.
func (s *FollowUpService) Run(ctx context.Context, patientID, message, channel string) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "followup.run")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("patient.id", patientID))

	start := time.Now()

	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	unlock := s.threads.Acquire(patient.ID)
	defer unlock()

	// First contact since startup: rebuild the thread from the durable log
	// so the composer sees history from before the last restart.
	if !s.threads.Seeded(patient.ID) {
		exchanges, err := s.loadExchanges(ctx, patient.ID)
		if err != nil {
			log.Warn().Err(err).Str("patient_id", patient.ID).Msg("Failed to rebuild thread from log, starting empty")
			exchanges = nil
		}
		s.threads.Seed(patient.ID, exchanges)
	}

	if s.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.modelTimeout)
		defer cancel()
	}

	contextSnippets := s.contextStore.Retrieve(ctx, patient.ID, message, s.topK)

	judgment := s.extraction.Extract(ctx, message, contextSnippets)
	needsClarification := s.policy.NeedsClarification(message, judgment)

	response, genErr := s.composer.Compose(ctx, message, judgment, needsClarification, contextSnippets, s.threads.History(patient.ID))

	var escalated bool
	var escErr error
	if judgment.Risk == entities.RiskHigh {
		escErr = s.escalation.Escalate(ctx, patient, message)
		escalated = escErr == nil
		if escErr != nil {
			escErr = apperrors.NewExternalError("escalation alert was not recorded", escErr)
		}
	}

	s.threads.Append(patient.ID, entities.Exchange{Patient: message, Agent: response})

	conversation := &entities.Conversation{
		PatientID:      patient.ID,
		DoctorID:       patient.PrimaryDoctorID,
		Channel:        channel,
		PatientMessage: message,
		AgentResponse:  response,
		ExtractedSignals: entities.ExtractedSignals{
			Symptoms:  judgment.Symptoms,
			PainLevel: judgment.PainLevel,
		},
		RiskLevel: judgment.Risk,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		// The reply still goes out; the durable log is behind by one row.
		log.Error().Err(err).Str("patient_id", patient.ID).Msg("Failed to persist conversation")
	}

	result := &Result{
		Response:           response,
		Symptoms:           judgment.Symptoms,
		PainLevel:          judgment.PainLevel,
		Risk:               judgment.Risk,
		NeedsClarification: needsClarification,
		Escalated:          escalated,
	}

	s.recordRun(ctx, result, time.Since(start))

	if escErr != nil {
		observability.RecordError(span, escErr)
		return result, escErr
	}
	if genErr != nil {
		log.Warn().Err(genErr).Str("patient_id", patient.ID).Msg("Pipeline completed with fallback response")
	}
	return result, nil
}

// SeedThread rebuilds the in-memory thread from the durable conversation
// log, keeping the newest exchanges.
func (s *FollowUpService) SeedThread(ctx context.Context, patientID string) error {
	exchanges, err := s.loadExchanges(ctx, patientID)
	if err != nil {
		return err
	}

	unlock := s.threads.Acquire(patientID)
	defer unlock()
	s.threads.Seed(patientID, exchanges)
	return nil
}

func (s *FollowUpService) loadExchanges(ctx context.Context, patientID string) ([]entities.Exchange, error) {
	conversations, err := s.conversations.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	exchanges := make([]entities.Exchange, 0, len(conversations))
	for _, conv := range conversations {
		exchanges = append(exchanges, entities.Exchange{
			Patient: conv.PatientMessage,
			Agent:   conv.AgentResponse,
		})
	}
	return exchanges, nil
}

func (s *FollowUpService) recordRun(ctx context.Context, result *Result, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("risk", string(result.Risk)),
		attribute.Bool("clarification", result.NeedsClarification),
	)
	s.metrics.PipelineCount.Add(ctx, 1, attrs)
	s.metrics.PipelineDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if result.Risk == entities.RiskHigh {
		if result.Escalated {
			s.metrics.EscalationCount.Add(ctx, 1)
		} else {
			s.metrics.EscalationFailure.Add(ctx, 1)
		}
	}
}
