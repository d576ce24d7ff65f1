package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	apperrors "github.com/careloop/postop-followup/backend/pkg/errors"
)

type fakePatientRepo struct {
	patients map[string]*entities.Patient
}

func (f *fakePatientRepo) Create(ctx context.Context, p *entities.Patient) error { return nil }

func (f *fakePatientRepo) GetByID(ctx context.Context, id string) (*entities.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("patient not found")
	}
	return p, nil
}

func (f *fakePatientRepo) GetActiveByPhone(ctx context.Context, phone string) (*entities.Patient, error) {
	return nil, apperrors.NewNotFoundError("patient not found")
}

func (f *fakePatientRepo) List(ctx context.Context) ([]*entities.Patient, error) { return nil, nil }

type fakeConversationRepo struct {
	mu   sync.Mutex
	rows []*entities.Conversation
	err  error
}

func (f *fakeConversationRepo) Create(ctx context.Context, c *entities.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, c)
	return nil
}

func (f *fakeConversationRepo) ListByPatient(ctx context.Context, patientID string) ([]*entities.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*entities.Conversation{}
	for _, row := range f.rows {
		if row.PatientID == patientID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeConversationRepo) PainTrend(ctx context.Context, patientID string) ([]entities.PainPoint, error) {
	return nil, nil
}

type fakeContextStore struct {
	snippets map[string][]string
	stored   []string
}

func (f *fakeContextStore) Retrieve(ctx context.Context, patientID, query string, topK int) []string {
	return f.snippets[patientID]
}

func (f *fakeContextStore) Store(ctx context.Context, patientID, text string, metadata map[string]string) (string, error) {
	f.stored = append(f.stored, text)
	return patientID + "_id", nil
}

func (f *fakeContextStore) DeleteAll(ctx context.Context, patientID string) error { return nil }

// scriptedModel answers the extraction prompt with outputs[0], then each
// composition prompt with the following entries.
type scriptedModel struct {
	mu      sync.Mutex
	outputs []string
	errs    []error
	prompts []string
}

func (m *scriptedModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	i := len(m.prompts) - 1
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	var out string
	if i < len(m.outputs) {
		out = m.outputs[i]
	}
	return out, err
}

func (m *scriptedModel) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1}, nil
}

type pipelineFixture struct {
	svc           *FollowUpService
	patients      *fakePatientRepo
	conversations *fakeConversationRepo
	contextStore  *fakeContextStore
	alerts        *fakeAlertRepo
	bus           *fakeEventBus
	model         *scriptedModel
}

func newPipelineFixture(model *scriptedModel) *pipelineFixture {
	doctorID := "doc-1"
	patients := &fakePatientRepo{patients: map[string]*entities.Patient{
		"p1": {ID: "p1", Name: "Ada", Phone: "+15550001", PrimaryDoctorID: &doctorID, IsActive: true},
		"p2": {ID: "p2", Name: "Grace", Phone: "+15550002", IsActive: true},
	}}
	conversations := &fakeConversationRepo{}
	contextStore := &fakeContextStore{snippets: map[string][]string{}}
	alerts := &fakeAlertRepo{}
	bus := &fakeEventBus{}

	svc := NewFollowUpService(
		patients,
		conversations,
		contextStore,
		NewExtractionService(model),
		NewAssessmentPolicy(),
		NewResponseComposer(model),
		NewEscalationService(alerts, bus),
		NewThreadStore(),
		nil,
		5,
		10*time.Second,
	)

	return &pipelineFixture{
		svc:           svc,
		patients:      patients,
		conversations: conversations,
		contextStore:  contextStore,
		alerts:        alerts,
		bus:           bus,
		model:         model,
	}
}

func TestRunLowRiskGeneratesReplyAndLogsConversation(t *testing.T) {
	model := &scriptedModel{outputs: []string{
		`{"symptoms": [], "pain_level": 2, "risk": "LOW"}`,
		"Glad to hear it. Keep resting and stay hydrated.",
	}}
	fx := newPipelineFixture(model)

	result, err := fx.svc.Run(context.Background(), "p1", "Feeling much better, pain is only 2", "whatsapp")

	require.NoError(t, err)
	assert.Equal(t, "Glad to hear it. Keep resting and stay hydrated.", result.Response)
	assert.Equal(t, entities.RiskLow, result.Risk)
	require.NotNil(t, result.PainLevel)
	assert.Equal(t, 2, *result.PainLevel)
	assert.False(t, result.NeedsClarification)
	assert.False(t, result.Escalated)
	assert.Empty(t, fx.alerts.alerts)

	require.Len(t, fx.conversations.rows, 1)
	row := fx.conversations.rows[0]
	assert.Equal(t, "p1", row.PatientID)
	assert.Equal(t, "whatsapp", row.Channel)
	assert.Equal(t, entities.RiskLow, row.RiskLevel)
	require.NotNil(t, row.ExtractedSignals.PainLevel)
	assert.Equal(t, 2, *row.ExtractedSignals.PainLevel)
}

func TestRunHighRiskEscalatesWithFixedResponse(t *testing.T) {
	model := &scriptedModel{outputs: []string{
		`{"symptoms": ["fever", "wound discharge"], "pain_level": 8, "risk": "HIGH"}`,
	}}
	fx := newPipelineFixture(model)

	message := "I have a fever and the wound is leaking pus"
	result, err := fx.svc.Run(context.Background(), "p1", message, "whatsapp")

	require.NoError(t, err)
	assert.Equal(t, urgentResponse, result.Response)
	assert.True(t, result.Escalated)
	assert.False(t, result.NeedsClarification)

	require.Len(t, fx.alerts.alerts, 1)
	alert := fx.alerts.alerts[0]
	assert.Equal(t, entities.AlertTypeHighRisk, alert.AlertType)
	assert.Equal(t, message, alert.Reason, "alert reason is the verbatim patient message")
	require.NotNil(t, alert.DoctorID)
	assert.Equal(t, "doc-1", *alert.DoctorID)
	require.Len(t, fx.bus.published, 1)

	// Only the extraction prompt reached the model.
	assert.Len(t, model.prompts, 1)
}

func TestRunVagueMessageAsksClarification(t *testing.T) {
	model := &scriptedModel{outputs: []string{
		`{"symptoms": [], "pain_level": null, "risk": "LOW"}`,
	}}
	fx := newPipelineFixture(model)

	result, err := fx.svc.Run(context.Background(), "p1", "I'm not sure, maybe a little off", "api")

	require.NoError(t, err)
	assert.Equal(t, clarificationQuestion, result.Response)
	assert.True(t, result.NeedsClarification)
	assert.False(t, result.Escalated)
	assert.Len(t, model.prompts, 1)
}

func TestRunVagueButHighRiskNeverClarifies(t *testing.T) {
	model := &scriptedModel{outputs: []string{
		`{"symptoms": [], "pain_level": null, "risk": "HIGH"}`,
	}}
	fx := newPipelineFixture(model)

	result, err := fx.svc.Run(context.Background(), "p1", "not sure, but I can't breathe properly", "whatsapp")

	require.NoError(t, err)
	assert.Equal(t, urgentResponse, result.Response)
	assert.False(t, result.NeedsClarification)
	assert.True(t, result.Escalated)
	assert.Len(t, fx.alerts.alerts, 1)
}

func TestRunExtractionFailureStillReplies(t *testing.T) {
	model := &scriptedModel{
		outputs: []string{"", "Thanks for the update. Let me know how you feel tomorrow."},
		errs:    []error{fmt.Errorf("model overloaded"), nil},
	}
	fx := newPipelineFixture(model)

	result, err := fx.svc.Run(context.Background(), "p1", "day four after surgery, walking a bit", "whatsapp")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Response)
	assert.Equal(t, entities.RiskLow, result.Risk)
	assert.Nil(t, result.PainLevel)
	assert.Empty(t, result.Symptoms)
	assert.Empty(t, fx.alerts.alerts)
}

func TestRunGenerationFailureUsesFallback(t *testing.T) {
	model := &scriptedModel{
		outputs: []string{`{"symptoms": ["soreness"], "pain_level": 3, "risk": "LOW"}`, ""},
		errs:    []error{nil, fmt.Errorf("timeout")},
	}
	fx := newPipelineFixture(model)

	result, err := fx.svc.Run(context.Background(), "p1", "a bit sore today, pain 3", "whatsapp")

	require.NoError(t, err)
	assert.Equal(t, fallbackResponse, result.Response)
	require.Len(t, fx.conversations.rows, 1)
	assert.Equal(t, fallbackResponse, fx.conversations.rows[0].AgentResponse)
}

func TestRunEscalationWriteFailureSurfacesError(t *testing.T) {
	model := &scriptedModel{outputs: []string{
		`{"symptoms": ["chest pain"], "pain_level": 9, "risk": "HIGH"}`,
	}}
	fx := newPipelineFixture(model)
	fx.alerts.failures = 100

	result, err := fx.svc.Run(context.Background(), "p1", "crushing chest pain", "whatsapp")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	require.NotNil(t, result, "result must be populated even when escalation fails")
	assert.Equal(t, urgentResponse, result.Response)
	assert.False(t, result.Escalated)
}

func TestRunUnknownPatient(t *testing.T) {
	fx := newPipelineFixture(&scriptedModel{})

	result, err := fx.svc.Run(context.Background(), "ghost", "hello", "whatsapp")

	assert.Nil(t, result)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestRunThreadsHistoryIntoLaterPrompts(t *testing.T) {
	model := &scriptedModel{outputs: []string{
		`{"symptoms": [], "pain_level": 4, "risk": "LOW"}`,
		"Noted, a four is manageable. Keep icing it.",
		`{"symptoms": [], "pain_level": 3, "risk": "LOW"}`,
		"Down to three is good progress.",
	}}
	fx := newPipelineFixture(model)

	_, err := fx.svc.Run(context.Background(), "p1", "pain about 4 today", "whatsapp")
	require.NoError(t, err)
	_, err = fx.svc.Run(context.Background(), "p1", "pain is 3 now", "whatsapp")
	require.NoError(t, err)

	require.Len(t, model.prompts, 4)
	secondCompose := model.prompts[3]
	assert.Contains(t, secondCompose, "pain about 4 today")
	assert.Contains(t, secondCompose, "Noted, a four is manageable. Keep icing it.")
}

func TestRunPassesRetrievedContextToPrompts(t *testing.T) {
	model := &scriptedModel{outputs: []string{
		`{"symptoms": [], "pain_level": null, "risk": "LOW"}`,
		"You're five days out from a knee replacement; gentle walks are fine.",
	}}
	fx := newPipelineFixture(model)
	fx.contextStore.snippets["p1"] = []string{"knee replacement on 2026-08-24"}

	_, err := fx.svc.Run(context.Background(), "p1", "can I go for a walk?", "whatsapp")

	require.NoError(t, err)
	require.Len(t, model.prompts, 2)
	assert.Contains(t, model.prompts[0], "knee replacement on 2026-08-24")
	assert.Contains(t, model.prompts[1], "knee replacement on 2026-08-24")
}

func TestRunConcurrentPatientsDoNotInterleaveThreads(t *testing.T) {
	model := &scriptedModel{}
	// Enough scripted outputs for all runs: extraction then composition,
	// alternating, in whatever order goroutines land.
	for i := 0; i < 40; i++ {
		model.outputs = append(model.outputs, `{"symptoms": [], "pain_level": null, "risk": "LOW"}`)
	}
	fx := newPipelineFixture(model)

	var wg sync.WaitGroup
	for _, id := range []string{"p1", "p2"} {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(patientID string, n int) {
				defer wg.Done()
				_, err := fx.svc.Run(context.Background(), patientID, fmt.Sprintf("update %d", n), "whatsapp")
				assert.NoError(t, err)
			}(id, i)
		}
	}
	wg.Wait()

	rows, err := fx.conversations.ListByPatient(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	for _, row := range rows {
		assert.Equal(t, "p1", row.PatientID)
	}
}

func TestSeedThreadRebuildsHistoryFromLog(t *testing.T) {
	model := &scriptedModel{outputs: []string{
		`{"symptoms": [], "pain_level": null, "risk": "LOW"}`,
		"Welcome back. How is the incision looking today?",
	}}
	fx := newPipelineFixture(model)
	fx.conversations.rows = []*entities.Conversation{
		{PatientID: "p1", PatientMessage: "old message", AgentResponse: "old reply"},
	}

	require.NoError(t, fx.svc.SeedThread(context.Background(), "p1"))

	_, err := fx.svc.Run(context.Background(), "p1", "checking in again", "whatsapp")
	require.NoError(t, err)

	require.Len(t, model.prompts, 2)
	assert.Contains(t, model.prompts[1], "old message")
	assert.Contains(t, model.prompts[1], "old reply")
}

func TestRunSeedsThreadFromLogOnFirstContact(t *testing.T) {
	model := &scriptedModel{outputs: []string{
		`{"symptoms": [], "pain_level": null, "risk": "LOW"}`,
		"Glad the swelling is down since last week.",
	}}
	fx := newPipelineFixture(model)
	fx.conversations.rows = []*entities.Conversation{
		{PatientID: "p1", PatientMessage: "swelling last week", AgentResponse: "keep it elevated"},
	}

	_, err := fx.svc.Run(context.Background(), "p1", "swelling is down", "whatsapp")
	require.NoError(t, err)

	require.Len(t, model.prompts, 2)
	assert.Contains(t, model.prompts[1], "swelling last week")
	assert.Contains(t, model.prompts[1], "keep it elevated")
}
