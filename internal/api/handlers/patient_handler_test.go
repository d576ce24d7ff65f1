package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/postop-followup/backend/internal/api/middleware"
	"github.com/careloop/postop-followup/backend/internal/domain/entities"
)

type trendConversationRepo struct {
	stubConversationRepo
	trend []entities.PainPoint
}

func (r *trendConversationRepo) PainTrend(ctx context.Context, patientID string) ([]entities.PainPoint, error) {
	return r.trend, nil
}

func (r *trendConversationRepo) ListByPatient(ctx context.Context, patientID string) ([]*entities.Conversation, error) {
	out := []*entities.Conversation{}
	for _, row := range r.rows {
		if row.PatientID == patientID {
			out = append(out, row)
		}
	}
	return out, nil
}

func tokenFor(t *testing.T, role entities.Role, patientID string) string {
	t.Helper()
	user := &entities.User{ID: "u1", Role: role}
	if patientID != "" {
		user.PatientID = &patientID
	}
	token, err := middleware.GenerateToken("handler-test-secret", time.Hour, user)
	require.NoError(t, err)
	return token
}

func newPatientMux(handler *PatientHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/patients/{id}/conversations", handler.ListConversations)
	mux.HandleFunc("GET /api/patients/{id}/pain-trend", handler.PainTrend)
	return middleware.Auth("handler-test-secret")(mux)
}

func TestListConversationsPatientReadsOwnThread(t *testing.T) {
	conversations := &trendConversationRepo{}
	conversations.rows = []*entities.Conversation{
		{ID: "c1", PatientID: "p1", PatientMessage: "hi", AgentResponse: "hello"},
		{ID: "c2", PatientID: "p2", PatientMessage: "other", AgentResponse: "thread"},
	}
	handler := NewPatientHandler(&stubPatientRepo{}, conversations)
	mux := newPatientMux(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/patients/p1/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, entities.RolePatient, "p1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"c1"`)
	assert.NotContains(t, rec.Body.String(), `"c2"`)
}

func TestListConversationsPatientCannotReadOthers(t *testing.T) {
	handler := NewPatientHandler(&stubPatientRepo{}, &trendConversationRepo{})
	mux := newPatientMux(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/patients/p2/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, entities.RolePatient, "p1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListConversationsDoctorReadsAny(t *testing.T) {
	handler := NewPatientHandler(&stubPatientRepo{}, &trendConversationRepo{})
	mux := newPatientMux(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/patients/p2/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, entities.RoleDoctor, ""))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPainTrend(t *testing.T) {
	conversations := &trendConversationRepo{trend: []entities.PainPoint{
		{Date: "2026-08-25", Pain: 6},
		{Date: "2026-08-26", Pain: 4},
	}}
	handler := NewPatientHandler(&stubPatientRepo{}, conversations)
	mux := newPatientMux(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/patients/p1/pain-trend", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, entities.RolePatient, "p1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"2026-08-25"`)
	assert.Contains(t, rec.Body.String(), `"pain":6`)
}
