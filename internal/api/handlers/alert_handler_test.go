package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	apperrors "github.com/careloop/postop-followup/backend/pkg/errors"
)

type listingAlertRepo struct {
	stubAlertRepo
	open         []*entities.AlertWithPatient
	acknowledged []string
}

func (r *listingAlertRepo) ListUnacknowledged(ctx context.Context) ([]*entities.AlertWithPatient, error) {
	return r.open, nil
}

func (r *listingAlertRepo) Acknowledge(ctx context.Context, id string) error {
	for _, alert := range r.open {
		if alert.ID == id {
			r.acknowledged = append(r.acknowledged, id)
			return nil
		}
	}
	return apperrors.NewNotFoundError("alert not found")
}

type channelEventBus struct {
	events chan *entities.AlertEvent
}

func (b *channelEventBus) Publish(ctx context.Context, channel string, event *entities.AlertEvent) error {
	b.events <- event
	return nil
}

func (b *channelEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AlertEvent, error) {
	return b.events, nil
}

func (b *channelEventBus) Close() error { return nil }

func TestListAlerts(t *testing.T) {
	repo := &listingAlertRepo{open: []*entities.AlertWithPatient{
		{
			Alert:       entities.Alert{ID: "a1", PatientID: "p1", AlertType: entities.AlertTypeHighRisk, Reason: "fever and chills"},
			PatientName: "Ada",
		},
	}}
	handler := NewAlertHandler(repo, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	rec := httptest.NewRecorder()
	handler.ListAlerts(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"patient_name":"Ada"`)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestAcknowledgeAlert(t *testing.T) {
	repo := &listingAlertRepo{open: []*entities.AlertWithPatient{
		{Alert: entities.Alert{ID: "a1"}},
	}}
	handler := NewAlertHandler(repo, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/alerts/{id}/acknowledge", handler.AcknowledgeAlert)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/a1/acknowledge", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a1"}, repo.acknowledged)
}

func TestAcknowledgeUnknownAlert(t *testing.T) {
	handler := NewAlertHandler(&listingAlertRepo{}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/alerts/{id}/acknowledge", handler.AcknowledgeAlert)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/missing/acknowledge", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamAlertsDeliversEvents(t *testing.T) {
	bus := &channelEventBus{events: make(chan *entities.AlertEvent, 1)}
	handler := NewAlertHandler(&listingAlertRepo{}, bus)

	server := httptest.NewServer(http.HandlerFunc(handler.StreamAlerts))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	bus.events <- &entities.AlertEvent{ID: "e1", AlertID: "a1", PatientID: "p1", Reason: "fever"}

	buf := make([]byte, 4096)
	var received strings.Builder
	for !strings.Contains(received.String(), "event: alert") {
		n, err := resp.Body.Read(buf)
		require.NoError(t, err)
		received.Write(buf[:n])
	}

	assert.Contains(t, received.String(), "event: connected")
	assert.Contains(t, received.String(), `"alert_id":"a1"`)
}

func TestStreamAlertsWithoutBus(t *testing.T) {
	handler := NewAlertHandler(&listingAlertRepo{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/stream", nil)
	rec := httptest.NewRecorder()
	handler.StreamAlerts(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
