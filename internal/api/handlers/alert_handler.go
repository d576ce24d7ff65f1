package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careloop/postop-followup/backend/internal/domain/providers"
	"github.com/careloop/postop-followup/backend/internal/domain/repositories"
)

// AlertHandler serves the escalation queue and its live stream.
type AlertHandler struct {
	alerts   repositories.AlertRepository
	eventBus providers.EventBus
}

// NewAlertHandler creates a new alert handler. eventBus may be nil; the
// stream endpoint then reports unavailable while listing still works.
func NewAlertHandler(alerts repositories.AlertRepository, eventBus providers.EventBus) *AlertHandler {
	return &AlertHandler{alerts: alerts, eventBus: eventBus}
}

// ListAlerts handles GET /api/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.ListUnacknowledged(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// AcknowledgeAlert handles POST /api/alerts/{id}/acknowledge
func (h *AlertHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("id")
	if alertID == "" {
		respondWithError(w, http.StatusBadRequest, "alert ID is required")
		return
	}

	if err := h.alerts.Acknowledge(r.Context(), alertID); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

// StreamAlerts handles GET /api/alerts/stream, pushing new escalations to
// the dashboard as server-sent events.
func (h *AlertHandler) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	if h.eventBus == nil {
		respondWithError(w, http.StatusServiceUnavailable, "alert stream unavailable")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventChan, err := h.eventBus.Subscribe(r.Context(), providers.AlertsChannel)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to subscribe to alert channel")
		respondWithError(w, http.StatusServiceUnavailable, "alert stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sendEvent(w, "connected", map[string]interface{}{"timestamp": time.Now()})
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			sendEvent(w, "heartbeat", map[string]interface{}{"timestamp": time.Now()})
			flusher.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			sendEvent(w, "alert", event)
			flusher.Flush()
		}
	}
}

func sendEvent(w http.ResponseWriter, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal SSE payload")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
}
