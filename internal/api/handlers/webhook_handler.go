package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/careloop/postop-followup/backend/internal/application/services"
	"github.com/careloop/postop-followup/backend/internal/domain/providers"
	"github.com/careloop/postop-followup/backend/internal/domain/repositories"
	apperrors "github.com/careloop/postop-followup/backend/pkg/errors"
)

// notRegisteredReply is sent to phone numbers with no active enrollment.
// The pipeline never runs for unknown senders.
const notRegisteredReply = "This number is not registered with our follow-up service. If you recently had surgery, please contact your hospital to get enrolled."

// dedupTTLSeconds is how long a processed WhatsApp message id is
// remembered; Cloud API redelivers within minutes, not days.
const dedupTTLSeconds = 24 * 60 * 60

// WebhookHandler receives WhatsApp Cloud API callbacks and feeds inbound
// patient messages into the follow-up pipeline.
type WebhookHandler struct {
	verifyToken string
	followUp    *services.FollowUpService
	patients    repositories.PatientRepository
	sender      providers.MessageSender
	cache       providers.CacheProvider
}

// NewWebhookHandler creates a new webhook handler. cache may be nil; dedup
// is then skipped.
func NewWebhookHandler(
	verifyToken string,
	followUp *services.FollowUpService,
	patients repositories.PatientRepository,
	sender providers.MessageSender,
	cache providers.CacheProvider,
) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		followUp:    followUp,
		patients:    patients,
		sender:      sender,
		cache:       cache,
	}
}

// Verify handles GET /webhook/whatsapp, the Cloud API subscription
// handshake.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode != "subscribe" || token == "" || token != h.verifyToken {
		respondWithError(w, http.StatusForbidden, "verification failed")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// webhookPayload mirrors the Cloud API callback structure, trimmed to the
// fields we read.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Receive handles POST /webhook/whatsapp. The Cloud API expects a prompt
// 200 regardless of processing outcome; failures are logged, not returned.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, message := range change.Value.Messages {
				h.handleMessage(r, message)
			}
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *WebhookHandler) handleMessage(r *http.Request, message inboundMessage) {
	if message.Type != "text" || strings.TrimSpace(message.Text.Body) == "" {
		return
	}
	if h.alreadyProcessed(r, message.ID) {
		log.Debug().Str("message_id", message.ID).Msg("Duplicate webhook delivery skipped")
		return
	}

	ctx := r.Context()
	phone := normalizePhone(message.From)

	patient, err := h.patients.GetActiveByPhone(ctx, phone)
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			// Lookup failed, not an unknown number. Stay silent so the
			// Cloud API redelivers once the store recovers.
			log.Error().Err(err).Str("phone", phone).Msg("Patient lookup failed")
			return
		}
		log.Info().Str("phone", phone).Msg("Message from unregistered number")
		if _, err := h.sender.SendText(ctx, message.From, notRegisteredReply); err != nil {
			log.Warn().Err(err).Msg("Failed to send not-registered reply")
			return
		}
		h.markProcessed(r, message.ID)
		return
	}

	result, err := h.followUp.Run(ctx, patient.ID, message.Text.Body, "whatsapp")
	if err != nil && result == nil {
		log.Error().Err(err).Str("patient_id", patient.ID).Msg("Pipeline failed for webhook message")
		return
	}
	if err != nil {
		// Escalation write failed; the urgent reply still goes out.
		log.Error().Err(err).Str("patient_id", patient.ID).Msg("Escalation was not recorded")
	}

	if _, err := h.sender.SendText(ctx, message.From, result.Response); err != nil {
		log.Error().Err(err).Str("patient_id", patient.ID).Msg("Failed to send reply")
		return
	}
	h.markProcessed(r, message.ID)
}

func (h *WebhookHandler) alreadyProcessed(r *http.Request, messageID string) bool {
	if h.cache == nil || messageID == "" {
		return false
	}
	exists, err := h.cache.Exists(r.Context(), dedupKey(messageID))
	if err != nil {
		return false
	}
	return exists
}

// markProcessed records the message id only after the reply went out, so a
// crash mid-run means duplicate processing on redelivery rather than a
// silently dropped patient message.
func (h *WebhookHandler) markProcessed(r *http.Request, messageID string) {
	if h.cache == nil || messageID == "" {
		return
	}
	if err := h.cache.Set(r.Context(), dedupKey(messageID), []byte("1"), dedupTTLSeconds); err != nil {
		log.Warn().Err(err).Msg("Failed to record webhook message id")
	}
}

func dedupKey(messageID string) string {
	return "wa_msg:" + messageID
}

// normalizePhone maps the Cloud API sender format (digits only) onto the
// E.164 form patients are enrolled with.
func normalizePhone(from string) string {
	if strings.HasPrefix(from, "+") {
		return from
	}
	return "+" + from
}
