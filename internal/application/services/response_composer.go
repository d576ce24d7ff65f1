package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/domain/providers"
)

const (
	// clarificationQuestion is the fixed follow-up for vague messages that
	// produced no clinical signal.
	clarificationQuestion = "Can you describe your symptoms in more detail?"

	// urgentResponse is the fixed reply for HIGH-risk messages. It is never
	// model-generated so its wording cannot drift.
	urgentResponse = "I'm concerned. Please contact your doctor immediately or go to the ER. I've notified your care team."

	// fallbackResponse covers model failure during composition. The patient
	// always gets an answer.
	fallbackResponse = "Thank you for checking in. I couldn't process your message fully right now. If you're feeling unwell or your symptoms are getting worse, please contact your care team directly."
)

// historyWindow is how many recent exchanges are shown to the model when
// composing a reply.
const historyWindow = 3

// ResponseComposer produces the outbound reply for one pipeline run. HIGH
// risk and clarification short-circuit to fixed texts; only LOW and MEDIUM
// risk reach the model.
type ResponseComposer struct {
	model providers.GenerativeModel
}

// NewResponseComposer creates a new response composer.
func NewResponseComposer(model providers.GenerativeModel) *ResponseComposer {
	return &ResponseComposer{model: model}
}

// Compose returns the reply text. The returned error is non-nil only when
// the model call failed and the fallback text was substituted; the caller
// still has a usable response either way.
func (c *ResponseComposer) Compose(ctx context.Context, message string, judgment entities.Judgment, needsClarification bool, contextSnippets []string, history []entities.Exchange) (string, error) {
	if needsClarification {
		return clarificationQuestion, nil
	}
	if judgment.Risk == entities.RiskHigh {
		return urgentResponse, nil
	}

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	reply, err := c.model.Generate(ctx, buildResponsePrompt(message, judgment, contextSnippets, history))
	if err != nil {
		log.Warn().Err(err).Msg("response generation failed, using fallback text")
		return fallbackResponse, err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return fallbackResponse, nil
	}
	return reply, nil
}
