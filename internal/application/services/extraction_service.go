package services

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/domain/providers"
)

// ExtractionService turns a free-text patient message into a structured
// clinical judgment. It never returns an error: any model or parse failure
// degrades to the safe default (no symptoms, no pain score, LOW risk), so a
// flaky model can never block a reply or invent an escalation.
type ExtractionService struct {
	model providers.GenerativeModel
}

// NewExtractionService creates a new extraction service.
func NewExtractionService(model providers.GenerativeModel) *ExtractionService {
	return &ExtractionService{model: model}
}

// rawJudgment is the loosely-typed shape we accept from the model before
// validation. pain_level arrives as whatever JSON type the model chose.
type rawJudgment struct {
	Symptoms  []string    `json:"symptoms"`
	PainLevel interface{} `json:"pain_level"`
	Risk      string      `json:"risk"`
}

// Extract runs the model over the message plus retrieved context and
// validates its output.
func (s *ExtractionService) Extract(ctx context.Context, message string, contextSnippets []string) entities.Judgment {
	output, err := s.model.Generate(ctx, buildExtractionPrompt(message, contextSnippets))
	if err != nil {
		log.Warn().Err(err).Msg("extraction degraded to default judgment: model call failed")
		return entities.DefaultJudgment()
	}
	return s.parse(output)
}

func (s *ExtractionService) parse(output string) entities.Judgment {
	cleaned := stripCodeFence(output)

	var raw rawJudgment
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		log.Warn().Err(err).Msg("extraction degraded to default judgment: unparseable model output")
		return entities.DefaultJudgment()
	}

	judgment := entities.DefaultJudgment()

	for _, symptom := range raw.Symptoms {
		symptom = strings.TrimSpace(symptom)
		if symptom != "" {
			judgment.Symptoms = append(judgment.Symptoms, symptom)
		}
	}

	judgment.PainLevel = normalizePain(raw.PainLevel)

	if risk, ok := entities.ParseRiskLevel(raw.Risk); ok {
		judgment.Risk = risk
	} else {
		log.Warn().Str("risk", raw.Risk).Msg("unknown risk tier from model, defaulting to LOW")
	}

	return judgment
}

// normalizePain coerces the model's pain_level into an int in [0,10].
// Anything else (missing, non-numeric, out of range) becomes nil.
func normalizePain(value interface{}) *int {
	var pain int
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		pain = int(math.Round(v))
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		pain = parsed
	default:
		return nil
	}

	if pain < 0 || pain > 10 {
		return nil
	}
	return &pain
}

// stripCodeFence removes a surrounding markdown code fence, which chat
// models often wrap JSON in despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
