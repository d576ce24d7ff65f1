package services

import (
	"strings"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
)

// hedgingMarkers are the phrases that flag a patient message as vague.
// Matching is case-insensitive substring containment.
var hedgingMarkers = []string{"not sure", "maybe", "a little"}

// AssessmentPolicy decides whether to ask the patient a clarifying question
// instead of answering. A clarification is only warranted when the message
// hedges, extraction found no symptoms, and the risk tier is not HIGH; an
// urgent message is never answered with a question.
type AssessmentPolicy struct{}

// NewAssessmentPolicy creates a new assessment policy.
func NewAssessmentPolicy() *AssessmentPolicy {
	return &AssessmentPolicy{}
}

// NeedsClarification applies the policy to one message and its judgment.
func (p *AssessmentPolicy) NeedsClarification(message string, judgment entities.Judgment) bool {
	if judgment.Risk == entities.RiskHigh {
		return false
	}
	if len(judgment.Symptoms) > 0 {
		return false
	}
	return isVague(message)
}

func isVague(message string) bool {
	lowered := strings.ToLower(message)
	for _, marker := range hedgingMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
