package entities

import "strings"

// RiskLevel is the coarse clinical urgency tier derived from a patient message.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Valid reports whether the value is one of the three known tiers.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ParseRiskLevel normalizes a free-form tier string from model output.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	r := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Judgment is the structured clinical signal extracted from one message.
// PainLevel is nil when the patient did not report a usable pain score.
type Judgment struct {
	Symptoms  []string  `json:"symptoms"`
	PainLevel *int      `json:"pain_level"`
	Risk      RiskLevel `json:"risk"`
}

// DefaultJudgment is the safe fallback used whenever extraction output is
// missing, malformed, or out of range.
func DefaultJudgment() Judgment {
	return Judgment{Symptoms: []string{}, PainLevel: nil, Risk: RiskLow}
}

// Exchange is one completed patient/agent turn in a conversation thread.
type Exchange struct {
	Patient string `json:"patient"`
	Agent   string `json:"agent"`
}
