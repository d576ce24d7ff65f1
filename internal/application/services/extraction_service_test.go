package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
)

type fakeModel struct {
	output string
	err    error

	prompts []string
}

func (f *fakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.output, f.err
}

func (f *fakeModel) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("not implemented")
}

func TestExtractValidJudgment(t *testing.T) {
	model := &fakeModel{output: `{"symptoms": ["fever", "swelling"], "pain_level": 7, "risk": "HIGH"}`}
	svc := NewExtractionService(model)

	judgment := svc.Extract(context.Background(), "I have a fever and swelling, pain is 7", nil)

	assert.Equal(t, []string{"fever", "swelling"}, judgment.Symptoms)
	require.NotNil(t, judgment.PainLevel)
	assert.Equal(t, 7, *judgment.PainLevel)
	assert.Equal(t, entities.RiskHigh, judgment.Risk)
}

func TestExtractStripsCodeFence(t *testing.T) {
	model := &fakeModel{output: "```json\n{\"symptoms\": [], \"pain_level\": 3, \"risk\": \"LOW\"}\n```"}
	svc := NewExtractionService(model)

	judgment := svc.Extract(context.Background(), "feeling okay, pain about 3", nil)

	require.NotNil(t, judgment.PainLevel)
	assert.Equal(t, 3, *judgment.PainLevel)
	assert.Equal(t, entities.RiskLow, judgment.Risk)
}

func TestExtractDefaultsOnModelError(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("rate limited")}
	svc := NewExtractionService(model)

	judgment := svc.Extract(context.Background(), "anything", nil)

	assert.Equal(t, entities.DefaultJudgment(), judgment)
}

func TestExtractDefaultsOnMalformedOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"not json", "I think the patient is fine"},
		{"truncated", `{"symptoms": ["fever"`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewExtractionService(&fakeModel{output: tt.output})
			assert.Equal(t, entities.DefaultJudgment(), svc.Extract(context.Background(), "msg", nil))
		})
	}
}

func TestExtractUnknownRiskFallsBackToLow(t *testing.T) {
	model := &fakeModel{output: `{"symptoms": ["headache"], "pain_level": null, "risk": "CRITICAL"}`}
	svc := NewExtractionService(model)

	judgment := svc.Extract(context.Background(), "bad headache", nil)

	assert.Equal(t, entities.RiskLow, judgment.Risk)
	assert.Equal(t, []string{"headache"}, judgment.Symptoms)
}

func TestNormalizePain(t *testing.T) {
	five := 5
	ten := 10
	zero := 0

	tests := []struct {
		name     string
		value    interface{}
		expected *int
	}{
		{"nil", nil, nil},
		{"integer float", float64(5), &five},
		{"rounded float", 4.6, &five},
		{"numeric string", "10", &ten},
		{"zero", float64(0), &zero},
		{"negative", float64(-1), nil},
		{"above range", float64(11), nil},
		{"non-numeric string", "a lot", nil},
		{"bool", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizePain(tt.value)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.expected, *got)
		})
	}
}

func TestExtractLowercaseRiskAccepted(t *testing.T) {
	model := &fakeModel{output: `{"symptoms": [], "pain_level": null, "risk": "medium"}`}
	svc := NewExtractionService(model)

	assert.Equal(t, entities.RiskMedium, svc.Extract(context.Background(), "msg", nil).Risk)
}
