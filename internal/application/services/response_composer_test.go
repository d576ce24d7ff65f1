package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
)

func TestComposeHighRiskIsFixedText(t *testing.T) {
	model := &fakeModel{output: "should never be used"}
	composer := NewResponseComposer(model)

	judgment := entities.Judgment{Symptoms: []string{"chest pain"}, Risk: entities.RiskHigh}
	reply, err := composer.Compose(context.Background(), "my chest hurts", judgment, false, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, urgentResponse, reply)
	assert.Empty(t, model.prompts, "HIGH risk must not reach the model")
}

func TestComposeClarificationIsFixedText(t *testing.T) {
	model := &fakeModel{output: "should never be used"}
	composer := NewResponseComposer(model)

	reply, err := composer.Compose(context.Background(), "not sure really", entities.DefaultJudgment(), true, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, clarificationQuestion, reply)
	assert.Empty(t, model.prompts)
}

func TestComposeLowRiskUsesModel(t *testing.T) {
	model := &fakeModel{output: "Glad you're resting well. Keep the wound dry and take it easy today."}
	composer := NewResponseComposer(model)

	judgment := entities.Judgment{Symptoms: []string{}, Risk: entities.RiskLow}
	reply, err := composer.Compose(context.Background(), "feeling better today", judgment, false, []string{"knee surgery 5 days ago"}, nil)

	require.NoError(t, err)
	assert.Equal(t, model.output, reply)
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "feeling better today")
	assert.Contains(t, model.prompts[0], "knee surgery 5 days ago")
}

func TestComposePromptCarriesRiskTierAndTonePolicy(t *testing.T) {
	model := &fakeModel{output: "Keep an eye on the redness and call your doctor if it spreads."}
	composer := NewResponseComposer(model)

	pain := 5
	judgment := entities.Judgment{Symptoms: []string{"redness around incision"}, PainLevel: &pain, Risk: entities.RiskMedium}
	_, err := composer.Compose(context.Background(), "incision looks a bit red", judgment, false, nil, nil)

	require.NoError(t, err)
	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	assert.Contains(t, prompt, "Risk level: MEDIUM")
	assert.Contains(t, prompt, "For LOW risk, reassure the patient and remind them to rest.")
	assert.Contains(t, prompt, "For MEDIUM risk, advise monitoring and contacting their doctor if symptoms worsen.")
}

func TestComposeFallbackOnModelError(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("timeout")}
	composer := NewResponseComposer(model)

	reply, err := composer.Compose(context.Background(), "how am I doing", entities.DefaultJudgment(), false, nil, nil)

	assert.Error(t, err)
	assert.Equal(t, fallbackResponse, reply)
}

func TestComposeHistoryWindowKeepsLastThreeOldestFirst(t *testing.T) {
	model := &fakeModel{output: "ok"}
	composer := NewResponseComposer(model)

	history := []entities.Exchange{
		{Patient: "day one message", Agent: "day one reply"},
		{Patient: "day two message", Agent: "day two reply"},
		{Patient: "day three message", Agent: "day three reply"},
		{Patient: "day four message", Agent: "day four reply"},
	}

	_, err := composer.Compose(context.Background(), "today", entities.DefaultJudgment(), false, nil, history)
	require.NoError(t, err)
	require.Len(t, model.prompts, 1)

	prompt := model.prompts[0]
	assert.NotContains(t, prompt, "day one message")
	assert.Contains(t, prompt, "day two message")
	assert.Contains(t, prompt, "day four reply")
	assert.Less(t, strings.Index(prompt, "day two message"), strings.Index(prompt, "day three message"))
	assert.Less(t, strings.Index(prompt, "day three message"), strings.Index(prompt, "day four message"))
}
