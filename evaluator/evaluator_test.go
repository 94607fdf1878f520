package evaluator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/storage"
	"github.com/promptsmith/promptsmith/utils"
)

type stubGateway struct {
	replies []string
	err     error
	prompts []string
	gens    []config.GenerationConfig
}

func (s *stubGateway) Generate(_ context.Context, prompt string, gen config.GenerationConfig, _ string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.gens = append(s.gens, gen)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "stub reply", nil
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

func testGen() config.GenerationConfig {
	return config.GenerationConfig{Provider: "mock", Model: "test-model", Temperature: 0.7, MaxTokens: 500, TopP: 1.0}
}

func testCriterion(name string) storage.Criterion {
	return storage.Criterion{Name: name, Description: "how well the response satisfies " + name}
}

func TestExtractScore(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		score float64
		found bool
	}{
		{"score colon", "Overall, Score: 8.5 for this response.", 8.5, true},
		{"score of", "I would give a score of 7 here.", 7, true},
		{"slash ten", "This deserves 6/10 at best.", 6, true},
		{"rating phrase", "The rating comes to 4 overall", 4, true},
		{"clamped high", "Score: 15", 10, true},
		{"priority order", "The score is 3. Separately, 9/10 was mentioned.", 3, true},
		{"no score", "A thoughtful response with no verdict.", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, found := ExtractScore(tt.text)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.InDelta(t, tt.score, score, 0.0001)
			}
		})
	}
}

func TestScalarScoreResponse(t *testing.T) {
	gw := &stubGateway{replies: []string{"8.5"}}
	scalar := NewScalar(gw, utils.NewLogger(utils.LogLevelOff))

	score, err := scalar.ScoreResponse(context.Background(), "input", "response", "Accuracy", testGen())
	require.NoError(t, err)
	assert.InDelta(t, 8.5, score, 0.0001)

	require.Len(t, gw.gens, 1)
	assert.InDelta(t, 0.2, gw.gens[0].Temperature, 0.0001)
	assert.Equal(t, 50, gw.gens[0].MaxTokens)
	assert.InDelta(t, 1.0, gw.gens[0].TopP, 0.0001)
}

func TestScalarScoreResponseProseReply(t *testing.T) {
	gw := &stubGateway{replies: []string{"I'd rate it 9 out of 10"}}
	scalar := NewScalar(gw, utils.NewLogger(utils.LogLevelOff))

	score, err := scalar.ScoreResponse(context.Background(), "input", "response", "Accuracy", testGen())
	require.NoError(t, err)
	assert.InDelta(t, 9, score, 0.0001)
}

func TestScalarScoreResponseDefaultsOnUnparseableReply(t *testing.T) {
	gw := &stubGateway{replies: []string{"no numbers here"}}
	score, err := NewScalar(gw, utils.NewLogger(utils.LogLevelOff)).ScoreResponse(context.Background(), "input", "response", "Accuracy", testGen())
	require.NoError(t, err)
	assert.InDelta(t, DefaultScalarScore, score, 0.0001)
}

func TestScalarScoreResponsePropagatesGatewayError(t *testing.T) {
	gw := &stubGateway{err: errors.New("provider down")}
	_, err := NewScalar(gw, utils.NewLogger(utils.LogLevelOff)).ScoreResponse(context.Background(), "input", "response", "Accuracy", testGen())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestScalarScoreResponseClampsHigh(t *testing.T) {
	gw := &stubGateway{replies: []string{"15"}}
	score, err := NewScalar(gw, utils.NewLogger(utils.LogLevelOff)).ScoreResponse(context.Background(), "input", "response", "Accuracy", testGen())
	require.NoError(t, err)
	assert.InDelta(t, 10, score, 0.0001)
}

func TestPanelEvaluateRunsThreeStages(t *testing.T) {
	gw := &stubGateway{replies: []string{
		"Primary assessment across three paragraphs. Score: 6/10",
		"Skeptical perspective over two paragraphs.",
		"Final synthesis of both views. Score: 8/10",
	}}
	panel := NewPanel(gw, utils.NewLogger(utils.LogLevelOff))

	verdict := panel.Evaluate(context.Background(), "system", "input", "response", testCriterion("Helpfulness"), testGen())
	assert.InDelta(t, 8, verdict.Score, 0.0001)
	assert.Equal(t, "test-model-panel", verdict.Agent)
	assert.Contains(t, verdict.Reasoning, "Final synthesis")

	require.Len(t, gw.prompts, 3)
	assert.Contains(t, gw.prompts[0], "Helpfulness")
	assert.Contains(t, gw.prompts[0], "how well the response satisfies Helpfulness")
	assert.Contains(t, gw.prompts[1], "Primary assessment")
	assert.Contains(t, gw.prompts[2], "Skeptical perspective")
}

func TestPanelEvaluateDefaultScore(t *testing.T) {
	gw := &stubGateway{replies: []string{"stage one", "stage two", "a verdict with no numeric conclusion"}}
	panel := NewPanel(gw, utils.NewLogger(utils.LogLevelOff))

	verdict := panel.Evaluate(context.Background(), "system", "input", "response", testCriterion("Helpfulness"), testGen())
	assert.InDelta(t, DefaultPanelScore, verdict.Score, 0.0001)
	assert.Equal(t, "test-model-panel", verdict.Agent)
}

func TestPanelEvaluateFallsBackOnError(t *testing.T) {
	gw := &stubGateway{err: errors.New("provider down")}
	panel := NewPanel(gw, utils.NewLogger(utils.LogLevelOff))

	verdict := panel.Evaluate(context.Background(), "system prompt", "input", "response", testCriterion("Helpfulness"), testGen())
	assert.Equal(t, "test-model-fallback", verdict.Agent)
	assert.GreaterOrEqual(t, verdict.Score, 5.0)
	assert.LessOrEqual(t, verdict.Score, 10.0)
	assert.NotEmpty(t, verdict.Reasoning)
	assert.Contains(t, verdict.Reasoning, "Helpfulness")
}

func TestFallbackScoreDeterministic(t *testing.T) {
	score1, reasoning1 := FallbackScore("system", "input", testCriterion("Accuracy"))
	score2, reasoning2 := FallbackScore("system", "input", testCriterion("Accuracy"))
	assert.Equal(t, score1, score2)
	assert.Equal(t, reasoning1, reasoning2)
}

func TestFallbackScoreRange(t *testing.T) {
	inputs := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, in := range inputs {
		score, _ := FallbackScore(strings.Repeat("x", len(in)*100), in, testCriterion("Quality"))
		assert.GreaterOrEqual(t, score, 5.0)
		assert.LessOrEqual(t, score, 10.0)
	}
}

// The length bonus keys off the system prompt. Prompts sharing the same
// first 100 characters share a seed, so the only difference in outcome is
// the bonus itself.
func TestFallbackScoreSystemPromptLengthBonus(t *testing.T) {
	anyIncrease := false
	for _, prefix := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
		base := prefix + strings.Repeat("#", 100)
		short, _ := FallbackScore(base, "input", testCriterion("Quality"))
		long, _ := FallbackScore(base+strings.Repeat("more detail ", 100), "input", testCriterion("Quality"))
		assert.GreaterOrEqual(t, long, short)
		if long > short {
			anyIncrease = true
		}
	}
	assert.True(t, anyIncrease, "longer system prompts should earn a length bonus")
}

func TestFallbackReasoningNamesCriterion(t *testing.T) {
	criterion := storage.Criterion{Name: "Accuracy", Description: "factual correctness of the answer"}
	_, reasoning := FallbackScore("system", "input", criterion)
	assert.Contains(t, reasoning, "Accuracy")
	assert.Contains(t, reasoning, "factual correctness of the answer")

	_, other := FallbackScore("system", "input", storage.Criterion{Name: "Creativity", Description: "novelty of the answer"})
	assert.NotEqual(t, reasoning, other)
}
