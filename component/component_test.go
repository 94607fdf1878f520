package component

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/optimizer"
	"github.com/promptsmith/promptsmith/storage"
	"github.com/promptsmith/promptsmith/utils"
)

type scriptedGateway struct {
	expandErr error
}

func (s scriptedGateway) Generate(_ context.Context, prompt string, _ config.GenerationConfig, system string) (string, error) {
	switch {
	case strings.Contains(prompt, "Expand it into a detailed system prompt"):
		if s.expandErr != nil {
			return "", s.expandErr
		}
		return "EXPANDED SYSTEM PROMPT", nil
	case strings.Contains(prompt, "distinct variations"):
		return "VAR A\n---\nVAR B", nil
	case strings.Contains(prompt, "diverse test inputs"):
		return "1. sample one\n2. sample two", nil
	case strings.Contains(prompt, "Rate the following response"):
		return "8", nil
	default:
		return "answer from " + system, nil
	}
}

func newTestComponent(gw scriptedGateway) *Component {
	cfg := config.New(config.SetConcurrency(2))
	cfg.RateLimit = 1000
	logger := utils.NewLogger(utils.LogLevelOff)
	driver := optimizer.NewDriver(cfg, gw, storage.NewMemStore(), logger)
	return New(driver, logger)
}

func testInputs() Inputs {
	return Inputs{
		BasePrompt:  "travel agent",
		Provider:    "mock",
		Model:       "test-model",
		Temperature: 0.7,
		MaxTokens:   500,
		TopP:        1.0,
	}
}

func TestComponentOutputs(t *testing.T) {
	c := newTestComponent(scriptedGateway{})
	require.NoError(t, c.Run(context.Background(), testInputs()))

	meta, err := c.Output(OutputMetaPrompt)
	require.NoError(t, err)
	assert.Equal(t, "EXPANDED SYSTEM PROMPT", meta)

	variations, err := c.Output(OutputVariations)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(variations, "===== VARIATIONS ====="))
	assert.Contains(t, variations, "1. VAR A")
	assert.Contains(t, variations, "2. VAR B")

	testCases, err := c.Output(OutputTestCases)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(testCases, "===== TEST CASES ====="))
	assert.Contains(t, testCases, "sample one")

	best, err := c.Output(OutputBestPrompt)
	require.NoError(t, err)
	assert.NotEmpty(t, best)
}

// When a run aborts, the best-prompt output carries the explanation
// instead of Run failing.
func TestComponentAbortedRunExplains(t *testing.T) {
	c := newTestComponent(scriptedGateway{expandErr: errors.New("provider down")})
	require.NoError(t, c.Run(context.Background(), testInputs()))

	best, err := c.Output(OutputBestPrompt)
	require.NoError(t, err)
	assert.Contains(t, best, "Error expanding")
}

func TestComponentOutputBeforeRun(t *testing.T) {
	c := newTestComponent(scriptedGateway{})
	_, err := c.Output(OutputMetaPrompt)
	require.Error(t, err)
}

func TestComponentUnknownOutput(t *testing.T) {
	c := newTestComponent(scriptedGateway{})
	require.NoError(t, c.Run(context.Background(), testInputs()))
	_, err := c.Output("nonexistent")
	require.Error(t, err)
}
