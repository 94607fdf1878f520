package evaluator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/llm"
	"github.com/promptsmith/promptsmith/metrics"
	"github.com/promptsmith/promptsmith/utils"
)

// DefaultScalarScore stands in when the rubric reply contains no number.
const DefaultScalarScore = 5.0

var firstNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

const scalarRubric = `Rate the following response to a user input on a scale of 0 to 10, where 10 is a perfect response.

Criterion: %s

User input:
%s

Response:
%s

Reply with only the numeric score.`

// Scalar scores a single response with one short rubric call.
type Scalar struct {
	gateway llm.Generator
	logger  utils.Logger
}

// NewScalar creates a Scalar evaluator.
func NewScalar(gateway llm.Generator, logger utils.Logger) *Scalar {
	return &Scalar{gateway: gateway, logger: logger}
}

// ScoreResponse asks the model for a 0-10 rating of the response against the
// criterion. Sampling is pinned low so ratings stay stable across calls. A
// reply with no parseable number yields DefaultScalarScore; gateway failures
// are returned to the caller.
func (s *Scalar) ScoreResponse(ctx context.Context, userInput, response, criterion string, gen config.GenerationConfig) (float64, error) {
	gen.Temperature = 0.2
	gen.MaxTokens = 50
	gen.TopP = 1.0

	prompt := fmt.Sprintf(scalarRubric, criterion, userInput, response)
	reply, err := s.gateway.Generate(ctx, prompt, gen, "You are a strict evaluator. Reply with only a number.")
	if err != nil {
		return 0, fmt.Errorf("scoring response: %w", err)
	}

	match := firstNumber.FindString(reply)
	if match == "" {
		s.logger.Warn("Scalar evaluation reply had no number", "reply", reply)
		metrics.ParseFallbacks.Inc()
		return DefaultScalarScore, nil
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		metrics.ParseFallbacks.Inc()
		return DefaultScalarScore, nil
	}
	score = clamp(score, 0, 10)
	metrics.EvaluationScores.Observe(score)
	return score, nil
}
