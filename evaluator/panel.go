package evaluator

import (
	"context"
	"fmt"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/llm"
	"github.com/promptsmith/promptsmith/metrics"
	"github.com/promptsmith/promptsmith/storage"
	"github.com/promptsmith/promptsmith/utils"
)

// DefaultPanelScore stands in when the aggregator text yields no score.
const DefaultPanelScore = 7.0

// Verdict is the outcome of a panel evaluation.
type Verdict struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
	Agent     string  `json:"agent"`
}

const primaryStage = `Evaluate the following response against the criterion "%s" (%s).

User input:
%s

Response:
%s

Write at least three paragraphs: one on how well the response addresses the input, one on its accuracy and completeness, and one on its clarity and tone. End with a score out of 10, stated as "Score: N/10".`

const perspectiveStage = `Another evaluator produced this assessment:

%s

Critique it from a skeptical reader's perspective, in at least two paragraphs. Note anything the first evaluator over- or under-weighted against "%s". If you would adjust the score, say so and why.`

const aggregatorStage = `Two evaluators assessed a response against "%s".

First assessment:
%s

Second perspective:
%s

Synthesize them into a final verdict of three to four paragraphs and end with a final score stated as "Score: N/10".`

// Panel runs a three-stage evaluation chain: a primary assessment, a
// skeptical second perspective, and an aggregator that issues the final
// verdict. When any stage fails, the deterministic fallback supplies the
// verdict instead.
type Panel struct {
	gateway llm.Generator
	logger  utils.Logger
}

// NewPanel creates a Panel evaluator.
func NewPanel(gateway llm.Generator, logger utils.Logger) *Panel {
	return &Panel{gateway: gateway, logger: logger}
}

// Evaluate scores the response against the criterion. The Agent field of
// the verdict records how it was produced: "<model>-panel" for the full
// chain, "<model>-fallback" when the chain failed and the deterministic
// scorer answered instead.
func (p *Panel) Evaluate(ctx context.Context, systemPrompt, userInput, response string, criterion storage.Criterion, gen config.GenerationConfig) Verdict {
	system := "You are an expert evaluation panelist. Be rigorous and specific."

	primary, err := p.gateway.Generate(ctx, fmt.Sprintf(primaryStage, criterion.Name, criterion.Description, userInput, response), gen, system)
	if err != nil {
		return p.fallback(systemPrompt, userInput, criterion, gen, err)
	}

	perspective, err := p.gateway.Generate(ctx, fmt.Sprintf(perspectiveStage, primary, criterion.Name), gen, system)
	if err != nil {
		return p.fallback(systemPrompt, userInput, criterion, gen, err)
	}

	final, err := p.gateway.Generate(ctx, fmt.Sprintf(aggregatorStage, criterion.Name, primary, perspective), gen, system)
	if err != nil {
		return p.fallback(systemPrompt, userInput, criterion, gen, err)
	}

	score, ok := ExtractScore(final)
	if !ok {
		p.logger.Warn("Panel verdict had no parseable score, using default", "criterion", criterion.Name)
		score = DefaultPanelScore
	}
	metrics.EvaluationScores.Observe(score)
	return Verdict{Score: score, Reasoning: final, Agent: gen.Model + "-panel"}
}

func (p *Panel) fallback(systemPrompt, userInput string, criterion storage.Criterion, gen config.GenerationConfig, cause error) Verdict {
	p.logger.Warn("Panel evaluation failed, using deterministic fallback", "criterion", criterion.Name, "error", cause)
	metrics.PanelFallbacks.Inc()
	score, reasoning := FallbackScore(systemPrompt, userInput, criterion)
	metrics.EvaluationScores.Observe(score)
	return Verdict{Score: score, Reasoning: reasoning, Agent: gen.Model + "-fallback"}
}
