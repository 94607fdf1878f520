// Package generator produces expanded system prompts, prompt variations,
// and synthetic test inputs from a base prompt.
package generator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/llm"
	"github.com/promptsmith/promptsmith/utils"
)

// DefaultVariationCount and DefaultTestCaseCount are the pipeline defaults.
const (
	DefaultVariationCount = 3
	DefaultTestCaseCount  = 5
)

var numberedItem = regexp.MustCompile(`^\s*\d+[.)]\s*`)

// Generator drives the three generation steps against a text gateway.
type Generator struct {
	gateway llm.Generator
	logger  utils.Logger
}

// New creates a Generator on top of the given gateway.
func New(gateway llm.Generator, logger utils.Logger) *Generator {
	return &Generator{gateway: gateway, logger: logger}
}

// ExpandToSystemPrompt turns a terse base prompt into a full system prompt.
// On gateway failure it returns an error; callers decide whether to surface
// it or continue with the base prompt.
func (g *Generator) ExpandToSystemPrompt(ctx context.Context, basePrompt string, gen config.GenerationConfig) (string, error) {
	prompt := fmt.Sprintf(metaPromptInstruction, basePrompt)
	result, err := g.gateway.Generate(ctx, prompt, gen, generationSystem)
	if err != nil {
		return "", fmt.Errorf("meta-prompt expansion failed: %w", err)
	}
	return strings.TrimSpace(result), nil
}

// GenerateVariations produces count variations of the system prompt. A
// successful result has at least one entry: if the model output cannot be
// split on separator lines, the whole completion stands as a single
// variation. Gateway failures are returned to the caller.
func (g *Generator) GenerateVariations(ctx context.Context, systemPrompt string, count int, gen config.GenerationConfig) ([]string, error) {
	if count <= 0 {
		count = DefaultVariationCount
	}
	prompt := fmt.Sprintf(variationsInstruction, systemPrompt, count)
	result, err := g.gateway.Generate(ctx, prompt, gen, generationSystem)
	if err != nil {
		return nil, fmt.Errorf("generating variations: %w", err)
	}

	variations := SplitVariations(result)
	if len(variations) == 0 {
		variations = []string{strings.TrimSpace(result)}
	}
	return variations, nil
}

// GenerateTestCases produces count test inputs for the system prompt. The
// parser keeps everything the model wrote, falling back to the whole
// completion when no structure is found. Gateway failures are returned to
// the caller.
func (g *Generator) GenerateTestCases(ctx context.Context, systemPrompt string, count int, gen config.GenerationConfig) ([]string, error) {
	if count <= 0 {
		count = DefaultTestCaseCount
	}
	prompt := fmt.Sprintf(testCasesInstruction, systemPrompt, count)
	result, err := g.gateway.Generate(ctx, prompt, gen, evaluationSystem)
	if err != nil {
		return nil, fmt.Errorf("generating test cases: %w", err)
	}

	cases := SplitTestCases(result)
	if len(cases) == 0 {
		cases = []string{strings.TrimSpace(result)}
	}
	return cases, nil
}

// SplitVariations splits model output on separator lines consisting solely
// of three dashes. Empty segments are dropped.
func SplitVariations(text string) []string {
	var variations []string
	var current []string

	flush := func() {
		segment := strings.TrimSpace(strings.Join(current, "\n"))
		if segment != "" {
			variations = append(variations, segment)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return variations
}

// SplitTestCases extracts entries from a numbered list. A new entry begins
// at each line starting with a digit followed by a period or parenthesis;
// the numbered line is kept verbatim and continuation lines attach below it.
// When no numbered lines are found it falls back to blank-line-separated
// paragraphs, and then to the whole trimmed text.
func SplitTestCases(text string) []string {
	var cases []string
	var current []string

	flush := func() {
		entry := strings.TrimSpace(strings.Join(current, "\n"))
		if entry != "" {
			cases = append(cases, entry)
		}
		current = current[:0]
	}

	sawNumber := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if numberedItem.MatchString(line) {
			sawNumber = true
			flush()
			current = append(current, line)
			continue
		}
		if len(current) > 0 {
			current = append(current, line)
		}
	}
	flush()

	if !sawNumber {
		cases = cases[:0]
		for _, paragraph := range strings.Split(text, "\n\n") {
			if p := strings.TrimSpace(paragraph); p != "" {
				cases = append(cases, p)
			}
		}
		if len(cases) == 0 {
			if whole := strings.TrimSpace(text); whole != "" {
				return []string{whole}
			}
			return nil
		}
	}
	return cases
}
