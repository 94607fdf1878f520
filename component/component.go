// Package component wraps the optimization pipeline as a single flow node
// with four text outputs, for embedding in visual flow hosts.
package component

import (
	"context"
	"fmt"
	"strings"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/optimizer"
	"github.com/promptsmith/promptsmith/utils"
)

// Output names the four wires a flow host can connect to.
const (
	OutputMetaPrompt = "meta_prompt"
	OutputVariations = "variations"
	OutputTestCases  = "test_cases"
	OutputBestPrompt = "best_prompt"
)

// Inputs are the node's configurable fields.
type Inputs struct {
	BasePrompt     string
	Provider       string
	Model          string
	Temperature    float64
	MaxTokens      int
	TopP           float64
	VariationCount int
	TestCaseCount  int
	Criterion      string
	ForceRefresh   bool
}

// Component is one instance of the optimizer node. Outputs from the latest
// run are served until an input that affects the result changes.
type Component struct {
	driver *optimizer.Driver
	logger utils.Logger
	report *optimizer.Report
}

// New creates a component around an in-process pipeline driver.
func New(driver *optimizer.Driver, logger utils.Logger) *Component {
	return &Component{driver: driver, logger: logger}
}

// Run executes the pipeline for the given inputs and caches the report for
// the output accessors. The driver reuses the previous run when the inputs
// match, so wiring several outputs does not repeat the work.
func (c *Component) Run(ctx context.Context, in Inputs) error {
	report, err := c.driver.Optimize(ctx, optimizer.Request{
		BasePrompt: in.BasePrompt,
		Generation: config.GenerationConfig{
			Provider:    in.Provider,
			Model:       in.Model,
			Temperature: in.Temperature,
			MaxTokens:   in.MaxTokens,
			TopP:        in.TopP,
		},
		VariationCount: in.VariationCount,
		TestCaseCount:  in.TestCaseCount,
		Criterion:      in.Criterion,
		ForceRefresh:   in.ForceRefresh,
	})
	if err != nil {
		return err
	}
	c.report = report
	return nil
}

// Output returns the named output's text. Run must have succeeded first.
func (c *Component) Output(name string) (string, error) {
	if c.report == nil {
		return "", fmt.Errorf("no run available, call Run first")
	}
	switch name {
	case OutputMetaPrompt:
		return c.report.SystemPrompt, nil
	case OutputVariations:
		return formatSection("VARIATIONS", c.report.Variations), nil
	case OutputTestCases:
		return formatSection("TEST CASES", c.report.TestCases), nil
	case OutputBestPrompt:
		return c.report.BestPrompt, nil
	default:
		return "", fmt.Errorf("unknown output %q", name)
	}
}

func formatSection(title string, items []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "===== %s =====\n\n", title)
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, item)
	}
	return strings.TrimRight(b.String(), "\n")
}
