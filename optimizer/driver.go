// Package optimizer runs the full prompt-optimization pipeline: expand a
// base prompt, generate variations and test cases, evaluate every variation
// against every test case, and rank the variations.
package optimizer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/evaluator"
	"github.com/promptsmith/promptsmith/generator"
	"github.com/promptsmith/promptsmith/llm"
	"github.com/promptsmith/promptsmith/storage"
	"github.com/promptsmith/promptsmith/utils"
)

// DefaultCriterion is the rubric used when the caller names none.
const DefaultCriterion = "Quality and relevance of the response"

// Request configures one optimization run.
type Request struct {
	BasePrompt     string                  `json:"base_prompt" validate:"required"`
	Generation     config.GenerationConfig `json:"generation"`
	VariationCount int                     `json:"variation_count"`
	TestCaseCount  int                     `json:"test_case_count"`
	Criterion      string                  `json:"criterion"`
	ForceRefresh   bool                    `json:"force_refresh"`
}

// CellResult is one evaluated (variation, test case) pair.
type CellResult struct {
	VariationIndex int     `json:"variation_index"`
	TestCaseIndex  int     `json:"test_case_index"`
	Input          string  `json:"input"`
	Response       string  `json:"response"`
	Score          float64 `json:"score"`
	Err            string  `json:"error,omitempty"`
}

// VariationSummary is the aggregate outcome for one variation.
type VariationSummary struct {
	Index     int     `json:"index"`
	Content   string  `json:"content"`
	MeanScore float64 `json:"mean_score"`
	Evaluated int     `json:"evaluated"`
}

// Report is the outcome of a full pipeline run.
type Report struct {
	RunID        string             `json:"run_id"`
	BasePrompt   string             `json:"base_prompt"`
	SystemPrompt string             `json:"system_prompt"`
	Variations   []string           `json:"variations"`
	TestCases    []string           `json:"test_cases"`
	Cells        []CellResult       `json:"cells"`
	Summaries    []VariationSummary `json:"summaries"`
	BestIndex    int                `json:"best_index"`
	BestPrompt   string             `json:"best_prompt"`
	PromptTokens int                `json:"prompt_tokens"`
	Criterion    string             `json:"criterion"`
	StartedAt    time.Time          `json:"started_at"`
	Duration     time.Duration      `json:"duration"`
	MetaPromptID int                `json:"meta_prompt_id"`
}

// Driver orchestrates the pipeline stages and persists each run.
type Driver struct {
	generator *generator.Generator
	scalar    *evaluator.Scalar
	gateway   llm.Generator
	store     *storage.MemStore
	counter   *utils.TokenCounter
	logger    utils.Logger

	concurrency int
	limiter     *rate.Limiter
	deadline    time.Duration

	cache cache
}

// NewDriver wires the pipeline together from the shared configuration.
func NewDriver(cfg *config.Config, gateway llm.Generator, store *storage.MemStore, logger utils.Logger) *Driver {
	counter, err := utils.NewTokenCounter(cfg.Model, logger)
	if err != nil {
		logger.Warn("Token counter unavailable, reports will use word counts", "error", err)
	}
	return &Driver{
		generator:   generator.New(gateway, logger),
		scalar:      evaluator.NewScalar(gateway, logger),
		gateway:     gateway,
		store:       store,
		counter:     counter,
		logger:      logger,
		concurrency: cfg.Concurrency,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		deadline:    cfg.PipelineDeadline,
	}
}

// Optimize runs the full pipeline. Results are cached against the request's
// prompt and sampling settings; a repeat call with identical settings
// returns the previous report unless ForceRefresh is set.
func (d *Driver) Optimize(ctx context.Context, req Request) (*Report, error) {
	if strings.TrimSpace(req.BasePrompt) == "" {
		return nil, fmt.Errorf("base prompt is required")
	}
	if req.Criterion == "" {
		req.Criterion = DefaultCriterion
	}
	if req.VariationCount <= 0 {
		req.VariationCount = generator.DefaultVariationCount
	}
	if req.TestCaseCount <= 0 {
		req.TestCaseCount = generator.DefaultTestCaseCount
	}

	if cached, ok := d.cache.get(req); ok {
		d.logger.Debug("Serving cached optimization report", "run_id", cached.RunID)
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.deadline)
	defer cancel()

	started := time.Now().UTC()
	report := &Report{
		RunID:      uuid.New().String(),
		BasePrompt: req.BasePrompt,
		Criterion:  req.Criterion,
		StartedAt:  started,
	}
	d.logger.Info("Starting optimization run", "run_id", report.RunID, "provider", req.Generation.Provider, "model", req.Generation.Model)

	systemPrompt, err := d.generator.ExpandToSystemPrompt(ctx, req.BasePrompt, req.Generation)
	if err != nil {
		return d.abort(report, started, fmt.Sprintf("Error expanding the base prompt into a system prompt: %v", err)), nil
	}
	if systemPrompt == "" || strings.Contains(systemPrompt, "Error") {
		return d.abort(report, started, "Error: expansion produced no usable system prompt."), nil
	}
	report.SystemPrompt = systemPrompt
	if d.counter != nil {
		report.PromptTokens = d.counter.Count(systemPrompt)
	} else {
		report.PromptTokens = utils.CountWords(systemPrompt)
	}

	report.Variations, err = d.generator.GenerateVariations(ctx, systemPrompt, req.VariationCount, req.Generation)
	if err != nil {
		return d.abort(report, started, fmt.Sprintf("Error generating prompt variations: %v", err)), nil
	}
	report.TestCases, err = d.generator.GenerateTestCases(ctx, systemPrompt, req.TestCaseCount, req.Generation)
	if err != nil {
		return d.abort(report, started, fmt.Sprintf("Error generating test cases: %v", err)), nil
	}

	mp := d.store.CreateMetaPrompt(req.BasePrompt, systemPrompt)
	report.MetaPromptID = mp.ID
	criterion := d.store.CreateCriterion(req.Criterion, "")
	variationIDs := make([]int, len(report.Variations))
	for i, v := range report.Variations {
		variationIDs[i] = d.store.CreateVariation(mp.ID, v).ID
	}
	testCaseIDs := make([]int, len(report.TestCases))
	for i, tc := range report.TestCases {
		testCaseIDs[i] = d.store.CreateTestCase(mp.ID, tc).ID
	}

	report.Cells = d.evaluateGrid(ctx, report.Variations, report.TestCases, req)
	for _, cell := range report.Cells {
		if cell.Err != "" {
			continue
		}
		d.store.CreateResult(storage.EvaluationResult{
			VariationID: variationIDs[cell.VariationIndex],
			TestCaseID:  testCaseIDs[cell.TestCaseIndex],
			CriterionID: criterion.ID,
			Response:    cell.Response,
			Score:       cell.Score,
			Agent:       req.Generation.Model,
		})
	}

	report.Summaries = summarize(report.Variations, report.Cells)
	report.BestIndex, report.BestPrompt = pickBest(report.Summaries, report.Variations, systemPrompt)
	report.Duration = time.Since(started)

	d.cache.put(req, report)
	d.logger.Info("Optimization run complete", "run_id", report.RunID, "best_index", report.BestIndex, "duration", report.Duration)
	return report, nil
}

// abort finishes a run early. The report carries the explanation in its
// BestPrompt field so callers surface readable text instead of an error.
// Aborted reports are never cached.
func (d *Driver) abort(report *Report, started time.Time, message string) *Report {
	d.logger.Warn("Optimization run aborted", "run_id", report.RunID, "reason", message)
	report.BestIndex = -1
	report.BestPrompt = message
	report.Duration = time.Since(started)
	return report
}

// evaluateGrid fans the variation x test case product out over a bounded
// worker pool. Each cell generates a response under the variation's prompt
// and scores it with one scalar rubric call.
func (d *Driver) evaluateGrid(ctx context.Context, variations, testCases []string, req Request) []CellResult {
	cells := make([]CellResult, len(variations)*len(testCases))
	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup

	for vi, variation := range variations {
		for ti, input := range testCases {
			wg.Add(1)
			go func(idx, vi, ti int, variation, input string) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				cell := CellResult{VariationIndex: vi, TestCaseIndex: ti, Input: input}
				if err := d.limiter.Wait(ctx); err != nil {
					cell.Err = fmt.Sprintf("rate limiter: %v", err)
					cells[idx] = cell
					return
				}

				response, err := d.gateway.Generate(ctx, input, req.Generation, variation)
				if err != nil {
					d.logger.Warn("Cell response generation failed", "variation", vi, "test_case", ti, "error", err)
					cell.Err = err.Error()
					cells[idx] = cell
					return
				}
				cell.Response = response

				score, err := d.scalar.ScoreResponse(ctx, input, response, req.Criterion, req.Generation)
				if err != nil {
					d.logger.Warn("Cell scoring failed", "variation", vi, "test_case", ti, "error", err)
					cell.Err = err.Error()
					cells[idx] = cell
					return
				}
				cell.Score = score
				cells[idx] = cell
			}(vi*len(testCases)+ti, vi, ti, variation, input)
		}
	}
	wg.Wait()
	return cells
}

// summarize computes per-variation mean scores over successfully evaluated
// cells. A variation whose cells all failed gets no summary entry.
func summarize(variations []string, cells []CellResult) []VariationSummary {
	sums := make([]float64, len(variations))
	counts := make([]int, len(variations))
	for _, cell := range cells {
		if cell.Err != "" {
			continue
		}
		sums[cell.VariationIndex] += cell.Score
		counts[cell.VariationIndex]++
	}

	var summaries []VariationSummary
	for i, content := range variations {
		if counts[i] == 0 {
			continue
		}
		summaries = append(summaries, VariationSummary{
			Index:     i,
			Content:   content,
			MeanScore: sums[i] / float64(counts[i]),
			Evaluated: counts[i],
		})
	}
	return summaries
}

// pickBest returns the first variation with the highest mean score. Ties go
// to the earliest index. When nothing was evaluated, the expanded system
// prompt wins by default.
func pickBest(summaries []VariationSummary, variations []string, systemPrompt string) (int, string) {
	if len(summaries) == 0 {
		return -1, systemPrompt
	}
	best := summaries[0]
	for _, s := range summaries[1:] {
		if s.MeanScore > best.MeanScore {
			best = s
		}
	}
	return best.Index, variations[best.Index]
}
