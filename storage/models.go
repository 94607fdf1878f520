// Package storage holds the persisted records of optimization runs and an
// in-memory store over them.
package storage

import "time"

// MetaPrompt is a base prompt together with its expanded system prompt.
type MetaPrompt struct {
	ID           int       `json:"id"`
	BasePrompt   string    `json:"base_prompt"`
	SystemPrompt string    `json:"system_prompt"`
	CreatedAt    time.Time `json:"created_at"`
}

// PromptVariation is one candidate rewrite of a meta prompt.
type PromptVariation struct {
	ID           int       `json:"id"`
	MetaPromptID int       `json:"meta_prompt_id"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// TestCase is a synthetic user input used to probe the variations.
type TestCase struct {
	ID           int       `json:"id"`
	MetaPromptID int       `json:"meta_prompt_id"`
	Input        string    `json:"input"`
	CreatedAt    time.Time `json:"created_at"`
}

// Criterion names a dimension responses are scored on.
type Criterion struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// EvaluationResult is one cell of the variation x test case grid.
type EvaluationResult struct {
	ID          int       `json:"id"`
	VariationID int       `json:"variation_id"`
	TestCaseID  int       `json:"test_case_id"`
	CriterionID int       `json:"criterion_id"`
	Response    string    `json:"response"`
	Score       float64   `json:"score"`
	Reasoning   string    `json:"reasoning"`
	Agent       string    `json:"agent"`
	CreatedAt   time.Time `json:"created_at"`
}

// LeaderboardEntry summarizes one variation's scores.
type LeaderboardEntry struct {
	VariationID  int                `json:"variation_id"`
	Content      string             `json:"content"`
	OverallScore float64            `json:"overall_score"`
	ByCriterion  map[string]float64 `json:"by_criterion"`
	Evaluations  int                `json:"evaluations"`
}
