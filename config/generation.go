package config

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// GenerationConfig is the immutable set of generation parameters attached to
// a single provider call. It is constructed fresh per request and never
// persisted.
type GenerationConfig struct {
	Provider    string  `json:"provider" validate:"required"`
	Model       string  `json:"model" validate:"required"`
	Temperature float64 `json:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `json:"max_tokens" validate:"required,gt=0"`
	TopP        float64 `json:"top_p" validate:"min=0,max=1"`
}

// Validate checks the parameter ranges. Provider existence is checked later
// by the provider registry, not here.
func (g GenerationConfig) Validate() error {
	return validate.Struct(g)
}
