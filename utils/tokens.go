package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens the way the target model's tokenizer would.
// Counts are advisory (reports, budget checks), so an unrecognized model
// falls back to the gpt-4o encoding rather than failing.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	mutex    sync.Mutex
}

// NewTokenCounter creates a counter for the given model name.
func NewTokenCounter(model string, logger Logger) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		logger.Warn("Failed to get encoding for model, defaulting to gpt-4o", "model", model, "error", err)
		encoding, err = tiktoken.EncodingForModel("gpt-4o")
		if err != nil {
			return nil, fmt.Errorf("failed to get default encoding: %w", err)
		}
	}
	return &TokenCounter{encoding: encoding}, nil
}

// Count returns the number of tokens in text.
func (tc *TokenCounter) Count(text string) int {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountWords is the estimate used when no tokenizer is available.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
