// Package providers implements the text-generation provider capability and
// its concrete implementations. Each provider turns a (prompt, system
// preamble, options) triple into a wire request for its hosted API and
// extracts the top completion text from the response. New providers are added
// by registering a constructor, never by editing a dispatch function.
package providers

import (
	"fmt"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/utils"
)

// Provider is the closed capability every hosted text-generation backend
// implements.
type Provider interface {
	// Name returns the provider identifier, e.g. "openai".
	Name() string

	// Endpoint returns the completion API endpoint URL.
	Endpoint() string

	// Headers returns the headers required for an API request.
	Headers() map[string]string

	// SetOption sets a request option such as "temperature" or "max_tokens".
	SetOption(key string, value any)

	// SetDefaultOptions applies process-level defaults from the config.
	SetDefaultOptions(cfg *config.Config)

	// SetLogger replaces the provider's logger.
	SetLogger(logger utils.Logger)

	// PrepareRequest builds the request body for one completion call.
	// The system preamble may be empty.
	PrepareRequest(prompt, system string, options map[string]any) ([]byte, error)

	// ParseResponse extracts the top completion text from a response body.
	ParseResponse(body []byte) (string, error)
}

// Constructor creates a provider instance bound to an API key and model.
type Constructor func(apiKey, model string) Provider

// UnsupportedProviderError reports a provider identifier with no registered
// implementation.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider: %q", e.Provider)
}
