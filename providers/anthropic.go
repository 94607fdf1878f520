package providers

import (
	"encoding/json"
	"fmt"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/utils"
)

// AnthropicProvider implements Provider against the Anthropic messages API.
type AnthropicProvider struct {
	apiKey  string
	model   string
	options map[string]any
	logger  utils.Logger
}

// NewAnthropicProvider creates an Anthropic provider bound to an API key and model.
func NewAnthropicProvider(apiKey, model string) Provider {
	return &AnthropicProvider{
		apiKey:  apiKey,
		model:   model,
		options: make(map[string]any),
		logger:  utils.NewLogger(utils.LogLevelWarn),
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Endpoint() string {
	return "https://api.anthropic.com/v1/messages"
}

func (p *AnthropicProvider) Headers() map[string]string {
	return map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         p.apiKey,
		"anthropic-version": "2023-06-01",
	}
}

func (p *AnthropicProvider) SetOption(key string, value any) {
	p.options[key] = value
	p.logger.Debug("Option set", "provider", "anthropic", "key", key, "value", value)
}

func (p *AnthropicProvider) SetDefaultOptions(cfg *config.Config) {
	p.SetOption("temperature", cfg.Temperature)
	p.SetOption("max_tokens", cfg.MaxTokens)
	p.SetOption("top_p", cfg.TopP)
}

func (p *AnthropicProvider) SetLogger(logger utils.Logger) {
	p.logger = logger
}

func (p *AnthropicProvider) PrepareRequest(prompt, system string, options map[string]any) ([]byte, error) {
	request := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	// The messages API takes the system preamble as a top-level field.
	if system != "" {
		request["system"] = system
	}
	for k, v := range p.options {
		request[k] = v
	}
	for k, v := range options {
		request[k] = v
	}

	return json.Marshal(request)
}

func (p *AnthropicProvider) ParseResponse(body []byte) (string, error) {
	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse anthropic response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s", response.Error.Message)
	}
	for _, block := range response.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in anthropic response")
}
