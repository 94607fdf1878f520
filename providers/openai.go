package providers

import (
	"encoding/json"
	"fmt"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/utils"
)

// OpenAIProvider implements Provider against the OpenAI chat completions API.
type OpenAIProvider struct {
	apiKey  string
	model   string
	options map[string]any
	logger  utils.Logger
}

// NewOpenAIProvider creates an OpenAI provider bound to an API key and model.
func NewOpenAIProvider(apiKey, model string) Provider {
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		options: make(map[string]any),
		logger:  utils.NewLogger(utils.LogLevelWarn),
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Endpoint() string {
	return "https://api.openai.com/v1/chat/completions"
}

func (p *OpenAIProvider) Headers() map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + p.apiKey,
	}
}

func (p *OpenAIProvider) SetOption(key string, value any) {
	p.options[key] = value
	p.logger.Debug("Option set", "provider", "openai", "key", key, "value", value)
}

func (p *OpenAIProvider) SetDefaultOptions(cfg *config.Config) {
	p.SetOption("temperature", cfg.Temperature)
	p.SetOption("max_tokens", cfg.MaxTokens)
	p.SetOption("top_p", cfg.TopP)
}

func (p *OpenAIProvider) SetLogger(logger utils.Logger) {
	p.logger = logger
}

func (p *OpenAIProvider) PrepareRequest(prompt, system string, options map[string]any) ([]byte, error) {
	messages := make([]map[string]string, 0, 2)
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	request := map[string]any{
		"model":    p.model,
		"messages": messages,
	}
	for k, v := range p.options {
		request[k] = v
	}
	for k, v := range options {
		request[k] = v
	}

	return json.Marshal(request)
}

func (p *OpenAIProvider) ParseResponse(body []byte) (string, error) {
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse openai response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("openai API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return response.Choices[0].Message.Content, nil
}
