package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/utils"
)

// MockProvider implements the Provider interface for testing. It serves a
// queue of preset responses and records every prepared request.
type MockProvider struct {
	endpoint string
	model    string
	options  map[string]any
	logger   utils.Logger

	mutex         sync.Mutex
	responseText  string
	shouldError   bool
	errorMsg      string
	responses     []string
	currentIndex  int
	loopResponses bool
	requests      []MockRequest
}

// MockRequest captures the inputs of one PrepareRequest call.
type MockRequest struct {
	Prompt  string
	System  string
	Options map[string]any
}

// NewMockProvider creates a mock provider serving a fixed default response.
func NewMockProvider(endpoint, model string) *MockProvider {
	return &MockProvider{
		endpoint:     endpoint,
		model:        model,
		options:      make(map[string]any),
		logger:       utils.NewLogger(utils.LogLevelOff),
		responseText: "This is a mock response",
	}
}

// SetMockResponse configures the default response text.
func (p *MockProvider) SetMockResponse(response string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.responseText = response
}

// SetMockError configures the mock to fail request preparation.
func (p *MockProvider) SetMockError(shouldError bool, errorMsg string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.shouldError = shouldError
	p.errorMsg = errorMsg
}

// SetResponses configures a list of responses returned in sequence. With
// loop set, the queue wraps around instead of erroring when exhausted.
func (p *MockProvider) SetResponses(responses []string, loop bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.responses = responses
	p.currentIndex = 0
	p.loopResponses = loop
}

// Requests returns a copy of all recorded PrepareRequest inputs.
func (p *MockProvider) Requests() []MockRequest {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	out := make([]MockRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *MockProvider) Name() string { return "mock" }
func (p *MockProvider) Endpoint() string { return p.endpoint }
func (p *MockProvider) SetLogger(logger utils.Logger) { p.logger = logger }
func (p *MockProvider) SetDefaultOptions(*config.Config) {}
func (p *MockProvider) SetOption(key string, value any) { p.options[key] = value }

func (p *MockProvider) Headers() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

func (p *MockProvider) PrepareRequest(prompt, system string, options map[string]any) ([]byte, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.shouldError {
		return nil, errors.New(p.errorMsg)
	}

	p.requests = append(p.requests, MockRequest{Prompt: prompt, System: system, Options: options})

	body := map[string]any{
		"model":  p.model,
		"prompt": prompt,
	}
	return json.Marshal(body)
}

// nextResponse pops the next queued response, looping or erroring when the
// queue runs out depending on configuration.
func (p *MockProvider) nextResponse() (string, error) {
	if len(p.responses) == 0 {
		return p.responseText, nil
	}
	if p.currentIndex >= len(p.responses) {
		if !p.loopResponses {
			return "", fmt.Errorf("mock provider exhausted after %d responses", len(p.responses))
		}
		p.currentIndex = 0
	}
	response := p.responses[p.currentIndex]
	p.currentIndex++
	return response, nil
}

// ParseResponse ignores the wire body and serves the configured response.
func (p *MockProvider) ParseResponse([]byte) (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.nextResponse()
}
