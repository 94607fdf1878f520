package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryKnownProviders(t *testing.T) {
	registry := NewRegistry()

	for _, name := range []string{"openai", "anthropic"} {
		provider, err := registry.Get(name, "test-key", "test-model")
		require.NoError(t, err, "provider %s should be registered", name)
		assert.Equal(t, name, provider.Name())
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("dalle", "key", "model")
	require.Error(t, err)

	var unsupported *UnsupportedProviderError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "dalle", unsupported.Provider)
}

func TestRegistryCustomConstructor(t *testing.T) {
	registry := NewRegistry()
	registry.Register("mock", func(apiKey, model string) Provider {
		return NewMockProvider("http://localhost/mock", model)
	})

	provider, err := registry.Get("mock", "", "test-model")
	require.NoError(t, err)
	assert.Equal(t, "mock", provider.Name())
}

func TestOpenAIPrepareRequest(t *testing.T) {
	provider := NewOpenAIProvider("sk-test", "gpt-4o-mini")

	body, err := provider.PrepareRequest("hello", "be brief", map[string]any{
		"temperature": 0.2,
		"max_tokens":  50,
	})
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "gpt-4o-mini", req["model"])
	assert.InDelta(t, 0.2, req["temperature"], 0.0001)

	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "be brief", first["content"])
	second := messages[1].(map[string]any)
	assert.Equal(t, "user", second["role"])
	assert.Equal(t, "hello", second["content"])
}

func TestOpenAIParseResponse(t *testing.T) {
	provider := NewOpenAIProvider("sk-test", "gpt-4o-mini")

	body := []byte(`{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`)
	text, err := provider.ParseResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
}

func TestOpenAIParseResponseAPIError(t *testing.T) {
	provider := NewOpenAIProvider("sk-test", "gpt-4o-mini")

	body := []byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	_, err := provider.ParseResponse(body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAnthropicPrepareRequest(t *testing.T) {
	provider := NewAnthropicProvider("ak-test", "claude-sonnet-4-20250514")

	body, err := provider.PrepareRequest("hello", "be brief", map[string]any{
		"max_tokens": 100,
	})
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "be brief", req["system"])
	messages := req["messages"].([]any)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
}

func TestAnthropicHeaders(t *testing.T) {
	provider := NewAnthropicProvider("ak-test", "claude-sonnet-4-20250514")

	headers := provider.Headers()
	assert.Equal(t, "ak-test", headers["x-api-key"])
	assert.Equal(t, "2023-06-01", headers["anthropic-version"])
	assert.NotContains(t, headers, "Authorization")
}

func TestAnthropicParseResponse(t *testing.T) {
	provider := NewAnthropicProvider("ak-test", "claude-sonnet-4-20250514")

	body := []byte(`{"content":[{"type":"thinking","thinking":"..."},{"type":"text","text":"final answer"}]}`)
	text, err := provider.ParseResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "final answer", text)
}

func TestMockProviderServesResponseQueue(t *testing.T) {
	provider := NewMockProvider("http://localhost/mock", "test-model")
	provider.SetResponses([]string{"one", "two"}, false)

	first, err := provider.ParseResponse(nil)
	require.NoError(t, err)
	second, err := provider.ParseResponse(nil)
	require.NoError(t, err)
	assert.Equal(t, "one", first)
	assert.Equal(t, "two", second)
}

func TestMockProviderRecordsRequests(t *testing.T) {
	provider := NewMockProvider("http://localhost/mock", "test-model")
	provider.SetMockResponse("ok")

	_, err := provider.PrepareRequest("prompt text", "system text", map[string]any{"temperature": 0.5})
	require.NoError(t, err)

	requests := provider.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "prompt text", requests[0].Prompt)
	assert.Equal(t, "system text", requests[0].System)
}
