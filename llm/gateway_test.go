package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/providers"
	"github.com/promptsmith/promptsmith/utils"
)

func testGen() config.GenerationConfig {
	return config.GenerationConfig{
		Provider:    "mock",
		Model:       "test-model",
		Temperature: 0.7,
		MaxTokens:   100,
		TopP:        1.0,
	}
}

// newTestGateway wires a Gateway to a mock provider whose endpoint is an
// httptest server answering with the given status.
func newTestGateway(t *testing.T, status int, responses []string) (*Gateway, *providers.MockProvider, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	mock := providers.NewMockProvider(server.URL, "test-model")
	if len(responses) > 0 {
		mock.SetResponses(responses, false)
	}

	registry := providers.NewRegistry()
	registry.Register("mock", func(apiKey, model string) providers.Provider {
		return mock
	})

	cfg := config.New(
		config.SetMaxRetries(2),
		config.SetRetryDelay(time.Millisecond),
	)
	logger := utils.NewLogger(utils.LogLevelOff)
	return NewGateway(cfg, logger, registry), mock, &hits
}

func TestGenerateSuccess(t *testing.T) {
	gateway, mock, hits := newTestGateway(t, http.StatusOK, []string{"generated text"})

	result, err := gateway.Generate(context.Background(), "say something", testGen(), "be helpful")
	require.NoError(t, err)
	assert.Equal(t, "generated text", result)
	assert.Equal(t, int32(1), hits.Load())

	requests := mock.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "say something", requests[0].Prompt)
	assert.Equal(t, "be helpful", requests[0].System)
}

func TestGenerateEmptyCompletionNotRetried(t *testing.T) {
	gateway, _, hits := newTestGateway(t, http.StatusOK, []string{"   \n  "})

	_, err := gateway.Generate(context.Background(), "prompt", testGen(), "")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeEmptyCompletion))
	assert.Equal(t, int32(1), hits.Load(), "empty completions must not be retried")
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	gateway, _, hits := newTestGateway(t, http.StatusInternalServerError, nil)

	_, err := gateway.Generate(context.Background(), "prompt", testGen(), "")
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load(), "expected initial attempt plus two retries")
}

func TestGenerateClientErrorNotRetried(t *testing.T) {
	gateway, _, hits := newTestGateway(t, http.StatusBadRequest, nil)

	_, err := gateway.Generate(context.Background(), "prompt", testGen(), "")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeAPI))
	assert.Equal(t, int32(1), hits.Load())
}

func TestGenerateUnknownProvider(t *testing.T) {
	gateway, _, _ := newTestGateway(t, http.StatusOK, nil)

	gen := testGen()
	gen.Provider = "nonexistent"
	_, err := gateway.Generate(context.Background(), "prompt", gen, "")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeProvider))

	var unsupported *providers.UnsupportedProviderError
	assert.ErrorAs(t, err, &unsupported)
}

func TestGenerateInvalidConfig(t *testing.T) {
	gateway, _, hits := newTestGateway(t, http.StatusOK, []string{"text"})

	gen := testGen()
	gen.MaxTokens = 0
	_, err := gateway.Generate(context.Background(), "prompt", gen, "")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeRequest))
	assert.Equal(t, int32(0), hits.Load())
}

func TestGenerateHonorsContextCancellation(t *testing.T) {
	gateway, _, _ := newTestGateway(t, http.StatusOK, []string{"text"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gateway.Generate(ctx, "prompt", testGen(), "")
	require.Error(t, err)
}
