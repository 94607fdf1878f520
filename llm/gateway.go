// Package llm implements the provider gateway: a uniform, retrying call
// interface over the registered text-generation providers.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/metrics"
	"github.com/promptsmith/promptsmith/providers"
	"github.com/promptsmith/promptsmith/utils"
)

// Generator is the call interface the rest of the service depends on.
type Generator interface {
	// Generate returns the provider's top completion for the prompt.
	Generate(ctx context.Context, prompt string, gen config.GenerationConfig, system string) (string, error)
}

// Gateway dispatches completion calls to the provider selected by each
// request's GenerationConfig.
type Gateway struct {
	registry   *providers.Registry
	client     *http.Client
	logger     utils.Logger
	cfg        *config.Config
	maxRetries int
	retryDelay time.Duration
}

// NewGateway creates a Gateway backed by the given provider registry.
func NewGateway(cfg *config.Config, logger utils.Logger, registry *providers.Registry) *Gateway {
	return &Gateway{
		registry:   registry,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		cfg:        cfg,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Generate issues one completion call, retrying transport and server-side
// failures up to the configured limit. Empty or whitespace-only completions
// and client-side API rejections are not retried.
func (g *Gateway) Generate(ctx context.Context, prompt string, gen config.GenerationConfig, system string) (string, error) {
	if err := gen.Validate(); err != nil {
		return "", NewGatewayError(ErrorTypeRequest, "invalid generation config", err)
	}

	provider, err := g.registry.Get(gen.Provider, g.cfg.APIKeys[gen.Provider], gen.Model)
	if err != nil {
		return "", NewGatewayError(ErrorTypeProvider, "provider lookup failed", err)
	}
	provider.SetLogger(g.logger)
	provider.SetDefaultOptions(g.cfg)

	options := map[string]any{
		"temperature": gen.Temperature,
		"max_tokens":  gen.MaxTokens,
		"top_p":       gen.TopP,
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		g.logger.Debug("Generating text", "provider", provider.Name(), "model", gen.Model, "attempt", attempt+1)

		result, retryable, err := g.attempt(ctx, provider, prompt, system, options)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable {
			return "", err
		}
		g.logger.Warn("Generation attempt failed", "provider", provider.Name(), "error", err, "attempt", attempt+1)

		if attempt < g.maxRetries {
			if err := g.wait(ctx); err != nil {
				return "", NewGatewayError(ErrorTypeTimeout, "canceled while waiting to retry", err)
			}
		}
	}

	return "", fmt.Errorf("failed to generate after %d attempts: %w", g.maxRetries+1, lastErr)
}

func (g *Gateway) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.retryDelay):
		return nil
	}
}

// attempt performs a single completion round trip. The second return value
// reports whether the failure may be retried.
func (g *Gateway) attempt(ctx context.Context, provider providers.Provider, prompt, system string, options map[string]any) (string, bool, error) {
	reqBody, err := provider.PrepareRequest(prompt, system, options)
	if err != nil {
		return "", false, NewGatewayError(ErrorTypeRequest, "failed to prepare request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.Endpoint(), bytes.NewReader(reqBody))
	if err != nil {
		return "", false, NewGatewayError(ErrorTypeRequest, "failed to create request", err)
	}
	for k, v := range provider.Headers() {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.ProviderLatency.WithLabelValues(provider.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(provider.Name(), "transport_error").Inc()
		if ctx.Err() != nil {
			return "", false, NewGatewayError(ErrorTypeTimeout, "request canceled or deadline exceeded", ctx.Err())
		}
		return "", true, NewGatewayError(ErrorTypeRequest, "failed to send request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(provider.Name(), "read_error").Inc()
		return "", true, NewGatewayError(ErrorTypeResponse, "failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderCalls.WithLabelValues(provider.Name(), "api_error").Inc()
		g.logger.Error("API error", "provider", provider.Name(), "status", resp.StatusCode, "body", string(body))
		apiErr := NewGatewayError(ErrorTypeAPI, fmt.Sprintf("API error: status code %d", resp.StatusCode), nil)
		// Server-side failures are worth retrying; client-side rejections are not.
		return "", resp.StatusCode >= http.StatusInternalServerError, apiErr
	}

	result, err := provider.ParseResponse(body)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(provider.Name(), "parse_error").Inc()
		return "", false, NewGatewayError(ErrorTypeResponse, "failed to parse response", err)
	}

	if strings.TrimSpace(result) == "" {
		metrics.ProviderCalls.WithLabelValues(provider.Name(), "empty").Inc()
		return "", false, NewGatewayError(ErrorTypeEmptyCompletion, "provider returned empty completion", nil)
	}

	metrics.ProviderCalls.WithLabelValues(provider.Name(), "ok").Inc()
	return result, false, nil
}
