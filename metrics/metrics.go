// Package metrics defines the prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderCalls counts completion calls per provider and outcome.
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promptsmith",
		Name:      "provider_calls_total",
		Help:      "Completion calls issued to hosted providers.",
	}, []string{"provider", "outcome"})

	// ProviderLatency tracks completion call round-trip time per provider.
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "promptsmith",
		Name:      "provider_call_seconds",
		Help:      "Round-trip latency of provider completion calls.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"provider"})

	// EvaluationScores records every score produced by an evaluator.
	EvaluationScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "promptsmith",
		Name:      "evaluation_scores",
		Help:      "Scores produced by the scalar and panel evaluators.",
		Buckets:   prometheus.LinearBuckets(0, 1, 11),
	})

	// PanelFallbacks counts panel evaluations served by the deterministic
	// fallback scorer instead of the judge chain.
	PanelFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "promptsmith",
		Name:      "panel_fallbacks_total",
		Help:      "Panel evaluations that fell back to the synthetic scorer.",
	})

	// ParseFallbacks counts score extractions that substituted a default.
	ParseFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "promptsmith",
		Name:      "score_parse_fallbacks_total",
		Help:      "Free-text score extractions that found no number.",
	})
)
