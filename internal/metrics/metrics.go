package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis pipeline metrics
var (
	// UnitsClaimedTotal tracks units claimed for processing
	UnitsClaimedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_units_claimed_total",
			Help: "Total number of analysis units claimed by type",
		},
		[]string{"analysis_type"},
	)

	// UnitsCompletedTotal tracks units reaching a terminal state
	UnitsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_units_completed_total",
			Help: "Total number of analysis units completed by type and status",
		},
		[]string{"analysis_type", "status"},
	)

	// UnitsSkippedTotal tracks units skipped within a batch
	UnitsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_units_skipped_total",
			Help: "Total number of analysis units skipped by type and reason",
		},
		[]string{"analysis_type", "reason"},
	)

	// BatchDuration tracks batch processing duration
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_batch_duration_seconds",
			Help:    "Batch processing duration in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"analysis_type"},
	)
)

// Billing metrics
var (
	// CreditsChargedTotal tracks credits charged per tenant
	CreditsChargedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_credits_charged_total",
			Help: "Total credits charged by tenant and analysis type",
		},
		[]string{"tenant_id", "analysis_type"},
	)

	// RecurringDisabledTotal tracks breaker activations
	RecurringDisabledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_recurring_disabled_total",
			Help: "Total number of times recurring analysis was disabled for a tenant",
		},
		[]string{"tenant_id"},
	)
)

// LLM provider metrics
var (
	// ProviderRequestsTotal tracks provider calls by status
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_provider_requests_total",
			Help: "Total LLM provider requests by provider and status",
		},
		[]string{"provider", "status"},
	)

	// ProviderRequestDuration tracks provider call latency
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_provider_request_duration_seconds",
			Help:    "LLM provider request duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider"},
	)

	// ProviderTokensTotal tracks token usage
	ProviderTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_provider_tokens_total",
			Help: "Total tokens consumed by provider and direction",
		},
		[]string{"provider", "direction"},
	)
)

// Reclaimer metrics
var (
	// UnitsReclaimedTotal tracks stuck units returned to pending
	UnitsReclaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_units_reclaimed_total",
			Help: "Total number of stuck analysis units returned to pending",
		},
	)
)
