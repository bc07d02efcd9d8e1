package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleethealth/api/internal/infra/jobs"
	"github.com/fleethealth/api/internal/infra/llm"
	"github.com/fleethealth/api/internal/metrics"
	"github.com/fleethealth/api/pkg/domain/analysis"
	"github.com/fleethealth/api/pkg/domain/device"
	"github.com/fleethealth/api/pkg/domain/shared"
	"github.com/fleethealth/api/pkg/domain/tenant"
	"github.com/fleethealth/api/pkg/logger"
)

// attemptsPerUnit bounds claim attempts per batch slot so skips cannot
// stall a batch forever.
const attemptsPerUnit = 5

const systemPrompt = `You are a device-health analyst for an IT fleet monitoring platform.
You receive telemetry from a single device and produce a health assessment.
Respond with a single JSON object of the form
{"analysis": "<HTML-formatted assessment, 50-10000 characters>", "score": <integer 1-100>}
where a higher score means better health. Output nothing but the JSON object.`

// BatchStats summarizes one batch pass.
type BatchStats struct {
	Claimed   int
	Processed int
	Failed    int
	Skipped   int
}

// Completions counts units that reached a terminal state this pass.
func (s BatchStats) Completions() int {
	return s.Processed + s.Failed
}

// AnalysisService runs the worker loop: claim, gate, prompt, persist.
type AnalysisService struct {
	units    analysis.Repository
	tenants  tenant.Repository
	devices  device.Repository
	registry *AnalyzerRegistry
	billing  *BillingService
	history  *HistoryService
	policies *PolicyMerger
	provider llm.Provider
	jobs     *jobs.Client
	logger   *logger.Logger
}

// NewAnalysisService wires the worker loop. The jobs client is optional;
// when nil, aggregate recompute signals are skipped.
func NewAnalysisService(
	units analysis.Repository,
	tenants tenant.Repository,
	devices device.Repository,
	registry *AnalyzerRegistry,
	billing *BillingService,
	history *HistoryService,
	policies *PolicyMerger,
	provider llm.Provider,
	jobsClient *jobs.Client,
	log *logger.Logger,
) *AnalysisService {
	return &AnalysisService{
		units:    units,
		tenants:  tenants,
		devices:  devices,
		registry: registry,
		billing:  billing,
		history:  history,
		policies: policies,
		provider: provider,
		jobs:     jobsClient,
		logger:   log.With("component", "analysis_service"),
	}
}

// RunBatch processes up to batchSize units of the given analysis type.
// An unknown analysis type aborts the batch before any unit is claimed.
func (s *AnalysisService) RunBatch(ctx context.Context, analysisType string, batchSize int) (BatchStats, error) {
	var stats BatchStats

	analyzer, err := s.registry.Get(analysisType)
	if err != nil {
		return stats, err
	}

	start := time.Now()
	defer func() {
		metrics.BatchDuration.WithLabelValues(analysisType).Observe(time.Since(start).Seconds())
	}()

	var skipSet []shared.ID
	maxAttempts := attemptsPerUnit * batchSize

	for attempt := 0; attempt < maxAttempts && stats.Completions() < batchSize; attempt++ {
		unit, err := s.units.ClaimNext(ctx, analysisType, skipSet)
		if err != nil {
			return stats, fmt.Errorf("claim next unit: %w", err)
		}
		if unit == nil {
			break
		}

		stats.Claimed++
		metrics.UnitsClaimedTotal.WithLabelValues(analysisType).Inc()

		outcome := s.processUnit(ctx, analyzer, unit)
		switch outcome {
		case outcomeProcessed:
			stats.Processed++
			metrics.UnitsCompletedTotal.WithLabelValues(analysisType, "processed").Inc()
		case outcomeFailed:
			stats.Failed++
			metrics.UnitsCompletedTotal.WithLabelValues(analysisType, "failed").Inc()
		default:
			stats.Skipped++
			skipSet = append(skipSet, unit.ID())
		}
	}

	s.logger.Info("batch completed",
		"analysis_type", analysisType,
		"claimed", stats.Claimed,
		"processed", stats.Processed,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
	)

	return stats, nil
}

type unitOutcome int

const (
	outcomeSkipped unitOutcome = iota
	outcomeProcessed
	outcomeFailed
)

// processUnit runs one claimed unit through eligibility checks, billing,
// prompting, and persistence. Skipped units stay in processing for the
// stuck-unit reclaimer to return to pending.
func (s *AnalysisService) processUnit(ctx context.Context, analyzer Analyzer, unit *analysis.Unit) unitOutcome {
	log := s.logger.With("unit_id", unit.ID(), "analysis_type", unit.AnalysisType())

	hierarchy, err := s.devices.GetHierarchy(ctx, unit.DeviceID())
	if err != nil {
		if shared.IsNotFound(err) {
			log.Warn("device hierarchy incomplete, skipping unit", "device_id", unit.DeviceID())
			metrics.UnitsSkippedTotal.WithLabelValues(unit.AnalysisType(), "missing_hierarchy").Inc()
			return outcomeSkipped
		}
		log.Error("hierarchy lookup failed", "error", err)
		metrics.UnitsSkippedTotal.WithLabelValues(unit.AnalysisType(), "hierarchy_error").Inc()
		return outcomeSkipped
	}

	owner, err := s.tenants.GetByID(ctx, hierarchy.TenantID)
	if err != nil {
		if shared.IsNotFound(err) {
			log.Warn("owning tenant missing, skipping unit", "tenant_id", hierarchy.TenantID)
			metrics.UnitsSkippedTotal.WithLabelValues(unit.AnalysisType(), "missing_tenant").Inc()
			return outcomeSkipped
		}
		log.Error("tenant lookup failed", "error", err)
		metrics.UnitsSkippedTotal.WithLabelValues(unit.AnalysisType(), "tenant_error").Inc()
		return outcomeSkipped
	}

	if !owner.RecurringEnabled() || !owner.AnalysisTypeEnabled(unit.AnalysisType()) {
		metrics.UnitsSkippedTotal.WithLabelValues(unit.AnalysisType(), "tenant_disabled").Inc()
		return outcomeSkipped
	}

	rc := RunContext{
		Unit:      unit,
		Hierarchy: hierarchy,
		History:   s.history.GetContext(ctx, unit.DeviceID(), unit.AnalysisType()),
	}

	if cr, ok := analyzer.(ConditionalRunner); ok {
		run, err := cr.ShouldRun(ctx, rc)
		if err != nil {
			log.Error("eligibility check failed", "error", err)
			metrics.UnitsSkippedTotal.WithLabelValues(unit.AnalysisType(), "eligibility_error").Inc()
			return outcomeSkipped
		}
		if !run {
			metrics.UnitsSkippedTotal.WithLabelValues(unit.AnalysisType(), "not_eligible").Inc()
			return outcomeSkipped
		}
	}

	charged, err := s.billing.TryCharge(ctx, hierarchy.TenantID, unit.AnalysisType(), analyzer.Definition().CreditCost)
	if err != nil {
		log.Error("charge attempt failed", "tenant_id", hierarchy.TenantID, "error", err)
		metrics.UnitsSkippedTotal.WithLabelValues(unit.AnalysisType(), "billing_error").Inc()
		return outcomeSkipped
	}
	if !charged {
		metrics.UnitsSkippedTotal.WithLabelValues(unit.AnalysisType(), "insufficient_balance").Inc()
		return outcomeSkipped
	}

	// The tenant has been charged. From here on, failures mark the unit
	// failed rather than skipping it; the charge is not refunded.
	policyBlock, err := s.policies.BuildPolicyBlock(ctx, hierarchy, unit.AnalysisType())
	if err != nil {
		return s.failUnit(ctx, log, unit, fmt.Sprintf("policy lookup failed: %v", err))
	}
	rc.PolicyBlock = policyBlock

	if ds, ok := analyzer.(DataSourcer); ok {
		sources, err := ds.GetDataSources(ctx, unit.DeviceID())
		if err != nil {
			return s.failUnit(ctx, log, unit, fmt.Sprintf("data source fetch failed: %v", err))
		}
		rc.DataSources = sources
	}

	prompt, err := analyzer.CreatePrompt(rc)
	if err != nil {
		return s.failUnit(ctx, log, unit, fmt.Sprintf("prompt creation failed: %v", err))
	}

	def := analyzer.Definition()
	provStart := time.Now()
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    def.MaxTokens,
		Temperature:  def.Temperature,
		JSONMode:     true,
	})
	metrics.ProviderRequestDuration.WithLabelValues(s.provider.Name()).Observe(time.Since(provStart).Seconds())
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(s.provider.Name(), "error").Inc()
		return s.failUnit(ctx, log, unit, fmt.Sprintf("provider call failed: %v", err))
	}
	metrics.ProviderRequestsTotal.WithLabelValues(s.provider.Name(), "ok").Inc()
	metrics.ProviderTokensTotal.WithLabelValues(s.provider.Name(), "prompt").Add(float64(resp.PromptTokens))
	metrics.ProviderTokensTotal.WithLabelValues(s.provider.Name(), "completion").Add(float64(resp.CompletionTokens))

	result, err := analyzer.ParseResponse(resp.Content)
	if err != nil {
		return s.failUnit(ctx, log, unit, fmt.Sprintf("response validation failed: %v", err))
	}

	if err := unit.MarkProcessed(*result); err != nil {
		return s.failUnit(ctx, log, unit, fmt.Sprintf("state transition failed: %v", err))
	}
	if err := s.units.UpdateResult(ctx, unit); err != nil {
		log.Error("result persistence failed", "error", err)
		return outcomeSkipped
	}

	s.signalAggregateRecompute(ctx, unit, hierarchy)
	s.history.Invalidate(ctx, unit.DeviceID(), unit.AnalysisType())

	log.Info("unit processed", "score", *unit.ResultScore())
	return outcomeProcessed
}

// failUnit persists the failed terminal state with a zero score. The
// charge already taken for this unit is not refunded.
func (s *AnalysisService) failUnit(ctx context.Context, log *logger.Logger, unit *analysis.Unit, reason string) unitOutcome {
	log.Error("unit failed", "reason", reason)

	if err := unit.MarkFailed(reason); err != nil {
		log.Error("failed-state transition rejected", "error", err)
		return outcomeSkipped
	}
	if err := s.units.UpdateResult(ctx, unit); err != nil {
		log.Error("failed-state persistence failed", "error", err)
		return outcomeSkipped
	}

	s.history.Invalidate(ctx, unit.DeviceID(), unit.AnalysisType())
	return outcomeFailed
}

// signalAggregateRecompute fires the downstream rolling-average recompute.
// Enqueue failures are logged, never surfaced: aggregates are eventually
// consistent and the reconciler recomputes them on its own schedule.
func (s *AnalysisService) signalAggregateRecompute(ctx context.Context, unit *analysis.Unit, h *device.Hierarchy) {
	if s.jobs == nil {
		return
	}

	err := s.jobs.EnqueueAggregateRecompute(ctx, jobs.AggregateRecomputePayload{
		DeviceID:       h.Device.ID.String(),
		GroupID:        h.Group.ID.String(),
		OrganisationID: h.Organisation.ID.String(),
		TenantID:       h.TenantID.String(),
		AnalysisType:   unit.AnalysisType(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("aggregate recompute enqueue failed",
			"unit_id", unit.ID(),
			"error", err,
		)
	}
}
