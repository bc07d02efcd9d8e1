package app

import (
	"context"
	"fmt"

	"github.com/fleethealth/api/internal/metrics"
	"github.com/fleethealth/api/pkg/domain/shared"
	"github.com/fleethealth/api/pkg/domain/tenant"
	"github.com/fleethealth/api/pkg/logger"
)

// BillingService charges tenants for analyses. Charges happen before the
// analyzer runs and are not refunded on downstream failure.
type BillingService struct {
	tenants tenant.Repository
	logger  *logger.Logger
}

// NewBillingService creates a new billing service.
func NewBillingService(tenants tenant.Repository, log *logger.Logger) *BillingService {
	return &BillingService{
		tenants: tenants,
		logger:  log.With("component", "billing_service"),
	}
}

// TryCharge atomically deducts cost from the tenant's balance. Returns true
// when the charge succeeded. On insufficient balance it returns false and,
// the first time that happens while recurring analyses are enabled, disables
// recurring analyses for the tenant so later passes skip it cheaply.
func (s *BillingService) TryCharge(ctx context.Context, tenantID shared.ID, analysisType string, cost int) (bool, error) {
	if cost <= 0 {
		return false, fmt.Errorf("cost must be positive, got %d", cost)
	}

	charged, err := s.tenants.DeductCredits(ctx, tenantID, cost)
	if err != nil {
		return false, fmt.Errorf("deduct credits: %w", err)
	}

	if charged {
		metrics.CreditsChargedTotal.WithLabelValues(tenantID.String(), analysisType).Add(float64(cost))
		return true, nil
	}

	disabled, err := s.tenants.DisableRecurring(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("disable recurring: %w", err)
	}
	if disabled {
		metrics.RecurringDisabledTotal.WithLabelValues(tenantID.String()).Inc()
		s.logger.Warn("insufficient balance, recurring analyses disabled",
			"tenant_id", tenantID,
			"analysis_type", analysisType,
			"cost", cost,
		)
	}

	return false, nil
}
