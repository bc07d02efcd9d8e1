// Package tenant provides the tenant entity and billing-facing
// repository contracts for the analysis pipeline.
package tenant

import (
	"time"

	"github.com/fleethealth/api/pkg/domain/shared"
)

// Tenant owns a consumable credit balance, a recurring-analyses flag,
// and a per-analysis-type enablement map. Balance and flag are mutated
// here only through the repository's atomic operations; administration
// surfaces (top-ups, re-enabling) live outside this subsystem.
type Tenant struct {
	id               shared.ID
	name             string
	creditBalance    int
	recurringEnabled bool
	analysisTypes    map[string]bool
	createdAt        time.Time
	updatedAt        time.Time
}

// NewTenant creates a tenant with an initial credit balance.
func NewTenant(name string, creditBalance int) (*Tenant, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION", "tenant name is required", shared.ErrValidation)
	}
	if creditBalance < 0 {
		return nil, shared.NewDomainError("VALIDATION", "credit balance must not be negative", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Tenant{
		id:               shared.NewID(),
		name:             name,
		creditBalance:    creditBalance,
		recurringEnabled: true,
		analysisTypes:    map[string]bool{},
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// Reconstitute creates a Tenant from stored values.
func Reconstitute(
	id shared.ID,
	name string,
	creditBalance int,
	recurringEnabled bool,
	analysisTypes map[string]bool,
	createdAt, updatedAt time.Time,
) *Tenant {
	if analysisTypes == nil {
		analysisTypes = map[string]bool{}
	}
	return &Tenant{
		id:               id,
		name:             name,
		creditBalance:    creditBalance,
		recurringEnabled: recurringEnabled,
		analysisTypes:    analysisTypes,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

func (t *Tenant) ID() shared.ID          { return t.id }
func (t *Tenant) Name() string           { return t.name }
func (t *Tenant) CreditBalance() int     { return t.creditBalance }
func (t *Tenant) RecurringEnabled() bool { return t.recurringEnabled }
func (t *Tenant) CreatedAt() time.Time   { return t.createdAt }
func (t *Tenant) UpdatedAt() time.Time   { return t.updatedAt }

// AnalysisTypeEnabled reports whether the given analysis type is
// enabled for this tenant. Types absent from the map default to enabled.
func (t *Tenant) AnalysisTypeEnabled(analysisType string) bool {
	enabled, ok := t.analysisTypes[analysisType]
	if !ok {
		return true
	}
	return enabled
}
