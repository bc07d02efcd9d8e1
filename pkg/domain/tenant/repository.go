package tenant

import (
	"context"

	"github.com/fleethealth/api/pkg/domain/shared"
)

// Repository defines persistence operations for tenants.
type Repository interface {
	// GetByID retrieves a tenant by id.
	GetByID(ctx context.Context, id shared.ID) (*Tenant, error)

	// DeductCredits atomically deducts cost from the tenant balance iff
	// balance >= cost (a single compare-and-decrement statement; the
	// balance never goes negative under concurrent chargers). Returns
	// true when the charge succeeded.
	DeductCredits(ctx context.Context, id shared.ID, cost int) (bool, error)

	// DisableRecurring flips recurring_enabled from true to false.
	// The update is conditional on the flag currently being true, so
	// the flip fires exactly once regardless of how many concurrent
	// callers observe an exhausted balance. Returns true when this call
	// performed the flip.
	DisableRecurring(ctx context.Context, id shared.ID) (bool, error)
}
