package analysis

import (
	"context"
	"time"

	"github.com/fleethealth/api/pkg/domain/shared"
)

// Repository defines persistence operations for analysis units.
type Repository interface {
	// ClaimNext atomically selects the oldest pending unit of the given
	// type, excluding the given ids, and marks it processing. Selection
	// and state flip happen in one transaction; rows held by concurrent
	// claimers are invisible (SKIP LOCKED contract). Returns (nil, nil)
	// when no eligible unit exists.
	ClaimNext(ctx context.Context, analysisType string, excludeIDs []shared.ID) (*Unit, error)

	// GetByID retrieves a unit by id.
	GetByID(ctx context.Context, id shared.ID) (*Unit, error)

	// UpdateResult persists a unit's terminal state, score, result text
	// and analyzed timestamp. The update is conditional on the unit
	// still being in the processing state.
	UpdateResult(ctx context.Context, unit *Unit) error

	// ListRecentProcessed returns the limit most recent processed units
	// for a (device, type) pair, newest first.
	ListRecentProcessed(ctx context.Context, deviceID shared.ID, analysisType string, limit int) ([]*Unit, error)

	// ReclaimStuck flips units that have been processing longer than
	// the given threshold back to pending, up to limit rows. Returns
	// the number of reclaimed units. This is the external reconciliation
	// pass; the per-batch core never calls it.
	ReclaimStuck(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}
