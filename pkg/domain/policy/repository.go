package policy

import (
	"context"

	"github.com/fleethealth/api/pkg/domain/shared"
)

// Repository defines read operations over exclusion policies.
type Repository interface {
	// GetForEntity retrieves the policy for one (level, entity, type)
	// triple. Returns (nil, nil) when no policy exists, which is the
	// common case and not an error.
	GetForEntity(ctx context.Context, level Level, entityID shared.ID, analysisType string) (*ExclusionPolicy, error)
}
