package device

import (
	"context"

	"github.com/fleethealth/api/pkg/domain/shared"
)

// Repository defines read operations over the device hierarchy.
type Repository interface {
	// GetByID retrieves a device by id.
	GetByID(ctx context.Context, id shared.ID) (*Device, error)

	// GetHierarchy resolves the full device -> group -> organisation ->
	// tenant ancestry in one lookup. Returns shared.ErrNotFound when any
	// link in the chain is missing, which the worker treats as a
	// data-integrity problem outside its authority.
	GetHierarchy(ctx context.Context, deviceID shared.ID) (*Hierarchy, error)
}
