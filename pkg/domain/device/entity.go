// Package device provides the read-only device hierarchy: a device
// belongs to exactly one group, a group to one organisation, and an
// organisation to one tenant.
package device

import (
	"time"

	"github.com/fleethealth/api/pkg/domain/shared"
)

// Device is a monitored endpoint. Read-only from the analysis
// pipeline's perspective.
type Device struct {
	ID        shared.ID
	GroupID   shared.ID
	Name      string
	OSName    string
	OSVersion string
	CreatedAt time.Time
}

// Group is a named collection of devices within an organisation.
type Group struct {
	ID             shared.ID
	OrganisationID shared.ID
	Name           string
}

// Organisation is a tenant-owned organisational unit.
type Organisation struct {
	ID       shared.ID
	TenantID shared.ID
	Name     string
}

// Hierarchy is the fully resolved ancestry of a device, used by the
// policy merger (top-down walk) and for tenant resolution.
type Hierarchy struct {
	Device       Device
	Group        Group
	Organisation Organisation
	TenantID     shared.ID
}
