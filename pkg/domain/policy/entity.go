// Package policy provides tenant-authored exclusion/priority scoring
// hints, inherited down the device hierarchy.
package policy

import (
	"github.com/fleethealth/api/pkg/domain/shared"
)

// Level identifies which hierarchy level a policy is attached to.
type Level string

const (
	LevelTenant       Level = "tenant"
	LevelOrganisation Level = "organisation"
	LevelGroup        Level = "group"
	LevelDevice       Level = "device"
)

// IsValid checks if the level is valid.
func (l Level) IsValid() bool {
	switch l {
	case LevelTenant, LevelOrganisation, LevelGroup, LevelDevice:
		return true
	}
	return false
}

// ExclusionPolicy holds the free-text scoring hints for one
// (entity, analysis-type) pair at one hierarchy level. At most one
// record exists per pair. Authored by tenant administration; read-only
// from this subsystem.
type ExclusionPolicy struct {
	ID           shared.ID
	Level        Level
	EntityID     shared.ID
	AnalysisType string

	// Exclusions are score-reducing hints; Priorities score-increasing.
	Exclusions string
	Priorities string
}

// IsEmpty reports whether the policy carries no text at all.
func (p ExclusionPolicy) IsEmpty() bool {
	return p.Exclusions == "" && p.Priorities == ""
}
