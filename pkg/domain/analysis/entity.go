// Package analysis provides domain entities for the device-health
// analysis pipeline: queued analysis units, validated results, and
// per-type analyzer metadata.
package analysis

import (
	"time"

	"github.com/fleethealth/api/pkg/domain/shared"
)

// =============================================================================
// Unit State
// =============================================================================

// UnitState represents the processing state of an analysis unit.
type UnitState string

const (
	UnitStatePending    UnitState = "pending"
	UnitStateProcessing UnitState = "processing"
	UnitStateProcessed  UnitState = "processed"
	UnitStateFailed     UnitState = "failed"
)

// IsValid checks if the state is valid.
func (s UnitState) IsValid() bool {
	switch s {
	case UnitStatePending, UnitStateProcessing, UnitStateProcessed, UnitStateFailed:
		return true
	}
	return false
}

// IsTerminal returns true if the state is final (processed or failed).
func (s UnitState) IsTerminal() bool {
	return s == UnitStateProcessed || s == UnitStateFailed
}

// canTransitionTo enforces the forward-only state machine:
// pending -> processing -> processed|failed.
func (s UnitState) canTransitionTo(next UnitState) bool {
	switch s {
	case UnitStatePending:
		return next == UnitStateProcessing
	case UnitStateProcessing:
		return next == UnitStateProcessed || next == UnitStateFailed
	default:
		return false
	}
}

// =============================================================================
// Analysis Unit Entity
// =============================================================================

// Unit represents one queued piece of device telemetry awaiting
// interpretation by an analyzer.
type Unit struct {
	id           shared.ID
	deviceID     shared.ID
	analysisType string

	rawPayload map[string]any

	state       UnitState
	resultScore *int
	resultText  string

	createdAt  time.Time
	analyzedAt *time.Time
	updatedAt  time.Time
}

// NewUnit creates a new pending analysis unit.
func NewUnit(deviceID shared.ID, analysisType string, rawPayload map[string]any) (*Unit, error) {
	if analysisType == "" {
		return nil, shared.NewDomainError("VALIDATION", "analysis type is required", shared.ErrValidation)
	}
	if deviceID.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "device id is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Unit{
		id:           shared.NewID(),
		deviceID:     deviceID,
		analysisType: analysisType,
		rawPayload:   rawPayload,
		state:        UnitStatePending,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstituteUnit creates a Unit from stored values.
func ReconstituteUnit(
	id, deviceID shared.ID,
	analysisType string,
	rawPayload map[string]any,
	state UnitState,
	resultScore *int,
	resultText string,
	createdAt time.Time,
	analyzedAt *time.Time,
	updatedAt time.Time,
) *Unit {
	return &Unit{
		id:           id,
		deviceID:     deviceID,
		analysisType: analysisType,
		rawPayload:   rawPayload,
		state:        state,
		resultScore:  resultScore,
		resultText:   resultText,
		createdAt:    createdAt,
		analyzedAt:   analyzedAt,
		updatedAt:    updatedAt,
	}
}

// Accessors

func (u *Unit) ID() shared.ID            { return u.id }
func (u *Unit) DeviceID() shared.ID      { return u.deviceID }
func (u *Unit) AnalysisType() string     { return u.analysisType }
func (u *Unit) RawPayload() map[string]any { return u.rawPayload }
func (u *Unit) State() UnitState         { return u.state }
func (u *Unit) ResultScore() *int        { return u.resultScore }
func (u *Unit) ResultText() string       { return u.resultText }
func (u *Unit) CreatedAt() time.Time     { return u.createdAt }
func (u *Unit) AnalyzedAt() *time.Time   { return u.analyzedAt }
func (u *Unit) UpdatedAt() time.Time     { return u.updatedAt }

// MarkProcessing transitions the unit from pending to processing.
func (u *Unit) MarkProcessing() error {
	if !u.state.canTransitionTo(UnitStateProcessing) {
		return shared.NewDomainError("STATE", "unit is not pending", ErrInvalidTransition)
	}
	u.state = UnitStateProcessing
	u.updatedAt = time.Now().UTC()
	return nil
}

// MarkProcessed records a validated result and transitions the unit to
// its processed terminal state.
func (u *Unit) MarkProcessed(result Result) error {
	if !u.state.canTransitionTo(UnitStateProcessed) {
		return shared.NewDomainError("STATE", "unit is not processing", ErrInvalidTransition)
	}
	now := time.Now().UTC()
	score := result.Score
	u.state = UnitStateProcessed
	u.resultScore = &score
	u.resultText = result.Analysis
	u.analyzedAt = &now
	u.updatedAt = now
	return nil
}

// MarkFailed records a failure reason and transitions the unit to its
// failed terminal state. The score is forced to zero.
func (u *Unit) MarkFailed(reason string) error {
	if !u.state.canTransitionTo(UnitStateFailed) {
		return shared.NewDomainError("STATE", "unit is not processing", ErrInvalidTransition)
	}
	now := time.Now().UTC()
	zero := 0
	u.state = UnitStateFailed
	u.resultScore = &zero
	u.resultText = "Analysis failed: " + reason
	u.analyzedAt = &now
	u.updatedAt = now
	return nil
}
