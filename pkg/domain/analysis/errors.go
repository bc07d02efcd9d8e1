package analysis

import "errors"

// Domain errors for the analysis pipeline.
var (
	// ErrInvalidTransition is returned when a unit state change would
	// move backward or skip the processing state.
	ErrInvalidTransition = errors.New("invalid unit state transition")

	// ErrUnknownAnalyzerType is returned when no analyzer is registered
	// for a unit's analysis type. This is a configuration error and
	// aborts the whole batch.
	ErrUnknownAnalyzerType = errors.New("unknown analyzer type")

	// ErrResponseValidation is returned when a provider response fails
	// schema validation.
	ErrResponseValidation = errors.New("response validation failed")

	// ErrClaimConflict is returned internally when a conditional claim
	// update affected zero rows because another worker won the race.
	ErrClaimConflict = errors.New("unit claimed by another worker")
)
