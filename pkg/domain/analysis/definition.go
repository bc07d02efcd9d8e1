package analysis

import "github.com/fleethealth/api/pkg/domain/shared"

// Definition holds static per-analysis-type metadata. Definitions are
// configuration, registered once at startup and never mutated at runtime.
type Definition struct {
	// Type is the analysis-type identifier, e.g. "battery_health".
	Type string

	// CreditCost is the number of tenant credits charged per run.
	CreditCost int

	// IntervalSeconds is how often upstream ingestion schedules this
	// analysis per device. Zero means run once per device, never again.
	IntervalSeconds int

	// AllowedTags is the HTML tag allow-list applied to result text.
	// Empty means the platform default set.
	AllowedTags []string

	// MaxTokens and Temperature are the sampling parameters passed to
	// the text-generation provider. Zero values fall back to platform
	// defaults.
	MaxTokens   int
	Temperature float64
}

// Validate checks the definition invariants.
func (d Definition) Validate() error {
	if d.Type == "" {
		return shared.NewDomainError("VALIDATION", "definition type is required", shared.ErrValidation)
	}
	if d.CreditCost <= 0 {
		return shared.NewDomainError("VALIDATION", "credit cost must be positive", shared.ErrValidation)
	}
	if d.IntervalSeconds < 0 {
		return shared.NewDomainError("VALIDATION", "interval must not be negative", shared.ErrValidation)
	}
	return nil
}

// RunsOnce reports whether this analysis runs once per device.
func (d Definition) RunsOnce() bool {
	return d.IntervalSeconds == 0
}
