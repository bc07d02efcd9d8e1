package app

import (
	"context"

	"github.com/fleethealth/api/pkg/domain/analysis"
	"github.com/fleethealth/api/pkg/domain/device"
	"github.com/fleethealth/api/pkg/domain/shared"
)

// RunContext carries everything an analyzer needs to build its prompt.
type RunContext struct {
	Unit        *analysis.Unit
	Hierarchy   *device.Hierarchy
	History     *analysis.HistoryContext
	PolicyBlock string
	DataSources map[string]any
}

// Analyzer produces a provider-facing prompt for one analysis type and
// parses the provider's response into a validated result.
type Analyzer interface {
	// Type returns the analysis type this analyzer handles.
	Type() string

	// Definition returns the static configuration for this type.
	Definition() analysis.Definition

	// CreatePrompt builds the provider-facing prompt text from the unit's
	// raw payload, historical context, and policy block.
	CreatePrompt(rc RunContext) (string, error)

	// ParseResponse validates the provider's raw text against the result
	// schema and sanitizes the analysis text.
	ParseResponse(rawText string) (*analysis.Result, error)
}

// ConditionalRunner lets an analyzer opt out of execution even when a unit
// has been claimed. Absent this interface, the default is always-run.
type ConditionalRunner interface {
	ShouldRun(ctx context.Context, rc RunContext) (bool, error)
}

// DataSourcer lets an analyzer pull supplementary structured data beyond
// the raw payload before prompting.
type DataSourcer interface {
	GetDataSources(ctx context.Context, deviceID shared.ID) (map[string]any, error)
}
