package analyzers

import (
	"context"

	"github.com/fleethealth/api/internal/app"
	"github.com/fleethealth/api/pkg/domain/analysis"
)

// TypeOSUpdate analyzes operating system patch posture.
const TypeOSUpdate = "os_update"

// OSUpdateAnalyzer assesses OS update posture. It runs once per device and
// again only when the reported OS version changed since the last snapshot.
type OSUpdateAnalyzer struct {
	app.BaseAnalyzer
	sanitizer *app.PromptSanitizer
}

// NewOSUpdateAnalyzer creates the OS update analyzer.
func NewOSUpdateAnalyzer(parser *app.ResponseParser, sanitizer *app.PromptSanitizer) *OSUpdateAnalyzer {
	def := analysis.Definition{
		Type:            TypeOSUpdate,
		CreditCost:      1,
		IntervalSeconds: 0,
		MaxTokens:       1500,
		Temperature:     0.1,
	}
	return &OSUpdateAnalyzer{
		BaseAnalyzer: app.NewBaseAnalyzer(def, parser),
		sanitizer:    sanitizer,
	}
}

// ShouldRun reports whether this unit warrants a fresh analysis. The first
// analysis for a device always runs; afterwards only an OS version change
// between snapshots triggers another.
func (a *OSUpdateAnalyzer) ShouldRun(_ context.Context, rc app.RunContext) (bool, error) {
	if len(rc.History.Analyses) == 0 {
		return true, nil
	}

	payload := rc.Unit.RawPayload()
	current, _ := payload["os_version"].(string)
	previous, _ := payload["previous_os_version"].(string)
	if current == "" || previous == "" {
		return true, nil
	}
	return current != previous, nil
}

// CreatePrompt builds the OS update posture prompt.
func (a *OSUpdateAnalyzer) CreatePrompt(rc app.RunContext) (string, error) {
	intro := `Assess this device's operating system update posture. Consider the
installed version against the reported latest available version, pending
update count, time since last successful update, and any failed update
attempts in the telemetry.`
	return buildPrompt(a.sanitizer, rc, intro), nil
}
