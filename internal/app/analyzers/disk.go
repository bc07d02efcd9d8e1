package analyzers

import (
	"github.com/fleethealth/api/internal/app"
	"github.com/fleethealth/api/pkg/domain/analysis"
)

// TypeDiskHealth analyzes storage wear and capacity pressure.
const TypeDiskHealth = "disk_health"

// DiskAnalyzer assesses disk condition from SMART and capacity telemetry.
type DiskAnalyzer struct {
	app.BaseAnalyzer
	sanitizer *app.PromptSanitizer
}

// NewDiskAnalyzer creates the disk health analyzer.
func NewDiskAnalyzer(parser *app.ResponseParser, sanitizer *app.PromptSanitizer) *DiskAnalyzer {
	def := analysis.Definition{
		Type:            TypeDiskHealth,
		CreditCost:      2,
		IntervalSeconds: 86400,
		MaxTokens:       2000,
		Temperature:     0.2,
	}
	return &DiskAnalyzer{
		BaseAnalyzer: app.NewBaseAnalyzer(def, parser),
		sanitizer:    sanitizer,
	}
}

// CreatePrompt builds the disk assessment prompt.
func (a *DiskAnalyzer) CreatePrompt(rc app.RunContext) (string, error) {
	intro := `Assess this device's storage health. Consider SMART attributes
(reallocated sectors, pending sectors, wear leveling), free space pressure,
and read/write error rates where present.`
	return buildPrompt(a.sanitizer, rc, intro), nil
}
