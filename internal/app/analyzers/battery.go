package analyzers

import (
	"github.com/fleethealth/api/internal/app"
	"github.com/fleethealth/api/pkg/domain/analysis"
)

// TypeBatteryHealth analyzes battery wear and charging behavior.
const TypeBatteryHealth = "battery_health"

// BatteryAnalyzer assesses battery condition from charge-cycle telemetry.
type BatteryAnalyzer struct {
	app.BaseAnalyzer
	sanitizer *app.PromptSanitizer
}

// NewBatteryAnalyzer creates the battery health analyzer.
func NewBatteryAnalyzer(parser *app.ResponseParser, sanitizer *app.PromptSanitizer) *BatteryAnalyzer {
	def := analysis.Definition{
		Type:            TypeBatteryHealth,
		CreditCost:      2,
		IntervalSeconds: 86400,
		MaxTokens:       2000,
		Temperature:     0.2,
	}
	return &BatteryAnalyzer{
		BaseAnalyzer: app.NewBaseAnalyzer(def, parser),
		sanitizer:    sanitizer,
	}
}

// CreatePrompt builds the battery assessment prompt.
func (a *BatteryAnalyzer) CreatePrompt(rc app.RunContext) (string, error) {
	intro := `Assess this device's battery health. Consider cycle count relative to
design limits, capacity degradation (full charge capacity versus design
capacity), charging patterns, and temperature readings where present.`
	return buildPrompt(a.sanitizer, rc, intro), nil
}
