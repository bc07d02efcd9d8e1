package analyzers

import (
	"context"
	"fmt"

	"github.com/fleethealth/api/internal/app"
	"github.com/fleethealth/api/pkg/domain/analysis"
	"github.com/fleethealth/api/pkg/domain/shared"
)

// TypeNetworkHealth analyzes connectivity quality and stability.
const TypeNetworkHealth = "network_health"

// StatsSource provides aggregated connectivity statistics beyond the raw
// payload snapshot.
type StatsSource interface {
	RecentNetworkStats(ctx context.Context, deviceID shared.ID) (map[string]any, error)
}

// NetworkAnalyzer assesses connectivity from the snapshot payload plus
// aggregated stats pulled at run time.
type NetworkAnalyzer struct {
	app.BaseAnalyzer
	sanitizer *app.PromptSanitizer
	stats     StatsSource
}

// NewNetworkAnalyzer creates the network health analyzer.
func NewNetworkAnalyzer(parser *app.ResponseParser, sanitizer *app.PromptSanitizer, stats StatsSource) *NetworkAnalyzer {
	def := analysis.Definition{
		Type:            TypeNetworkHealth,
		CreditCost:      3,
		IntervalSeconds: 43200,
		MaxTokens:       2000,
		Temperature:     0.2,
	}
	return &NetworkAnalyzer{
		BaseAnalyzer: app.NewBaseAnalyzer(def, parser),
		sanitizer:    sanitizer,
		stats:        stats,
	}
}

// GetDataSources pulls the device's aggregated connectivity statistics.
func (a *NetworkAnalyzer) GetDataSources(ctx context.Context, deviceID shared.ID) (map[string]any, error) {
	stats, err := a.stats.RecentNetworkStats(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("recent network stats: %w", err)
	}
	return map[string]any{"network_stats": stats}, nil
}

// CreatePrompt builds the connectivity assessment prompt.
func (a *NetworkAnalyzer) CreatePrompt(rc app.RunContext) (string, error) {
	intro := `Assess this device's network health. Consider signal strength, packet
loss, latency, disconnect frequency in the snapshot telemetry, and the
aggregated connectivity statistics in the supplementary data.`
	return buildPrompt(a.sanitizer, rc, intro), nil
}
