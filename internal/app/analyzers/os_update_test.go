package analyzers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleethealth/api/internal/app"
	"github.com/fleethealth/api/pkg/domain/analysis"
	"github.com/fleethealth/api/pkg/domain/device"
	"github.com/fleethealth/api/pkg/domain/shared"
)

func osUpdateContext(t *testing.T, payload map[string]any, history *analysis.HistoryContext) app.RunContext {
	t.Helper()
	deviceID := shared.NewID()
	unit, err := analysis.NewUnit(deviceID, TypeOSUpdate, payload)
	require.NoError(t, err)

	return app.RunContext{
		Unit: unit,
		Hierarchy: &device.Hierarchy{
			Device:   device.Device{ID: deviceID, Name: "laptop-042", OSName: "macOS", OSVersion: "14.2"},
			TenantID: shared.NewID(),
		},
		History: history,
	}
}

func TestOSUpdateAnalyzer_ShouldRun(t *testing.T) {
	a := NewOSUpdateAnalyzer(app.NewResponseParser(), app.NewPromptSanitizer())
	ctx := context.Background()

	withHistory := analysis.EmptyHistoryContext()
	withHistory.Analyses = []analysis.HistoryEntry{{Timestamp: time.Now(), Score: 60}}
	withHistory.ScoreTrend = []int{60}

	t.Run("first run always executes", func(t *testing.T) {
		rc := osUpdateContext(t, map[string]any{"os_version": "14.2"}, analysis.EmptyHistoryContext())

		run, err := a.ShouldRun(ctx, rc)

		require.NoError(t, err)
		assert.True(t, run)
	})

	t.Run("unchanged version skips", func(t *testing.T) {
		rc := osUpdateContext(t, map[string]any{
			"os_version":          "14.2",
			"previous_os_version": "14.2",
		}, withHistory)

		run, err := a.ShouldRun(ctx, rc)

		require.NoError(t, err)
		assert.False(t, run)
	})

	t.Run("version change reruns", func(t *testing.T) {
		rc := osUpdateContext(t, map[string]any{
			"os_version":          "14.3",
			"previous_os_version": "14.2",
		}, withHistory)

		run, err := a.ShouldRun(ctx, rc)

		require.NoError(t, err)
		assert.True(t, run)
	})

	t.Run("missing version fields default to run", func(t *testing.T) {
		rc := osUpdateContext(t, map[string]any{}, withHistory)

		run, err := a.ShouldRun(ctx, rc)

		require.NoError(t, err)
		assert.True(t, run)
	})
}

func TestAnalyzers_CreatePrompt(t *testing.T) {
	parser := app.NewResponseParser()
	sanitizer := app.NewPromptSanitizer()

	rc := osUpdateContext(t, map[string]any{"pending_updates": 4}, analysis.EmptyHistoryContext())
	rc.PolicyBlock = "POLICY-BLOCK-MARKER"

	for _, a := range []app.Analyzer{
		NewBatteryAnalyzer(parser, sanitizer),
		NewDiskAnalyzer(parser, sanitizer),
		NewOSUpdateAnalyzer(parser, sanitizer),
	} {
		t.Run(a.Type(), func(t *testing.T) {
			prompt, err := a.CreatePrompt(rc)

			require.NoError(t, err)
			assert.Contains(t, prompt, "laptop-042")
			assert.Contains(t, prompt, "pending_updates")
			assert.Contains(t, prompt, "POLICY-BLOCK-MARKER")
		})
	}
}

func TestNetworkAnalyzer_GetDataSources(t *testing.T) {
	a := NewNetworkAnalyzer(app.NewResponseParser(), app.NewPromptSanitizer(), stubStats{})

	sources, err := a.GetDataSources(context.Background(), shared.NewID())

	require.NoError(t, err)
	stats, ok := sources["network_stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, stats["disconnect_count_7d"])
}

type stubStats struct{}

func (stubStats) RecentNetworkStats(context.Context, shared.ID) (map[string]any, error) {
	return map[string]any{"disconnect_count_7d": 3}, nil
}
