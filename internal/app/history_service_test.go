package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleethealth/api/pkg/domain/analysis"
	"github.com/fleethealth/api/pkg/domain/shared"
	"github.com/fleethealth/api/pkg/logger"
)

// erroringUnitRepo fails every read.
type erroringUnitRepo struct{}

func (erroringUnitRepo) ClaimNext(context.Context, string, []shared.ID) (*analysis.Unit, error) {
	return nil, errors.New("store down")
}
func (erroringUnitRepo) GetByID(context.Context, shared.ID) (*analysis.Unit, error) {
	return nil, errors.New("store down")
}
func (erroringUnitRepo) UpdateResult(context.Context, *analysis.Unit) error {
	return errors.New("store down")
}
func (erroringUnitRepo) ListRecentProcessed(context.Context, shared.ID, string, int) ([]*analysis.Unit, error) {
	return nil, errors.New("store down")
}
func (erroringUnitRepo) ReclaimStuck(context.Context, time.Duration, int) (int, error) {
	return 0, errors.New("store down")
}

func processedUnit(t *testing.T, deviceID shared.ID, score int) *analysis.Unit {
	t.Helper()
	u, err := analysis.NewUnit(deviceID, "battery_health", nil)
	require.NoError(t, err)
	require.NoError(t, u.MarkProcessing())
	require.NoError(t, u.MarkProcessed(analysis.Result{
		Analysis: "<p>Historic battery assessment with enough text to satisfy the schema bounds.</p>",
		Score:    score,
	}))
	return u
}

func TestHistoryService_GetContext(t *testing.T) {
	log := logger.NewNop()

	t.Run("returns recent processed units newest first", func(t *testing.T) {
		repo := newFakeUnitRepo()
		deviceID := shared.NewID()
		for _, score := range []int{40, 55, 70} {
			u := processedUnit(t, deviceID, score)
			repo.add(u)
			time.Sleep(2 * time.Millisecond)
		}
		svc := NewHistoryService(repo, nil, log)

		hc := svc.GetContext(context.Background(), deviceID, "battery_health")

		require.Len(t, hc.Analyses, 3)
		assert.Equal(t, []int{70, 55, 40}, hc.ScoreTrend)
		require.NotNil(t, hc.LastScore)
		assert.Equal(t, 70, *hc.LastScore)
		assert.Equal(t, analysis.TrendImproving, analysis.ClassifyTrend(hc.ScoreTrend))
	})

	t.Run("limit applied", func(t *testing.T) {
		repo := newFakeUnitRepo()
		deviceID := shared.NewID()
		for i := 0; i < DefaultHistoryLimit+3; i++ {
			u := processedUnit(t, deviceID, 50+i)
			repo.add(u)
		}
		svc := NewHistoryService(repo, nil, log)

		hc := svc.GetContext(context.Background(), deviceID, "battery_health")

		assert.Len(t, hc.Analyses, DefaultHistoryLimit)
	})

	t.Run("store error degrades to empty context", func(t *testing.T) {
		svc := NewHistoryService(erroringUnitRepo{}, nil, log)

		hc := svc.GetContext(context.Background(), shared.NewID(), "battery_health")

		require.NotNil(t, hc)
		assert.Empty(t, hc.Analyses)
		assert.Empty(t, hc.ScoreTrend)
		assert.Nil(t, hc.LastScore)
	})

	t.Run("no history yields empty context", func(t *testing.T) {
		svc := NewHistoryService(newFakeUnitRepo(), nil, log)

		hc := svc.GetContext(context.Background(), shared.NewID(), "battery_health")

		assert.Empty(t, hc.Analyses)
		assert.Nil(t, hc.LastScore)
	})
}
