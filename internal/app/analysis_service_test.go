package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleethealth/api/internal/infra/llm"
	"github.com/fleethealth/api/pkg/domain/analysis"
	"github.com/fleethealth/api/pkg/domain/device"
	"github.com/fleethealth/api/pkg/domain/shared"
	"github.com/fleethealth/api/pkg/logger"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeUnitRepo mirrors the claim semantics of the real store: selection
// and the pending->processing flip are atomic under one lock, so two
// claimers can never receive the same unit.
type fakeUnitRepo struct {
	mu     sync.Mutex
	units  []*analysis.Unit
	states map[shared.ID]analysis.UnitState
}

func newFakeUnitRepo() *fakeUnitRepo {
	return &fakeUnitRepo{states: make(map[shared.ID]analysis.UnitState)}
}

func (f *fakeUnitRepo) add(u *analysis.Unit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units = append(f.units, u)
	f.states[u.ID()] = u.State()
}

func (f *fakeUnitRepo) ClaimNext(_ context.Context, analysisType string, excludeIDs []shared.ID) (*analysis.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	excluded := make(map[shared.ID]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	var oldest *analysis.Unit
	for _, u := range f.units {
		if f.states[u.ID()] != analysis.UnitStatePending || u.AnalysisType() != analysisType || excluded[u.ID()] {
			continue
		}
		if oldest == nil || u.CreatedAt().Before(oldest.CreatedAt()) {
			oldest = u
		}
	}
	if oldest == nil {
		return nil, nil
	}

	if err := oldest.MarkProcessing(); err != nil {
		return nil, err
	}
	f.states[oldest.ID()] = analysis.UnitStateProcessing
	return oldest, nil
}

func (f *fakeUnitRepo) GetByID(_ context.Context, id shared.ID) (*analysis.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.units {
		if u.ID().Equals(id) {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeUnitRepo) UpdateResult(_ context.Context, unit *analysis.Unit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states[unit.ID()] != analysis.UnitStateProcessing {
		return shared.ErrConflict
	}
	f.states[unit.ID()] = unit.State()
	return nil
}

func (f *fakeUnitRepo) ListRecentProcessed(_ context.Context, deviceID shared.ID, analysisType string, limit int) ([]*analysis.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*analysis.Unit
	for _, u := range f.units {
		if f.states[u.ID()] == analysis.UnitStateProcessed && u.DeviceID().Equals(deviceID) && u.AnalysisType() == analysisType {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AnalyzedAt().After(*out[j].AnalyzedAt())
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUnitRepo) ReclaimStuck(_ context.Context, _ time.Duration, _ int) (int, error) {
	return 0, nil
}

func (f *fakeUnitRepo) state(id shared.ID) analysis.UnitState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[id]
}

type fakeDeviceRepo struct {
	hierarchies map[shared.ID]*device.Hierarchy
}

func (f *fakeDeviceRepo) GetByID(_ context.Context, id shared.ID) (*device.Device, error) {
	h, ok := f.hierarchies[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &h.Device, nil
}

func (f *fakeDeviceRepo) GetHierarchy(_ context.Context, deviceID shared.ID) (*device.Hierarchy, error) {
	h, ok := f.hierarchies[deviceID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return h, nil
}

type fakeProvider struct {
	content string
	err     error
	calls   int
}

func (f *fakeProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content, Model: "fake"}, nil
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Model() string   { return "fake" }
func (f *fakeProvider) Validate() error { return nil }

type stubAnalyzer struct {
	BaseAnalyzer
}

func newStubAnalyzer(analysisType string, cost int) *stubAnalyzer {
	def := analysis.Definition{
		Type:            analysisType,
		CreditCost:      cost,
		IntervalSeconds: 3600,
		MaxTokens:       1000,
		Temperature:     0.2,
	}
	return &stubAnalyzer{BaseAnalyzer: NewBaseAnalyzer(def, NewResponseParser())}
}

func (a *stubAnalyzer) CreatePrompt(rc RunContext) (string, error) {
	return "assess device " + rc.Hierarchy.Device.Name, nil
}

// =============================================================================
// Harness
// =============================================================================

type serviceFixture struct {
	units    *fakeUnitRepo
	tenants  *fakeTenantRepo
	devices  *fakeDeviceRepo
	provider *fakeProvider
	service  *AnalysisService
	tenantID shared.ID
	deviceID shared.ID
}

const validResponse = `{"analysis": "<p>Battery health is nominal. Cycle count and capacity are well within expected limits for this hardware generation.</p>", "score": 73}`

func newServiceFixture(t *testing.T, analysisType string, cost, balance int) *serviceFixture {
	t.Helper()
	log := logger.NewNop()

	units := newFakeUnitRepo()
	tenants := newFakeTenantRepo()
	tenantID := shared.NewID()
	tenants.add(tenantID, balance)

	deviceID := shared.NewID()
	devices := &fakeDeviceRepo{hierarchies: map[shared.ID]*device.Hierarchy{
		deviceID: {
			Device:       device.Device{ID: deviceID, Name: "laptop-042", OSName: "macOS", OSVersion: "14.2"},
			Group:        device.Group{ID: shared.NewID(), Name: "engineering"},
			Organisation: device.Organisation{ID: shared.NewID(), Name: "acme"},
			TenantID:     tenantID,
		},
	}}

	registry := NewAnalyzerRegistry()
	require.NoError(t, registry.Register(newStubAnalyzer(analysisType, cost)))

	provider := &fakeProvider{content: validResponse}

	service := NewAnalysisService(
		units, tenants, devices,
		registry,
		NewBillingService(tenants, log),
		NewHistoryService(units, nil, log),
		NewPolicyMerger(&fakePolicyRepo{}, NewPromptSanitizer(), log),
		provider, nil, log,
	)

	return &serviceFixture{
		units:    units,
		tenants:  tenants,
		devices:  devices,
		provider: provider,
		service:  service,
		tenantID: tenantID,
		deviceID: deviceID,
	}
}

func (fx *serviceFixture) addPendingUnit(t *testing.T, analysisType string) *analysis.Unit {
	t.Helper()
	u, err := analysis.NewUnit(fx.deviceID, analysisType, map[string]any{"cycle_count": 312})
	require.NoError(t, err)
	fx.units.add(u)
	return u
}

// =============================================================================
// Tests
// =============================================================================

func TestAnalysisService_RunBatch(t *testing.T) {
	t.Run("successful unit ends processed with score and balance deducted", func(t *testing.T) {
		fx := newServiceFixture(t, "battery_health", 2, 10)
		unit := fx.addPendingUnit(t, "battery_health")

		stats, err := fx.service.RunBatch(context.Background(), "battery_health", 5)

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Processed)
		assert.Equal(t, 0, stats.Failed)
		assert.Equal(t, analysis.UnitStateProcessed, fx.units.state(unit.ID()))
		require.NotNil(t, unit.ResultScore())
		assert.Equal(t, 73, *unit.ResultScore())
		assert.NotNil(t, unit.AnalyzedAt())
		assert.Equal(t, 8, fx.tenants.balance(fx.tenantID))
	})

	t.Run("insufficient balance skips unit and trips breaker", func(t *testing.T) {
		fx := newServiceFixture(t, "battery_health", 2, 1)
		unit := fx.addPendingUnit(t, "battery_health")

		stats, err := fx.service.RunBatch(context.Background(), "battery_health", 5)

		require.NoError(t, err)
		assert.Equal(t, 0, stats.Completions())
		assert.Equal(t, 1, stats.Skipped)
		// The unit stays processing for the reclaimer; it is not failed.
		assert.Equal(t, analysis.UnitStateProcessing, fx.units.state(unit.ID()))
		assert.Equal(t, 1, fx.tenants.balance(fx.tenantID))
		assert.Equal(t, 0, fx.provider.calls)

		got, err := fx.tenants.GetByID(context.Background(), fx.tenantID)
		require.NoError(t, err)
		assert.False(t, got.RecurringEnabled())
	})

	t.Run("provider failure bills and fails unit", func(t *testing.T) {
		fx := newServiceFixture(t, "battery_health", 2, 10)
		fx.provider.err = errors.New("upstream timeout")
		unit := fx.addPendingUnit(t, "battery_health")

		stats, err := fx.service.RunBatch(context.Background(), "battery_health", 5)

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, analysis.UnitStateFailed, fx.units.state(unit.ID()))
		require.NotNil(t, unit.ResultScore())
		assert.Equal(t, 0, *unit.ResultScore())
		assert.Contains(t, unit.ResultText(), "Analysis failed: ")
		// The charge is not refunded.
		assert.Equal(t, 8, fx.tenants.balance(fx.tenantID))
	})

	t.Run("invalid provider response bills and fails unit", func(t *testing.T) {
		fx := newServiceFixture(t, "battery_health", 2, 10)
		fx.provider.content = `{"analysis": "short", "score": 150}`
		unit := fx.addPendingUnit(t, "battery_health")

		stats, err := fx.service.RunBatch(context.Background(), "battery_health", 5)

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, analysis.UnitStateFailed, fx.units.state(unit.ID()))
		assert.Contains(t, unit.ResultText(), "response validation failed")
		assert.Equal(t, 8, fx.tenants.balance(fx.tenantID))
	})

	t.Run("missing hierarchy skips without failing unit", func(t *testing.T) {
		fx := newServiceFixture(t, "battery_health", 2, 10)
		orphanID := shared.NewID()
		u, err := analysis.NewUnit(orphanID, "battery_health", nil)
		require.NoError(t, err)
		fx.units.add(u)

		stats, err := fx.service.RunBatch(context.Background(), "battery_health", 5)

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Skipped)
		assert.Equal(t, analysis.UnitStateProcessing, fx.units.state(u.ID()))
		assert.Equal(t, 10, fx.tenants.balance(fx.tenantID))
	})

	t.Run("unknown analysis type aborts batch", func(t *testing.T) {
		fx := newServiceFixture(t, "battery_health", 2, 10)

		_, err := fx.service.RunBatch(context.Background(), "thermal_health", 5)

		assert.ErrorIs(t, err, analysis.ErrUnknownAnalyzerType)
	})

	t.Run("empty queue returns zero stats", func(t *testing.T) {
		fx := newServiceFixture(t, "battery_health", 2, 10)

		stats, err := fx.service.RunBatch(context.Background(), "battery_health", 5)

		require.NoError(t, err)
		assert.Equal(t, 0, stats.Claimed)
	})

	t.Run("batch stops at completion target", func(t *testing.T) {
		fx := newServiceFixture(t, "battery_health", 1, 100)
		for i := 0; i < 5; i++ {
			fx.addPendingUnit(t, "battery_health")
		}

		stats, err := fx.service.RunBatch(context.Background(), "battery_health", 3)

		require.NoError(t, err)
		assert.Equal(t, 3, stats.Processed)
		assert.Equal(t, 97, fx.tenants.balance(fx.tenantID))
	})

	t.Run("skipped units do not stall the batch", func(t *testing.T) {
		// Tenant can afford exactly one unit; the rest are skipped via
		// the skip-set and the batch still terminates.
		fx := newServiceFixture(t, "battery_health", 2, 2)
		for i := 0; i < 4; i++ {
			fx.addPendingUnit(t, "battery_health")
		}

		stats, err := fx.service.RunBatch(context.Background(), "battery_health", 4)

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Processed)
		assert.Equal(t, 3, stats.Skipped)
		assert.Equal(t, 0, fx.tenants.balance(fx.tenantID))
	})
}

func TestFakeUnitRepo_NoDoubleClaim(t *testing.T) {
	repo := newFakeUnitRepo()
	deviceID := shared.NewID()

	const total = 40
	for i := 0; i < total; i++ {
		u, err := analysis.NewUnit(deviceID, "battery_health", nil)
		require.NoError(t, err)
		repo.add(u)
	}

	var mu sync.Mutex
	claimed := make(map[shared.ID]int)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				u, err := repo.ClaimNext(context.Background(), "battery_health", nil)
				assert.NoError(t, err)
				if u == nil {
					return
				}
				mu.Lock()
				claimed[u.ID()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, total)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "unit %s claimed more than once", id)
	}
}
