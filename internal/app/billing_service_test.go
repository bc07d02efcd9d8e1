package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleethealth/api/pkg/domain/shared"
	"github.com/fleethealth/api/pkg/domain/tenant"
	"github.com/fleethealth/api/pkg/logger"
)

// fakeTenantRepo mirrors the conditional-update semantics of the real
// store: both mutations are atomic compare-and-set operations.
type fakeTenantRepo struct {
	mu        sync.Mutex
	tenants   map[shared.ID]*tenantState
	disableCt map[shared.ID]int
}

type tenantState struct {
	balance          int
	recurringEnabled bool
	analysisTypes    map[string]bool
}

func newFakeTenantRepo() *fakeTenantRepo {
	return &fakeTenantRepo{
		tenants:   make(map[shared.ID]*tenantState),
		disableCt: make(map[shared.ID]int),
	}
}

func (f *fakeTenantRepo) add(id shared.ID, balance int) {
	f.tenants[id] = &tenantState{balance: balance, recurringEnabled: true}
}

func (f *fakeTenantRepo) GetByID(_ context.Context, id shared.ID) (*tenant.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ts, ok := f.tenants[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	now := time.Now().UTC()
	return tenant.Reconstitute(id, "tenant", ts.balance, ts.recurringEnabled, ts.analysisTypes, now, now), nil
}

func (f *fakeTenantRepo) DeductCredits(_ context.Context, id shared.ID, cost int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ts, ok := f.tenants[id]
	if !ok || ts.balance < cost {
		return false, nil
	}
	ts.balance -= cost
	return true, nil
}

func (f *fakeTenantRepo) DisableRecurring(_ context.Context, id shared.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ts, ok := f.tenants[id]
	if !ok || !ts.recurringEnabled {
		return false, nil
	}
	ts.recurringEnabled = false
	f.disableCt[id]++
	return true, nil
}

func (f *fakeTenantRepo) balance(id shared.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tenants[id].balance
}

func TestBillingService_TryCharge(t *testing.T) {
	log := logger.NewNop()

	t.Run("sufficient balance charges", func(t *testing.T) {
		repo := newFakeTenantRepo()
		id := shared.NewID()
		repo.add(id, 10)
		svc := NewBillingService(repo, log)

		charged, err := svc.TryCharge(context.Background(), id, "battery_health", 2)

		require.NoError(t, err)
		assert.True(t, charged)
		assert.Equal(t, 8, repo.balance(id))
	})

	t.Run("insufficient balance does not mutate", func(t *testing.T) {
		repo := newFakeTenantRepo()
		id := shared.NewID()
		repo.add(id, 1)
		svc := NewBillingService(repo, log)

		charged, err := svc.TryCharge(context.Background(), id, "battery_health", 2)

		require.NoError(t, err)
		assert.False(t, charged)
		assert.Equal(t, 1, repo.balance(id))
	})

	t.Run("non-positive cost rejected", func(t *testing.T) {
		repo := newFakeTenantRepo()
		id := shared.NewID()
		repo.add(id, 10)
		svc := NewBillingService(repo, log)

		_, err := svc.TryCharge(context.Background(), id, "battery_health", 0)

		assert.Error(t, err)
	})

	t.Run("concurrent charges never exceed floor of balance over cost", func(t *testing.T) {
		repo := newFakeTenantRepo()
		id := shared.NewID()
		repo.add(id, 10)
		svc := NewBillingService(repo, log)

		const attempts = 50
		const cost = 3

		var wg sync.WaitGroup
		results := make(chan bool, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				charged, err := svc.TryCharge(context.Background(), id, "battery_health", cost)
				assert.NoError(t, err)
				results <- charged
			}()
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for charged := range results {
			if charged {
				succeeded++
			}
		}

		// floor(10/3) = 3 successful charges, balance ends at 1.
		assert.Equal(t, 3, succeeded)
		assert.Equal(t, 1, repo.balance(id))
	})

	t.Run("circuit breaker fires exactly once", func(t *testing.T) {
		repo := newFakeTenantRepo()
		id := shared.NewID()
		repo.add(id, 1)
		svc := NewBillingService(repo, log)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.TryCharge(context.Background(), id, "battery_health", 2)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, repo.disableCt[id])

		got, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, got.RecurringEnabled())
	})
}
