package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleethealth/api/pkg/domain/shared"
)

func validResult() Result {
	return Result{
		Analysis: "<p>" + strings.Repeat("Disk wear indicators are within expected limits. ", 2) + "</p>",
		Score:    73,
	}
}

func TestNewUnit(t *testing.T) {
	t.Run("valid unit starts pending", func(t *testing.T) {
		u, err := NewUnit(shared.NewID(), "battery_health", map[string]any{"cycle_count": 312})

		require.NoError(t, err)
		assert.Equal(t, UnitStatePending, u.State())
		assert.False(t, u.ID().IsZero())
		assert.Nil(t, u.ResultScore())
		assert.Nil(t, u.AnalyzedAt())
	})

	t.Run("missing analysis type rejected", func(t *testing.T) {
		_, err := NewUnit(shared.NewID(), "", nil)

		assert.Error(t, err)
	})

	t.Run("zero device id rejected", func(t *testing.T) {
		_, err := NewUnit(shared.ID{}, "battery_health", nil)

		assert.Error(t, err)
	})
}

func TestUnit_StateTransitions(t *testing.T) {
	newPending := func(t *testing.T) *Unit {
		t.Helper()
		u, err := NewUnit(shared.NewID(), "battery_health", nil)
		require.NoError(t, err)
		return u
	}

	t.Run("pending to processing to processed", func(t *testing.T) {
		u := newPending(t)

		require.NoError(t, u.MarkProcessing())
		require.NoError(t, u.MarkProcessed(validResult()))

		assert.Equal(t, UnitStateProcessed, u.State())
		require.NotNil(t, u.ResultScore())
		assert.Equal(t, 73, *u.ResultScore())
		assert.NotNil(t, u.AnalyzedAt())
	})

	t.Run("pending to processing to failed", func(t *testing.T) {
		u := newPending(t)

		require.NoError(t, u.MarkProcessing())
		require.NoError(t, u.MarkFailed("provider call failed: timeout"))

		assert.Equal(t, UnitStateFailed, u.State())
		require.NotNil(t, u.ResultScore())
		assert.Equal(t, 0, *u.ResultScore())
		assert.Equal(t, "Analysis failed: provider call failed: timeout", u.ResultText())
		assert.NotNil(t, u.AnalyzedAt())
	})

	t.Run("cannot process a pending unit directly", func(t *testing.T) {
		u := newPending(t)

		assert.ErrorIs(t, u.MarkProcessed(validResult()), ErrInvalidTransition)
	})

	t.Run("cannot fail a pending unit directly", func(t *testing.T) {
		u := newPending(t)

		assert.ErrorIs(t, u.MarkFailed("nope"), ErrInvalidTransition)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		u := newPending(t)
		require.NoError(t, u.MarkProcessing())
		require.NoError(t, u.MarkProcessed(validResult()))

		assert.ErrorIs(t, u.MarkProcessing(), ErrInvalidTransition)
		assert.ErrorIs(t, u.MarkFailed("late"), ErrInvalidTransition)
		assert.ErrorIs(t, u.MarkProcessed(validResult()), ErrInvalidTransition)
	})

	t.Run("cannot claim a processing unit again", func(t *testing.T) {
		u := newPending(t)
		require.NoError(t, u.MarkProcessing())

		assert.ErrorIs(t, u.MarkProcessing(), ErrInvalidTransition)
	})
}

func TestUnitState(t *testing.T) {
	t.Run("terminal classification", func(t *testing.T) {
		assert.False(t, UnitStatePending.IsTerminal())
		assert.False(t, UnitStateProcessing.IsTerminal())
		assert.True(t, UnitStateProcessed.IsTerminal())
		assert.True(t, UnitStateFailed.IsTerminal())
	})

	t.Run("validity", func(t *testing.T) {
		assert.True(t, UnitStatePending.IsValid())
		assert.False(t, UnitState("archived").IsValid())
	})
}
