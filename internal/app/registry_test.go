package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleethealth/api/pkg/domain/analysis"
)

func TestAnalyzerRegistry(t *testing.T) {
	t.Run("register and lookup", func(t *testing.T) {
		reg := NewAnalyzerRegistry()
		a := newStubAnalyzer("battery_health", 2)

		require.NoError(t, reg.Register(a))

		got, err := reg.Get("battery_health")
		require.NoError(t, err)
		assert.Equal(t, "battery_health", got.Type())
	})

	t.Run("unknown type", func(t *testing.T) {
		reg := NewAnalyzerRegistry()

		_, err := reg.Get("thermal_health")

		assert.ErrorIs(t, err, analysis.ErrUnknownAnalyzerType)
	})

	t.Run("duplicate registration rejected", func(t *testing.T) {
		reg := NewAnalyzerRegistry()
		require.NoError(t, reg.Register(newStubAnalyzer("battery_health", 2)))

		assert.Error(t, reg.Register(newStubAnalyzer("battery_health", 2)))
	})

	t.Run("invalid definition rejected", func(t *testing.T) {
		reg := NewAnalyzerRegistry()

		assert.Error(t, reg.Register(newStubAnalyzer("battery_health", 0)))
	})

	t.Run("types sorted", func(t *testing.T) {
		reg := NewAnalyzerRegistry()
		require.NoError(t, reg.Register(newStubAnalyzer("os_update", 1)))
		require.NoError(t, reg.Register(newStubAnalyzer("battery_health", 2)))
		require.NoError(t, reg.Register(newStubAnalyzer("disk_health", 2)))

		assert.Equal(t, []string{"battery_health", "disk_health", "os_update"}, reg.Types())
	})
}
