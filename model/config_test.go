package model

import (
	"errors"
	"testing"

	"github.com/siherrmann/kgraph/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultQueryConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultQueryConfig()

		assert.Equal(t, 2, config.DefaultMaxHops, "Default max hops should be 2")
		assert.Equal(t, 5, config.MaxHopsLimit, "Max hops limit should be 5")
		assert.Equal(t, 10, config.DefaultResultLimit, "Default result limit should be 10")
		assert.Equal(t, 0.85, config.HopDecay, "Default hop decay should be 0.85")
		assert.Equal(t, 500, config.MaxExpandedNodes)
		assert.Equal(t, 5, config.SeedCandidates)
	})
}

func TestDefaultConfig(t *testing.T) {
	t.Run("Default config is valid", func(t *testing.T) {
		config := DefaultConfig()

		require.NoError(t, config.Validate())
	})

	t.Run("Default tier thresholds", func(t *testing.T) {
		config := DefaultConfig()

		assert.Equal(t, 0.8, config.Confidence.HighThreshold)
		assert.Equal(t, 0.5, config.Confidence.MediumThreshold)
	})

	t.Run("Default edge factor weights sum to 1.0", func(t *testing.T) {
		config := DefaultConfig()

		sum := config.Edge.ConfidenceWeight + config.Edge.MethodWeight + config.Edge.PatternWeight + config.Edge.DistanceWeight
		assert.InDelta(t, 1.0, sum, 0.001)
	})

	t.Run("Method table is a fresh copy", func(t *testing.T) {
		first := DefaultConfig()
		first.Edge.MethodConfidence[ExtractionMethodManual] = 0.1

		second := DefaultConfig()
		assert.Equal(t, 1.0, second.Edge.MethodConfidence[ExtractionMethodManual])
	})

	t.Run("Proximity edges are allowed by default", func(t *testing.T) {
		assert.True(t, DefaultConfig().Edge.AllowProximityEdges)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("Rejects inverted tier thresholds", func(t *testing.T) {
		config := DefaultConfig()
		config.Confidence.MediumThreshold = 0.9

		err := config.Validate()

		require.Error(t, err)
		assert.True(t, errors.Is(err, helper.ErrInvalidInput))
		assert.Contains(t, err.Error(), "medium_threshold")
	})

	t.Run("Rejects min weight above max weight", func(t *testing.T) {
		config := DefaultConfig()
		config.Edge.MinWeight = 0.9
		config.Edge.MaxWeight = 0.5

		err := config.Validate()

		require.Error(t, err)
		assert.ErrorIs(t, err, helper.ErrInvalidInput)
	})

	t.Run("Rejects zero min weight", func(t *testing.T) {
		config := DefaultConfig()
		config.Edge.MinWeight = 0

		err := config.Validate()

		require.Error(t, err)
		assert.ErrorIs(t, err, helper.ErrInvalidInput)
		assert.Contains(t, err.Error(), "edge.min_weight must be positive")
	})

	t.Run("Accepts a small positive min weight", func(t *testing.T) {
		config := DefaultConfig()
		config.Edge.MinWeight = 0.001

		assert.NoError(t, config.Validate())
	})

	t.Run("Rejects damping outside the open unit interval", func(t *testing.T) {
		config := DefaultConfig()
		config.Rank.Damping = 1

		require.Error(t, config.Validate())
	})

	t.Run("Rejects method confidence above one", func(t *testing.T) {
		config := DefaultConfig()
		config.Edge.MethodConfidence["custom"] = 1.5

		err := config.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "edge.method_confidence.custom")
	})

	t.Run("Rejects default hops above limit", func(t *testing.T) {
		config := DefaultConfig()
		config.Query.DefaultMaxHops = 6

		require.Error(t, config.Validate())
	})
}
