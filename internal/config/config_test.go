package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptimizerConfig_Defaults(t *testing.T) {
	cfg, err := LoadOptimizerConfig()
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.ShapeGenerations)
	assert.Equal(t, 0.1, cfg.MutationProbability)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadOptimizerConfig_Overrides(t *testing.T) {
	t.Setenv("OPTIMIZER_URBAN_GENERATIONS", "12")
	t.Setenv("OPTIMIZER_RECTANGLE_RESOLUTION", "5")

	cfg, err := LoadOptimizerConfig()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.UrbanGenerations)
	assert.Equal(t, 5.0, cfg.RectangleResolution)

	t.Setenv("OPTIMIZER_WORKERS", "many")
	_, err = LoadOptimizerConfig()
	assert.Error(t, err)
}
