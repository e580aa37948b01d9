package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/foresight/internal/forecast"
)

func TestResolveDefaultPreset(t *testing.T) {
	configs, err := BuiltinPresets().Resolve("")
	require.NoError(t, err)
	require.Len(t, configs, 8)

	for _, stage := range forecast.Stages() {
		cfg := configs[stage]
		assert.True(t, cfg.Enabled, "stage %s", stage)
		assert.True(t, cfg.Parallel, "stage %s", stage)
		assert.Empty(t, cfg.Agents, "stage %s", stage)
	}
}

func TestResolveFastPreset(t *testing.T) {
	configs, err := BuiltinPresets().Resolve("fast")
	require.NoError(t, err)

	assert.False(t, configs[forecast.StageDecomposition].Enabled)
	assert.False(t, configs[forecast.StageAdversarialReview].Enabled)
	assert.False(t, configs[forecast.StageCalibration].Enabled)
	assert.True(t, configs[forecast.StageSynthesis].Enabled)
	assert.False(t, configs[forecast.StageSynthesis].Parallel)
}

func TestResolveUnknownPreset(t *testing.T) {
	_, err := BuiltinPresets().Resolve("warp-speed")
	assert.Error(t, err)
}

func TestResolveCopiesAgentSlices(t *testing.T) {
	presets := Presets{
		"custom": {
			forecast.StageBaseRate: {
				Enabled: true,
				Agents:  []forecast.AgentConfig{{ID: "rate-setter", Enabled: true}},
			},
		},
	}

	first, err := presets.Resolve("custom")
	require.NoError(t, err)
	first[forecast.StageBaseRate].Agents[0] = forecast.AgentConfig{ID: "mutated"}

	second, err := presets.Resolve("custom")
	require.NoError(t, err)
	assert.Equal(t, "rate-setter", second[forecast.StageBaseRate].Agents[0].ID)
}
