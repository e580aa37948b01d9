package pipeline

import (
	"fmt"

	"github.com/dusk-indust/foresight/internal/forecast"
)

// Preset is a named, declarative per-stage configuration. Stages absent from
// the map run with DefaultStageConfig.
type Preset map[forecast.Stage]forecast.StageConfig

// Presets maps preset names to their stage configurations. The "default"
// preset leaves every stage enabled with router-selected agents.
type Presets map[string]Preset

// DefaultPresetName is used when a caller does not name a preset.
const DefaultPresetName = "default"

// BuiltinPresets returns the presets compiled into the engine. "default"
// runs everything through the router; "fast" disables the slower deliberate
// stages and runs remaining ones sequentially with a single agent each.
func BuiltinPresets() Presets {
	return Presets{
		DefaultPresetName: {},
		"fast": {
			forecast.StageDecomposition:     {Enabled: false},
			forecast.StageAdversarialReview: {Enabled: false},
			forecast.StageCalibration:       {Enabled: false},
			forecast.StageReferenceClass:    {Enabled: true, Parallel: false},
			forecast.StageBaseRate:          {Enabled: true, Parallel: false},
			forecast.StageEvidenceGathering: {Enabled: true, Parallel: false},
			forecast.StageBayesianUpdate:    {Enabled: true, Parallel: false},
			forecast.StageSynthesis:         {Enabled: true, Parallel: false},
		},
	}
}

// Resolve materializes a preset into a full per-stage configuration map,
// filling unnamed stages with the default.
func (p Presets) Resolve(name string) (map[forecast.Stage]forecast.StageConfig, error) {
	if name == "" {
		name = DefaultPresetName
	}
	preset, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}

	configs := make(map[forecast.Stage]forecast.StageConfig, len(forecast.Stages()))
	for _, stage := range forecast.Stages() {
		if cfg, ok := preset[stage]; ok {
			configs[stage] = cfg.Clone()
		} else {
			configs[stage] = forecast.DefaultStageConfig()
		}
	}
	return configs, nil
}
