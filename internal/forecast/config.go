package forecast

// AgentConfig is the per-agent portion of a stage configuration.
type AgentConfig struct {
	ID           string  `json:"id" yaml:"id"`
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	Weight       float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	PromptSuffix string  `json:"promptSuffix,omitempty" yaml:"promptSuffix,omitempty"`
	Temperature  float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens    int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
}

// StageConfig holds the declarative settings for one pipeline stage. When
// Agents is empty, agent selection falls back to the coherence router.
type StageConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Parallel bool          `json:"parallel" yaml:"parallel"`
	Agents   []AgentConfig `json:"agents,omitempty" yaml:"agents,omitempty"`
}

// Clone returns a copy with an independent agent slice.
func (c StageConfig) Clone() StageConfig {
	dst := c
	dst.Agents = append([]AgentConfig(nil), c.Agents...)
	return dst
}

// EnabledAgentIDs returns the ids of the explicitly configured, enabled
// agents, preserving order.
func (c StageConfig) EnabledAgentIDs() []string {
	var ids []string
	for _, a := range c.Agents {
		if a.Enabled {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// AgentOverride returns the configuration for the given agent id, if one is
// present in the explicit list.
func (c StageConfig) AgentOverride(id string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// DefaultStageConfig is the configuration used for stages the preset does
// not mention: enabled, parallel fan-out, router-selected agents.
func DefaultStageConfig() StageConfig {
	return StageConfig{Enabled: true, Parallel: true}
}
