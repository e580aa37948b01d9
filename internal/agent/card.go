// Package agent defines the static capability catalog: the Card descriptor
// for each pluggable agent and the Registry that holds them.
package agent

import (
	"github.com/dusk-indust/foresight/internal/forecast"
)

// Tier distinguishes coordinator-like agents (deliberate, synthesizing) from
// worker-like agents (reactive, gathering).
type Tier string

const (
	TierCoordinator Tier = "coordinator"
	TierWorker      Tier = "worker"
)

// Known action tags. ActionWebSearch marks an agent whose invocations go
// through the search-augmented reasoning call.
const (
	ActionWebSearch = "web_search"
	ActionEstimate  = "estimate"
	ActionCritique  = "critique"
)

// Profile is an agent's coherence profile: the semantic domain it operates
// in plus its frequency tier.
type Profile struct {
	Domain string `yaml:"domain" json:"domain"`
	Tier   Tier   `yaml:"tier" json:"tier"`
}

// Limits are the declared invocation constraints for an agent. Enforcement
// of the timeout is delegated to the reasoning-service client.
type Limits struct {
	MaxOutputTokens   int `yaml:"maxOutputTokens" json:"maxOutputTokens"`
	TimeoutSeconds    int `yaml:"timeoutSeconds" json:"timeoutSeconds"`
	RequestsPerMinute int `yaml:"requestsPerMinute" json:"requestsPerMinute"`
}

// Card is the immutable capability descriptor for one agent. Cards are
// loaded once at startup into the Registry.
type Card struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Stages  []forecast.Stage `yaml:"stages" json:"stages"`
	Actions []string         `yaml:"actions,omitempty" json:"actions,omitempty"`
	Inputs  []string         `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs []string         `yaml:"outputs,omitempty" json:"outputs,omitempty"`

	Profile Profile `yaml:"profile" json:"profile"`
	Limits  Limits  `yaml:"limits" json:"limits"`
}

// SupportsStage reports whether the card declares support for the stage.
func (c Card) SupportsStage(stage forecast.Stage) bool {
	for _, s := range c.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// HasAction reports whether the card declares the given action tag.
func (c Card) HasAction(action string) bool {
	for _, a := range c.Actions {
		if a == action {
			return true
		}
	}
	return false
}
