// Package invoke turns one agent/stage/context triple into an
// AgentContribution: it renders the prompts, calls the reasoning service,
// and normalizes the JSON response.
package invoke

import "errors"

var (
	// ErrAgentNotFound means the agent id has no card in the registry.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrStageUnsupported means the card does not declare the stage.
	ErrStageUnsupported = errors.New("stage not supported by agent")

	// ErrUnparsableResponse means every JSON recovery strategy failed.
	ErrUnparsableResponse = errors.New("unparsable agent response")
)
