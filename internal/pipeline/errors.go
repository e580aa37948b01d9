package pipeline

import "errors"

var (
	// ErrNoAgentsAvailable means agent selection produced an empty set for
	// a stage.
	ErrNoAgentsAvailable = errors.New("no agents available for stage")

	// ErrAllAgentsFailed means every invocation for a stage errored.
	ErrAllAgentsFailed = errors.New("all agents failed")

	// ErrPipelineFailure is the catch-all for errors escaping stage
	// execution.
	ErrPipelineFailure = errors.New("pipeline failure")
)
