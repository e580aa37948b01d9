// Package pipeline is the execution engine: the coherence router that picks
// agents, the stage executor that invokes and merges them, the priority task
// queue, and the orchestrator that drives a task through the fixed stage
// sequence.
package pipeline

import "github.com/dusk-indust/foresight/internal/forecast"

// criticalStages are the stages whose total failure aborts the whole task.
// Every other stage failure is logged and tolerated.
var criticalStages = map[forecast.Stage]bool{
	forecast.StageBaseRate:  true,
	forecast.StageSynthesis: true,
}

// Critical reports whether a stage is on the critical list.
func Critical(stage forecast.Stage) bool {
	return criticalStages[stage]
}

// Family groups stages by their merge semantics.
type Family int

const (
	// FamilyDefault takes the single highest-confidence contribution.
	FamilyDefault Family = iota
	// FamilyEvidence concatenates item arrays and de-duplicates sources.
	FamilyEvidence
	// FamilyReview concatenates concern and bias-flag arrays.
	FamilyReview
	// FamilyNumeric confidence-weight-averages shared numeric fields.
	FamilyNumeric
)

// FamilyOf returns the merge family for a stage.
func FamilyOf(stage forecast.Stage) Family {
	switch stage {
	case forecast.StageReferenceClass, forecast.StageEvidenceGathering:
		return FamilyEvidence
	case forecast.StageAdversarialReview:
		return FamilyReview
	case forecast.StageBaseRate, forecast.StageBayesianUpdate:
		return FamilyNumeric
	default:
		return FamilyDefault
	}
}

// outputHeavy marks stages whose agents benefit from a large output budget.
// The router awards a bonus to agents with a matching token ceiling.
var outputHeavy = map[forecast.Stage]bool{
	forecast.StageSynthesis:         true,
	forecast.StageAdversarialReview: true,
}
