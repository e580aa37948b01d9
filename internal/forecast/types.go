// Package forecast defines the data model for a single forecasting run: the
// accumulating ForecastContext, the agent contributions that feed it, the
// pipeline task that owns it, and the Store contract that holds both.
package forecast

import (
	"time"
)

// Stage identifies one analytical phase in the fixed pipeline sequence.
type Stage string

const (
	StageReferenceClass    Stage = "reference_class"
	StageBaseRate          Stage = "base_rate"
	StageDecomposition     Stage = "decomposition"
	StageEvidenceGathering Stage = "evidence_gathering"
	StageBayesianUpdate    Stage = "bayesian_update"
	StageAdversarialReview Stage = "adversarial_review"
	StageSynthesis         Stage = "synthesis"
	StageCalibration       Stage = "calibration"
)

// Stages returns the canonical stage sequence in execution order.
func Stages() []Stage {
	return []Stage{
		StageReferenceClass,
		StageBaseRate,
		StageDecomposition,
		StageEvidenceGathering,
		StageBayesianUpdate,
		StageAdversarialReview,
		StageSynthesis,
		StageCalibration,
	}
}

// Valid reports whether s is one of the canonical stages.
func (s Stage) Valid() bool {
	for _, known := range Stages() {
		if s == known {
			return true
		}
	}
	return false
}

// Interval is a closed probability interval.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// ReferenceMatch is one comparable historical situation found during the
// reference-class stage.
type ReferenceMatch struct {
	Description string  `json:"description"`
	Similarity  float64 `json:"similarity"`
	Outcome     string  `json:"outcome"`
}

// SubQuestion is one Fermi-style decomposition sub-question with its
// estimated probability.
type SubQuestion struct {
	Question string  `json:"question"`
	Estimate float64 `json:"estimate"`
}

// EvidenceItem is one piece of gathered evidence.
type EvidenceItem struct {
	Claim     string  `json:"claim"`
	Source    string  `json:"source,omitempty"`
	Direction string  `json:"direction,omitempty"` // "supports" or "contradicts"
	Strength  float64 `json:"strength,omitempty"`
}

// BayesianUpdate records one likelihood-ratio update in the chain from prior
// to posterior. The ratio is stored post-clamping.
type BayesianUpdate struct {
	Evidence        string  `json:"evidence"`
	LikelihoodRatio float64 `json:"likelihoodRatio"`
	Posterior       float64 `json:"posterior"`
}

// Contribution is one agent's result for one stage execution.
type Contribution struct {
	AgentID    string         `json:"agentId"`
	Output     map[string]any `json:"output"`
	Confidence float64        `json:"confidence"`
	LatencyMS  int64          `json:"latencyMs"`
	Sources    []string       `json:"sources,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Context is the single mutable record accumulated across one forecast run.
// Exactly one Context exists per forecast id. Fields are append-only within
// a stage except for the scalar latest-value fields (BaseRate, Posterior,
// FinalProbability), which are overwritten by the stage that owns them. All
// mutation goes through the Store.
type Context struct {
	ID           string    `json:"id"`
	GameID       string    `json:"gameId"`
	HomeID       string    `json:"homeId"`
	AwayID       string    `json:"awayId"`
	CreatedAt    time.Time `json:"createdAt"`
	CurrentStage Stage     `json:"currentStage"`

	// reference_class
	ReferenceMatches []ReferenceMatch `json:"referenceMatches,omitempty"`

	// base_rate
	BaseRate         *float64  `json:"baseRate,omitempty"`
	BaseRateInterval *Interval `json:"baseRateInterval,omitempty"`
	SampleSize       int       `json:"sampleSize,omitempty"`

	// decomposition
	SubQuestions       []SubQuestion `json:"subQuestions,omitempty"`
	StructuralEstimate *float64      `json:"structuralEstimate,omitempty"`

	// evidence_gathering
	Evidence        []EvidenceItem `json:"evidence,omitempty"`
	EvidenceSummary string         `json:"evidenceSummary,omitempty"`

	// bayesian_update
	Updates   []BayesianUpdate `json:"updates,omitempty"`
	Posterior *float64         `json:"posterior,omitempty"`

	// adversarial_review
	Concerns             []string `json:"concerns,omitempty"`
	BiasFlags            []string `json:"biasFlags,omitempty"`
	ConfidenceAdjustment *float64 `json:"confidenceAdjustment,omitempty"`

	// synthesis
	FinalProbability *float64  `json:"finalProbability,omitempty"`
	FinalInterval    *Interval `json:"finalInterval,omitempty"`
	Recommendation   string    `json:"recommendation,omitempty"`
	KeyDrivers       []string  `json:"keyDrivers,omitempty"`

	Contributions  map[Stage][]Contribution `json:"contributions,omitempty"`
	StageElapsedMS map[Stage]int64          `json:"stageElapsedMs,omitempty"`
}

// AddContribution appends a contribution to the given stage's list,
// initializing the map on first use.
func (c *Context) AddContribution(stage Stage, contrib Contribution) {
	if c.Contributions == nil {
		c.Contributions = make(map[Stage][]Contribution)
	}
	c.Contributions[stage] = append(c.Contributions[stage], contrib)
}

// RecordElapsed stores the wall-clock duration of a completed stage.
func (c *Context) RecordElapsed(stage Stage, ms int64) {
	if c.StageElapsedMS == nil {
		c.StageElapsedMS = make(map[Stage]int64)
	}
	c.StageElapsedMS[stage] = ms
}

// Clone returns a deep copy of the context. Slice and map fields are
// independently copied so the clone is safe to mutate without affecting the
// original.
func (c *Context) Clone() *Context {
	dst := *c

	dst.ReferenceMatches = append([]ReferenceMatch(nil), c.ReferenceMatches...)
	dst.SubQuestions = append([]SubQuestion(nil), c.SubQuestions...)
	dst.Evidence = append([]EvidenceItem(nil), c.Evidence...)
	dst.Updates = append([]BayesianUpdate(nil), c.Updates...)
	dst.Concerns = append([]string(nil), c.Concerns...)
	dst.BiasFlags = append([]string(nil), c.BiasFlags...)
	dst.KeyDrivers = append([]string(nil), c.KeyDrivers...)

	dst.BaseRate = cloneFloat(c.BaseRate)
	dst.StructuralEstimate = cloneFloat(c.StructuralEstimate)
	dst.Posterior = cloneFloat(c.Posterior)
	dst.ConfidenceAdjustment = cloneFloat(c.ConfidenceAdjustment)
	dst.FinalProbability = cloneFloat(c.FinalProbability)
	dst.BaseRateInterval = cloneInterval(c.BaseRateInterval)
	dst.FinalInterval = cloneInterval(c.FinalInterval)

	if c.Contributions != nil {
		dst.Contributions = make(map[Stage][]Contribution, len(c.Contributions))
		for stage, list := range c.Contributions {
			copied := make([]Contribution, len(list))
			for i, contrib := range list {
				copied[i] = cloneContribution(contrib)
			}
			dst.Contributions[stage] = copied
		}
	}

	if c.StageElapsedMS != nil {
		dst.StageElapsedMS = make(map[Stage]int64, len(c.StageElapsedMS))
		for stage, ms := range c.StageElapsedMS {
			dst.StageElapsedMS[stage] = ms
		}
	}

	return &dst
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	copied := *v
	return &copied
}

func cloneInterval(v *Interval) *Interval {
	if v == nil {
		return nil
	}
	copied := *v
	return &copied
}

func cloneContribution(src Contribution) Contribution {
	dst := src
	dst.Sources = append([]string(nil), src.Sources...)
	if src.Output != nil {
		dst.Output = cloneOutput(src.Output)
	}
	return dst
}

// cloneOutput deep-copies a parsed agent output. Nested maps and slices are
// copied; leaf values are shared, which is safe because parsed JSON leaves
// are immutable scalars.
func cloneOutput(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneOutput(val)
	case []any:
		copied := make([]any, len(val))
		for i, item := range val {
			copied[i] = cloneValue(item)
		}
		return copied
	default:
		return v
	}
}
