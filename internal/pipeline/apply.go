package pipeline

import (
	"github.com/dusk-indust/foresight/internal/forecast"
)

// applyOutput maps a merged stage output onto the context's accumulator
// fields. Each stage has one canonical output shape; unknown fields are
// ignored. The full output is always preserved in the contribution list, so
// nothing is lost by a conservative mapping.
func applyOutput(fc *forecast.Context, stage forecast.Stage, output map[string]any) {
	switch stage {
	case forecast.StageReferenceClass:
		applyReferenceClass(fc, output)
	case forecast.StageBaseRate:
		applyBaseRate(fc, output)
	case forecast.StageDecomposition:
		applyDecomposition(fc, output)
	case forecast.StageEvidenceGathering:
		applyEvidence(fc, output)
	case forecast.StageBayesianUpdate:
		applyBayesianUpdate(fc, output)
	case forecast.StageAdversarialReview:
		applyReview(fc, output)
	case forecast.StageSynthesis:
		applySynthesis(fc, output)
	case forecast.StageCalibration:
		// The calibration entry lives in the contribution record only;
		// there is no accumulator field to update.
	}
}

func applyReferenceClass(fc *forecast.Context, output map[string]any) {
	for _, item := range objectList(output["matches"]) {
		match := forecast.ReferenceMatch{
			Description: stringField(item, "description"),
			Outcome:     stringField(item, "outcome"),
		}
		match.Similarity, _ = floatField(item, "similarity")
		if match.Description != "" {
			fc.ReferenceMatches = append(fc.ReferenceMatches, match)
		}
	}
}

func applyBaseRate(fc *forecast.Context, output map[string]any) {
	probability, ok := floatField(output, "probability")
	if !ok {
		return
	}
	fc.BaseRate = &probability

	if interval, ok := intervalField(output, "confidenceInterval"); ok {
		fc.BaseRateInterval = interval
	} else {
		// Agent omitted the interval: default to +/-0.1 around the point.
		fc.BaseRateInterval = &forecast.Interval{
			Low:  clamp01(probability - 0.1),
			High: clamp01(probability + 0.1),
		}
	}

	if n, ok := floatField(output, "sampleSize"); ok {
		fc.SampleSize = int(n)
	}
}

func applyDecomposition(fc *forecast.Context, output map[string]any) {
	for _, item := range objectList(output["subQuestions"]) {
		sq := forecast.SubQuestion{Question: stringField(item, "question")}
		sq.Estimate, _ = floatField(item, "estimate")
		if sq.Question != "" {
			fc.SubQuestions = append(fc.SubQuestions, sq)
		}
	}
	if estimate, ok := floatField(output, "structuralEstimate"); ok {
		fc.StructuralEstimate = &estimate
	}
}

func applyEvidence(fc *forecast.Context, output map[string]any) {
	for _, item := range objectList(output["items"]) {
		ev := forecast.EvidenceItem{
			Claim:     stringField(item, "claim"),
			Source:    stringField(item, "source"),
			Direction: stringField(item, "direction"),
		}
		ev.Strength, _ = floatField(item, "strength")
		if ev.Claim != "" {
			fc.Evidence = append(fc.Evidence, ev)
		}
	}
	if summary := stringField(output, "summary"); summary != "" && fc.EvidenceSummary == "" {
		fc.EvidenceSummary = summary
	}
}

// applyBayesianUpdate records the update chain with a running posterior
// computed in odds space from the current prior, then sets the posterior:
// the agent's own value when it reported one, the chain's end otherwise.
func applyBayesianUpdate(fc *forecast.Context, output map[string]any) {
	prior := 0.5
	if fc.BaseRate != nil {
		prior = *fc.BaseRate
	}

	odds := toOdds(prior)
	for _, item := range objectList(output["updates"]) {
		lr, ok := floatField(item, "likelihoodRatio")
		if !ok {
			continue
		}
		odds *= lr
		fc.Updates = append(fc.Updates, forecast.BayesianUpdate{
			Evidence:        stringField(item, "evidence"),
			LikelihoodRatio: lr,
			Posterior:       fromOdds(odds),
		})
	}

	if posterior, ok := floatField(output, "posterior"); ok {
		fc.Posterior = &posterior
	} else if len(fc.Updates) > 0 {
		chainEnd := fc.Updates[len(fc.Updates)-1].Posterior
		fc.Posterior = &chainEnd
	}
}

func applyReview(fc *forecast.Context, output map[string]any) {
	fc.Concerns = append(fc.Concerns, stringList(output["concerns"])...)
	fc.BiasFlags = append(fc.BiasFlags, stringList(output["biasFlags"])...)
	if adj, ok := floatField(output, "confidenceAdjustment"); ok {
		fc.ConfidenceAdjustment = &adj
	}
}

func applySynthesis(fc *forecast.Context, output map[string]any) {
	probability, ok := floatField(output, "finalProbability")
	if !ok {
		return
	}
	fc.FinalProbability = &probability

	if interval, ok := intervalField(output, "finalInterval"); ok {
		fc.FinalInterval = interval
	} else {
		fc.FinalInterval = &forecast.Interval{
			Low:  clamp01(probability - 0.1),
			High: clamp01(probability + 0.1),
		}
	}

	fc.Recommendation = stringField(output, "recommendation")
	fc.KeyDrivers = append(fc.KeyDrivers, stringList(output["keyDrivers"])...)
}

// --- field helpers ---

func objectList(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]any, key string) (float64, bool) {
	f, ok := m[key].(float64)
	return f, ok
}

func intervalField(m map[string]any, key string) (*forecast.Interval, bool) {
	obj, ok := m[key].(map[string]any)
	if !ok {
		return nil, false
	}
	low, okLow := floatField(obj, "low")
	high, okHigh := floatField(obj, "high")
	if !okLow || !okHigh {
		return nil, false
	}
	return &forecast.Interval{Low: low, High: high}, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toOdds(p float64) float64 {
	if p >= 1 {
		p = 0.999
	}
	if p <= 0 {
		p = 0.001
	}
	return p / (1 - p)
}

func fromOdds(o float64) float64 {
	return o / (1 + o)
}
