package pipeline

import (
	"github.com/dusk-indust/foresight/internal/forecast"
)

// Merge combines the successful contributions for one stage into a single
// stage output. A single contribution passes through verbatim; multiple
// contributions merge according to the stage's family.
func Merge(stage forecast.Stage, contribs []forecast.Contribution) map[string]any {
	if len(contribs) == 0 {
		return nil
	}
	if len(contribs) == 1 {
		return contribs[0].Output
	}

	switch FamilyOf(stage) {
	case FamilyEvidence:
		return mergeEvidence(stage, contribs)
	case FamilyReview:
		return mergeReview(contribs)
	case FamilyNumeric:
		return mergeNumeric(contribs)
	default:
		return highestConfidence(contribs).Output
	}
}

// evidenceArrayKey names the item array each evidence-family stage carries.
func evidenceArrayKey(stage forecast.Stage) string {
	if stage == forecast.StageReferenceClass {
		return "matches"
	}
	return "items"
}

// mergeEvidence concatenates the item arrays, dropping items whose source
// string was already seen, and keeps the first non-empty summary.
func mergeEvidence(stage forecast.Stage, contribs []forecast.Contribution) map[string]any {
	key := evidenceArrayKey(stage)
	seenSources := make(map[string]bool)

	var items []any
	summary := ""
	for _, contrib := range contribs {
		arr, _ := contrib.Output[key].([]any)
		for _, item := range arr {
			if m, ok := item.(map[string]any); ok {
				if source, _ := m["source"].(string); source != "" {
					if seenSources[source] {
						continue
					}
					seenSources[source] = true
				}
			}
			items = append(items, item)
		}
		if summary == "" {
			if s, _ := contrib.Output["summary"].(string); s != "" {
				summary = s
			}
		}
	}

	merged := map[string]any{key: items}
	if summary != "" {
		merged["summary"] = summary
	}
	return merged
}

// mergeReview concatenates the concern and bias-flag arrays; remaining
// fields come from the highest-confidence contribution.
func mergeReview(contribs []forecast.Contribution) map[string]any {
	merged := copyShallow(highestConfidence(contribs).Output)

	var concerns, flags []any
	for _, contrib := range contribs {
		if arr, ok := contrib.Output["concerns"].([]any); ok {
			concerns = append(concerns, arr...)
		}
		if arr, ok := contrib.Output["biasFlags"].([]any); ok {
			flags = append(flags, arr...)
		}
	}
	merged["concerns"] = concerns
	merged["biasFlags"] = flags
	return merged
}

// mergeNumeric starts from the highest-confidence output and overwrites
// every numeric field present in all contributions with the
// confidence-weighted average. Weights are each contribution's confidence,
// normalized to sum to 1; all-zero confidences degrade to equal weights.
func mergeNumeric(contribs []forecast.Contribution) map[string]any {
	merged := copyShallow(highestConfidence(contribs).Output)

	total := 0.0
	for _, contrib := range contribs {
		total += contrib.Confidence
	}

	for field := range merged {
		values := make([]float64, 0, len(contribs))
		for _, contrib := range contribs {
			v, ok := numericValue(contrib.Output[field])
			if !ok {
				break
			}
			values = append(values, v)
		}
		if len(values) != len(contribs) {
			continue
		}

		sum := 0.0
		for i, v := range values {
			weight := contribs[i].Confidence
			if total == 0 {
				weight = 1.0 / float64(len(contribs))
			} else {
				weight /= total
			}
			sum += v * weight
		}
		merged[field] = sum
	}

	return merged
}

// highestConfidence returns the contribution with the highest confidence;
// the earliest one wins a tie.
func highestConfidence(contribs []forecast.Contribution) forecast.Contribution {
	best := contribs[0]
	for _, contrib := range contribs[1:] {
		if contrib.Confidence > best.Confidence {
			best = contrib
		}
	}
	return best
}

func numericValue(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func copyShallow(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
