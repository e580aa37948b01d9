package invoke

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/prompt"
)

// BuildVars assembles the template variable map for one stage. Values are
// extracted from the contributions earlier stages already recorded on the
// context, so each stage sees the best available version of its inputs. A
// missing base rate falls back to 0.5 — an uninformative prior, not an
// error.
func BuildVars(stage forecast.Stage, fc *forecast.Context) prompt.Vars {
	baseRate := firstNumeric(fc, forecast.StageBaseRate, "probability", 0.5)
	posterior := firstNumeric(fc, forecast.StageBayesianUpdate, "posterior", baseRate)

	vars := prompt.Vars{
		"GameID":           fc.GameID,
		"Home":             fc.HomeID,
		"Away":             fc.AwayID,
		"BaseRate":         baseRate,
		"Posterior":        posterior,
		"FinalProbability": firstNumeric(fc, forecast.StageSynthesis, "finalProbability", posterior),
		"ReferenceMatches": flattenMatches(fc),
		"Evidence":         flattenEvidence(fc),
		"Concerns":         flattenConcerns(fc),
	}
	return vars
}

// firstNumeric returns the first numeric value of the named field across the
// given stage's contributions, or fallback if none is present.
func firstNumeric(fc *forecast.Context, stage forecast.Stage, field string, fallback float64) float64 {
	for _, contrib := range fc.Contributions[stage] {
		if v, ok := asFloat(contrib.Output[field]); ok {
			return v
		}
	}
	return fallback
}

// flattenMatches renders the reference-class matches as one text line each.
func flattenMatches(fc *forecast.Context) string {
	var lines []string
	for _, contrib := range fc.Contributions[forecast.StageReferenceClass] {
		matches, ok := contrib.Output["matches"].([]any)
		if !ok {
			continue
		}
		for _, item := range matches {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			desc, _ := m["description"].(string)
			outcome, _ := m["outcome"].(string)
			if desc == "" {
				continue
			}
			if outcome != "" {
				lines = append(lines, fmt.Sprintf("- %s (outcome: %s)", desc, outcome))
			} else {
				lines = append(lines, "- "+desc)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// flattenEvidence renders gathered evidence items as text, one claim per
// line with its source when known.
func flattenEvidence(fc *forecast.Context) string {
	var lines []string
	for _, contrib := range fc.Contributions[forecast.StageEvidenceGathering] {
		items, ok := contrib.Output["items"].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			claim, _ := m["claim"].(string)
			if claim == "" {
				continue
			}
			if source, _ := m["source"].(string); source != "" {
				lines = append(lines, fmt.Sprintf("- %s [%s]", claim, source))
			} else {
				lines = append(lines, "- "+claim)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// flattenConcerns renders adversarial-review concerns as one line each.
func flattenConcerns(fc *forecast.Context) string {
	var lines []string
	for _, contrib := range fc.Contributions[forecast.StageAdversarialReview] {
		concerns, ok := contrib.Output["concerns"].([]any)
		if !ok {
			continue
		}
		for _, item := range concerns {
			if s, ok := item.(string); ok && s != "" {
				lines = append(lines, "- "+s)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// FlattenContributions dumps all prior contributions of a context into one
// text blob. The coherence router scans this for domain keywords.
func FlattenContributions(fc *forecast.Context) string {
	var b strings.Builder
	for _, stage := range forecast.Stages() {
		for _, contrib := range fc.Contributions[stage] {
			writeValue(&b, contrib.Output)
		}
	}
	return b.String()
}

func writeValue(b *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		for _, nested := range val {
			writeValue(b, nested)
		}
	case []any:
		for _, nested := range val {
			writeValue(b, nested)
		}
	case string:
		b.WriteString(val)
		b.WriteByte(' ')
	case float64:
		fmt.Fprintf(b, "%g ", val)
	}
}
