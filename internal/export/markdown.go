package export

import (
	"fmt"
	"strings"
)

// Markdown renders the report as a human-readable document.
func (r *Report) Markdown() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Forecast %s\n\n", r.GameID)
	fmt.Fprintf(&sb, "**Matchup:** %s vs %s  \n", r.HomeID, r.AwayID)
	fmt.Fprintf(&sb, "**Exported:** %s\n\n", r.ExportedAt)

	if r.FinalProbability != nil {
		fmt.Fprintf(&sb, "## Result\n\n")
		fmt.Fprintf(&sb, "**Final probability:** %.1f%%", *r.FinalProbability*100)
		if r.FinalInterval != nil {
			fmt.Fprintf(&sb, " (%.1f%% – %.1f%%)", r.FinalInterval.Low*100, r.FinalInterval.High*100)
		}
		sb.WriteString("\n\n")
		if r.Recommendation != "" {
			fmt.Fprintf(&sb, "%s\n\n", r.Recommendation)
		}
		if len(r.KeyDrivers) > 0 {
			sb.WriteString("**Key drivers:**\n\n")
			for _, driver := range r.KeyDrivers {
				fmt.Fprintf(&sb, "- %s\n", driver)
			}
			sb.WriteString("\n")
		}
	}

	if r.BaseRate != nil || r.Posterior != nil {
		sb.WriteString("## Probability chain\n\n")
		if r.BaseRate != nil {
			fmt.Fprintf(&sb, "- Base rate: %.1f%%\n", *r.BaseRate*100)
		}
		for _, update := range r.Updates {
			fmt.Fprintf(&sb, "- %s (LR %.2f) → %.1f%%\n",
				update.Evidence, update.LikelihoodRatio, update.Posterior*100)
		}
		if r.Posterior != nil {
			fmt.Fprintf(&sb, "- Posterior: %.1f%%\n", *r.Posterior*100)
		}
		sb.WriteString("\n")
	}

	if len(r.ReferenceMatches) > 0 {
		sb.WriteString("## Reference class\n\n")
		for _, match := range r.ReferenceMatches {
			fmt.Fprintf(&sb, "- %s (similarity %.2f): %s\n",
				match.Description, match.Similarity, match.Outcome)
		}
		sb.WriteString("\n")
	}

	if len(r.Evidence) > 0 {
		sb.WriteString("## Evidence\n\n")
		for _, item := range r.Evidence {
			line := item.Claim
			if item.Direction != "" {
				line += fmt.Sprintf(" [%s]", item.Direction)
			}
			if item.Source != "" {
				line += fmt.Sprintf(" (%s)", item.Source)
			}
			fmt.Fprintf(&sb, "- %s\n", line)
		}
		sb.WriteString("\n")
		if r.EvidenceSummary != "" {
			fmt.Fprintf(&sb, "%s\n\n", r.EvidenceSummary)
		}
	}

	if len(r.Concerns) > 0 || len(r.BiasFlags) > 0 {
		sb.WriteString("## Review\n\n")
		for _, concern := range r.Concerns {
			fmt.Fprintf(&sb, "- %s\n", concern)
		}
		for _, flag := range r.BiasFlags {
			fmt.Fprintf(&sb, "- Bias flag: %s\n", flag)
		}
		sb.WriteString("\n")
	}

	if len(r.Stages) > 0 {
		sb.WriteString("## Stage summary\n\n")
		sb.WriteString("| Stage | Agents | Confidence | Elapsed |\n")
		sb.WriteString("|-------|--------|-----------|---------|\n")
		for _, stage := range r.Stages {
			fmt.Fprintf(&sb, "| %s | %s | %.2f | %dms |\n",
				stage.Stage, strings.Join(stage.Agents, ", "),
				stage.Confidence, stage.ElapsedMS)
		}
	}

	return sb.String()
}
