// Package export renders completed forecasts as portable reports.
package export

import (
	"encoding/json"
	"time"

	"github.com/dusk-indust/foresight/internal/forecast"
)

// Report is the top-level JSON export structure for one forecast.
type Report struct {
	ForecastID string `json:"forecastId"`
	GameID     string `json:"gameId"`
	HomeID     string `json:"homeId"`
	AwayID     string `json:"awayId"`
	ExportedAt string `json:"exportedAt"`

	FinalProbability *float64           `json:"finalProbability,omitempty"`
	FinalInterval    *forecast.Interval `json:"finalInterval,omitempty"`
	Recommendation   string             `json:"recommendation,omitempty"`
	KeyDrivers       []string           `json:"keyDrivers,omitempty"`

	BaseRate  *float64 `json:"baseRate,omitempty"`
	Posterior *float64 `json:"posterior,omitempty"`

	ReferenceMatches []forecast.ReferenceMatch `json:"referenceMatches,omitempty"`
	SubQuestions     []forecast.SubQuestion    `json:"subQuestions,omitempty"`
	Evidence         []forecast.EvidenceItem   `json:"evidence,omitempty"`
	EvidenceSummary  string                    `json:"evidenceSummary,omitempty"`
	Updates          []forecast.BayesianUpdate `json:"updates,omitempty"`
	Concerns         []string                  `json:"concerns,omitempty"`
	BiasFlags        []string                  `json:"biasFlags,omitempty"`

	Stages []StageSummary `json:"stages,omitempty"`
}

// StageSummary records which agents contributed to a stage and how long it
// took.
type StageSummary struct {
	Stage      forecast.Stage `json:"stage"`
	Agents     []string       `json:"agents,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	ElapsedMS  int64          `json:"elapsedMs,omitempty"`
}

// BuildReport flattens a forecast context into a Report.
func BuildReport(fc *forecast.Context) *Report {
	report := &Report{
		ForecastID: fc.ID,
		GameID:     fc.GameID,
		HomeID:     fc.HomeID,
		AwayID:     fc.AwayID,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),

		FinalProbability: fc.FinalProbability,
		FinalInterval:    fc.FinalInterval,
		Recommendation:   fc.Recommendation,
		KeyDrivers:       fc.KeyDrivers,

		BaseRate:  fc.BaseRate,
		Posterior: fc.Posterior,

		ReferenceMatches: fc.ReferenceMatches,
		SubQuestions:     fc.SubQuestions,
		Evidence:         fc.Evidence,
		EvidenceSummary:  fc.EvidenceSummary,
		Updates:          fc.Updates,
		Concerns:         fc.Concerns,
		BiasFlags:        fc.BiasFlags,
	}

	for _, stage := range forecast.Stages() {
		contribs, ok := fc.Contributions[stage]
		if !ok || len(contribs) == 0 {
			continue
		}
		summary := StageSummary{
			Stage:     stage,
			ElapsedMS: fc.StageElapsedMS[stage],
		}
		var total float64
		for _, c := range contribs {
			summary.Agents = append(summary.Agents, c.AgentID)
			total += c.Confidence
		}
		summary.Confidence = total / float64(len(contribs))
		report.Stages = append(report.Stages, summary)
	}

	return report
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
