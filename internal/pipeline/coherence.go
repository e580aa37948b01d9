package pipeline

import (
	"sort"
	"strings"

	"github.com/dusk-indust/foresight/internal/agent"
	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/invoke"
)

// stageDomains is the fixed stage-to-domain affinity table. An agent whose
// profile domain appears here for the stage scores the affinity bonus.
var stageDomains = map[forecast.Stage][]string{
	forecast.StageReferenceClass:    {"history", "statistics"},
	forecast.StageBaseRate:          {"statistics"},
	forecast.StageDecomposition:     {"structure"},
	forecast.StageEvidenceGathering: {"research", "markets"},
	forecast.StageBayesianUpdate:    {"statistics"},
	forecast.StageAdversarialReview: {"critique"},
	forecast.StageSynthesis:         {"judgment"},
	forecast.StageCalibration:       {"calibration", "statistics"},
}

// stageTier is the fixed stage-class tier expectation: deliberate stages
// prefer coordinator-like agents, reactive/gathering stages prefer workers.
var stageTier = map[forecast.Stage]agent.Tier{
	forecast.StageReferenceClass:    agent.TierWorker,
	forecast.StageBaseRate:          agent.TierCoordinator,
	forecast.StageDecomposition:     agent.TierCoordinator,
	forecast.StageEvidenceGathering: agent.TierWorker,
	forecast.StageBayesianUpdate:    agent.TierCoordinator,
	forecast.StageAdversarialReview: agent.TierCoordinator,
	forecast.StageSynthesis:         agent.TierCoordinator,
	forecast.StageCalibration:       agent.TierWorker,
}

// stageKeywords are the domain-specific keywords counted in the forecast's
// prior contributions when scoring a candidate for a stage.
var stageKeywords = map[forecast.Stage][]string{
	forecast.StageReferenceClass:    {"season", "record", "rivalry", "historical"},
	forecast.StageBaseRate:          {"rate", "sample", "frequency", "probability"},
	forecast.StageDecomposition:     {"factor", "component", "depends", "conditional"},
	forecast.StageEvidenceGathering: {"injury", "lineup", "odds", "news", "form"},
	forecast.StageBayesianUpdate:    {"likelihood", "prior", "posterior", "odds"},
	forecast.StageAdversarialReview: {"bias", "overconfident", "assumption", "risk"},
	forecast.StageSynthesis:         {"probability", "recommendation", "driver"},
	forecast.StageCalibration:       {"calibration", "brier", "resolution"},
}

// Scoring weights. Keyword hits are worth keywordPoints each, capped at
// maxKeywordHits distinct matches.
const (
	domainAffinityPoints = 30
	tierMatchPoints      = 20
	keywordPoints        = 10
	maxKeywordHits       = 3
	specialistPoints     = 10
	dualStagePoints      = 5
	outputHeavyPoints    = 10
	outputHeavyCeiling   = 1500
)

// Router is the heuristic agent selector used when a stage has no explicit
// agent list. It is a pure function of static registry data and a read-only
// view of the context; it performs no mutation and is safe to call
// concurrently.
type Router struct {
	registry *agent.Registry
}

// NewRouter creates a Router over the given registry.
func NewRouter(registry *agent.Registry) *Router {
	return &Router{registry: registry}
}

// SelectAgents ranks the candidates supporting the stage and returns the top
// maxAgents ids. When the candidate count is within budget, all are returned
// without scoring. Ties keep the original candidate order.
func (r *Router) SelectAgents(stage forecast.Stage, fc *forecast.Context, maxAgents int) []string {
	candidates := r.registry.ByStage(stage)
	if len(candidates) == 0 {
		return nil
	}

	if len(candidates) <= maxAgents {
		ids := make([]string, len(candidates))
		for i, card := range candidates {
			ids[i] = card.ID
		}
		return ids
	}

	text := strings.ToLower(invoke.FlattenContributions(fc))

	type scored struct {
		id    string
		score int
	}
	ranked := make([]scored, len(candidates))
	for i, card := range candidates {
		ranked[i] = scored{id: card.ID, score: Score(card, stage, text)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	ids := make([]string, 0, maxAgents)
	for _, s := range ranked[:maxAgents] {
		ids = append(ids, s.id)
	}
	return ids
}

// Score computes the coherence score for one candidate. contextText must
// already be lowercased.
func Score(card agent.Card, stage forecast.Stage, contextText string) int {
	score := 0

	for _, domain := range stageDomains[stage] {
		if card.Profile.Domain == domain {
			score += domainAffinityPoints
			break
		}
	}

	if card.Profile.Tier == stageTier[stage] {
		score += tierMatchPoints
	}

	hits := 0
	for _, keyword := range stageKeywords[stage] {
		if strings.Contains(contextText, keyword) {
			hits++
			if hits == maxKeywordHits {
				break
			}
		}
	}
	score += hits * keywordPoints

	switch len(card.Stages) {
	case 1:
		score += specialistPoints
	case 2:
		score += dualStagePoints
	}

	if outputHeavy[stage] && card.Limits.MaxOutputTokens >= outputHeavyCeiling {
		score += outputHeavyPoints
	}

	return score
}
