package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/invoke"
)

// StageStatus summarizes how a stage execution went.
type StageStatus string

const (
	StageSuccess StageStatus = "success" // every selected agent returned a usable result
	StagePartial StageStatus = "partial" // at least one agent succeeded, at least one failed
	StageFailed  StageStatus = "failed"  // no agent produced a usable result
)

// StageResult is the outcome of executing one stage for one forecast.
type StageResult struct {
	Stage         forecast.Stage
	Status        StageStatus
	Output        map[string]any
	Contributions []forecast.Contribution
	ElapsedMS     int64
	Err           error
}

const defaultFanOut = 2

// Executor runs a single pipeline stage: it selects agents, invokes them,
// merges their outputs, and writes the result back to the context store.
type Executor struct {
	store   forecast.Store
	invoker *invoke.Invoker
	router  *Router
	logger  *zap.Logger
	fanOut  int
}

// NewExecutor returns a stage executor wired to the given store, invoker and
// router.
func NewExecutor(store forecast.Store, invoker *invoke.Invoker, router *Router, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		store:   store,
		invoker: invoker,
		router:  router,
		logger:  logger,
		fanOut:  defaultFanOut,
	}
}

// Execute runs one stage for the forecast identified by forecastID. A
// non-nil error is returned only when the stage produced nothing usable;
// partial agent failures yield StagePartial with Err capturing the failures.
func (e *Executor) Execute(ctx context.Context, forecastID string, stage forecast.Stage, cfg forecast.StageConfig) (*StageResult, error) {
	start := time.Now()

	fc, err := e.store.GetContext(forecastID)
	if err != nil {
		return nil, fmt.Errorf("load context %s: %w", forecastID, err)
	}

	agentIDs, err := e.selectAgents(stage, cfg, fc)
	if err != nil {
		return &StageResult{Stage: stage, Status: StageFailed, Err: err}, err
	}

	e.logger.Debug("executing stage",
		zap.String("forecast_id", forecastID),
		zap.String("stage", string(stage)),
		zap.Strings("agents", agentIDs),
		zap.Bool("parallel", cfg.Parallel))

	results := e.invokeAgents(ctx, stage, agentIDs, cfg, fc)

	var contribs []forecast.Contribution
	var failures []string
	for _, res := range results {
		if res.OK() {
			contribs = append(contribs, res.Contribution)
		} else {
			failures = append(failures, fmt.Sprintf("%s: %v", res.AgentID, res.Err))
			e.logger.Warn("agent invocation failed",
				zap.String("stage", string(stage)),
				zap.String("agent", res.AgentID),
				zap.Error(res.Err))
		}
	}

	elapsed := time.Since(start).Milliseconds()

	if len(contribs) == 0 {
		err := fmt.Errorf("%w for stage %s: %s", ErrAllAgentsFailed, stage, strings.Join(failures, "; "))
		return &StageResult{Stage: stage, Status: StageFailed, ElapsedMS: elapsed, Err: err}, err
	}

	merged := Merge(stage, contribs)

	updateErr := e.store.UpdateContext(forecastID, func(fc *forecast.Context) {
		for _, contrib := range contribs {
			fc.AddContribution(stage, contrib)
		}
		applyOutput(fc, stage, merged)
		fc.RecordElapsed(stage, elapsed)
	})
	if updateErr != nil {
		return nil, fmt.Errorf("persist stage %s: %w", stage, updateErr)
	}

	status := StageSuccess
	var stageErr error
	if len(failures) > 0 {
		status = StagePartial
		stageErr = fmt.Errorf("partial stage %s: %s", stage, strings.Join(failures, "; "))
	}

	return &StageResult{
		Stage:         stage,
		Status:        status,
		Output:        merged,
		Contributions: contribs,
		ElapsedMS:     elapsed,
		Err:           stageErr,
	}, nil
}

// selectAgents resolves the agent set for a stage: the explicit config list
// when one is given, otherwise the router's pick over the stage-capable pool.
func (e *Executor) selectAgents(stage forecast.Stage, cfg forecast.StageConfig, fc *forecast.Context) ([]string, error) {
	if ids := cfg.EnabledAgentIDs(); len(ids) > 0 {
		return ids, nil
	}
	ids := e.router.SelectAgents(stage, fc, e.fanOut)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w for stage %s", ErrNoAgentsAvailable, stage)
	}
	return ids, nil
}

func (e *Executor) invokeAgents(ctx context.Context, stage forecast.Stage, agentIDs []string, cfg forecast.StageConfig, fc *forecast.Context) []invoke.Invocation {
	opts := make(map[string]invoke.Options, len(agentIDs))
	for _, id := range agentIDs {
		opts[id] = agentOptions(cfg, id)
	}

	if cfg.Parallel && len(agentIDs) > 1 {
		return e.invoker.InvokeParallel(ctx, agentIDs, stage, fc, opts)
	}

	results := make([]invoke.Invocation, 0, len(agentIDs))
	for _, id := range agentIDs {
		results = append(results, e.invoker.Invoke(ctx, id, stage, fc, opts[id]))
	}
	return results
}

func agentOptions(cfg forecast.StageConfig, agentID string) invoke.Options {
	var opts invoke.Options
	if override, ok := cfg.AgentOverride(agentID); ok {
		opts.Temperature = override.Temperature
		opts.MaxTokens = override.MaxTokens
		opts.PromptSuffix = override.PromptSuffix
		opts.Weight = override.Weight
	}
	return opts
}
