package invoke

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/foresight/internal/agent"
	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/prompt"
	"github.com/dusk-indust/foresight/internal/reason"
)

// Options are per-invocation overrides resolved from the stage
// configuration. Zero values defer to the agent card's limits.
type Options struct {
	Temperature  float64
	MaxTokens    int
	PromptSuffix string

	// Weight scales the agent's reported confidence before the
	// contribution is recorded, so downstream confidence-weighted merges
	// see the configured emphasis. Zero means unweighted.
	Weight float64
}

// Invocation is the outcome of invoking one agent for one stage. Exactly one
// of Contribution or Err is meaningful.
type Invocation struct {
	AgentID      string
	Contribution forecast.Contribution
	Err          error
}

// OK reports whether the invocation produced a contribution.
func (inv Invocation) OK() bool { return inv.Err == nil }

// Invoker renders prompts, calls the reasoning service, and normalizes the
// result into a contribution. It is stateless across invocations and safe
// for concurrent use.
type Invoker struct {
	registry *agent.Registry
	renderer PromptRenderer
	client   reason.Client
	band     Band
	logger   *zap.Logger
}

// PromptRenderer is the slice of the prompt package the invoker needs.
type PromptRenderer interface {
	Render(stage forecast.Stage, vars prompt.Vars) (system, user string, err error)
	RenderString(text string, vars prompt.Vars) (string, error)
}

// NewInvoker wires an Invoker with the default likelihood-ratio band.
func NewInvoker(registry *agent.Registry, renderer PromptRenderer, client reason.Client, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{
		registry: registry,
		renderer: renderer,
		client:   client,
		band:     DefaultBand,
		logger:   logger,
	}
}

// SetBand replaces the likelihood-ratio clamping band.
func (iv *Invoker) SetBand(band Band) { iv.band = band }

// Invoke runs one agent against one stage of the forecast context. Latency
// is measured from the reasoning call start to parse completion.
func (iv *Invoker) Invoke(ctx context.Context, agentID string, stage forecast.Stage, fc *forecast.Context, opts Options) Invocation {
	card, ok := iv.registry.Get(agentID)
	if !ok {
		return Invocation{AgentID: agentID, Err: fmt.Errorf("agent %q: %w", agentID, ErrAgentNotFound)}
	}
	if !card.SupportsStage(stage) {
		return Invocation{AgentID: agentID, Err: fmt.Errorf("agent %q, stage %s: %w", agentID, stage, ErrStageUnsupported)}
	}

	vars := BuildVars(stage, fc)
	system, user, err := iv.renderer.Render(stage, vars)
	if err != nil {
		return Invocation{AgentID: agentID, Err: fmt.Errorf("agent %q: %w", agentID, err)}
	}
	if opts.PromptSuffix != "" {
		suffix, err := iv.renderer.RenderString(opts.PromptSuffix, vars)
		if err != nil {
			return Invocation{AgentID: agentID, Err: fmt.Errorf("agent %q prompt suffix: %w", agentID, err)}
		}
		user += "\n\n" + suffix
	}

	ropts := reason.Options{
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		ResponseFormat: "json",
	}
	if ropts.MaxTokens == 0 {
		ropts.MaxTokens = card.Limits.MaxOutputTokens
	}

	start := time.Now()
	text, sources, err := iv.complete(ctx, card, system, user, ropts)
	if err != nil {
		return Invocation{AgentID: agentID, Err: fmt.Errorf("agent %q: %w", agentID, err)}
	}

	output, err := ParseObject(text)
	if err != nil {
		return Invocation{AgentID: agentID, Err: fmt.Errorf("agent %q: %w", agentID, err)}
	}
	latency := time.Since(start)

	iv.band.clampUpdates(output)

	confidence := ExtractConfidence(output)
	if opts.Weight > 0 {
		confidence = math.Min(1, confidence*opts.Weight)
	}

	contrib := forecast.Contribution{
		AgentID:    agentID,
		Output:     output,
		Confidence: confidence,
		LatencyMS:  latency.Milliseconds(),
		Sources:    sources,
		Timestamp:  time.Now(),
	}

	iv.logger.Debug("agent invoked",
		zap.String("agent", agentID),
		zap.String("stage", string(stage)),
		zap.Float64("confidence", contrib.Confidence),
		zap.Int64("latencyMs", contrib.LatencyMS))

	return Invocation{AgentID: agentID, Contribution: contrib}
}

// complete routes to the search-augmented call for agents that declare the
// search action, and the structured JSON call otherwise.
func (iv *Invoker) complete(ctx context.Context, card agent.Card, system, user string, opts reason.Options) (string, []string, error) {
	if card.HasAction(agent.ActionWebSearch) {
		result, err := iv.client.CompleteWithSearch(ctx, system+"\n\n"+user, opts)
		if err != nil {
			return "", nil, err
		}
		return result.Text, result.Sources, nil
	}

	result, err := iv.client.CompleteJSON(ctx, system, user, opts)
	if err != nil {
		return "", nil, err
	}
	return result.Text, nil, nil
}

// InvokeParallel fans the same stage out to several agents and waits for all
// of them. One agent's failure never cancels its siblings; the caller
// decides what to do with a partial result set. Results are positional,
// matching agentIDs.
func (iv *Invoker) InvokeParallel(ctx context.Context, agentIDs []string, stage forecast.Stage, fc *forecast.Context, opts map[string]Options) []Invocation {
	results := make([]Invocation, len(agentIDs))
	g := new(errgroup.Group)

	for i, id := range agentIDs {
		g.Go(func() error {
			results[i] = iv.Invoke(ctx, id, stage, fc, opts[id])
			return nil
		})
	}

	_ = g.Wait()
	return results
}
