package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/foresight/internal/agent"
	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/invoke"
	"github.com/dusk-indust/foresight/internal/prompt"
	"github.com/dusk-indust/foresight/internal/reason"
)

// scriptedClient implements reason.Client. Responses come from the respond
// function; failFor marks user-prompt substrings that force an error.
type scriptedClient struct {
	respond func(user string) string
	failFor []string
}

func (c *scriptedClient) answer(user string) (*reason.Completion, error) {
	for _, marker := range c.failFor {
		if strings.Contains(strings.ToLower(user), marker) {
			return nil, errors.New("scripted failure")
		}
	}
	return &reason.Completion{Text: c.respond(user)}, nil
}

func (c *scriptedClient) Complete(_ context.Context, _, user string, _ reason.Options) (*reason.Completion, error) {
	return c.answer(user)
}

func (c *scriptedClient) CompleteJSON(_ context.Context, _, user string, _ reason.Options) (*reason.Completion, error) {
	return c.answer(user)
}

func (c *scriptedClient) CompleteWithSearch(_ context.Context, instruction string, _ reason.Options) (*reason.SearchResult, error) {
	completion, err := c.answer(instruction)
	if err != nil {
		return nil, err
	}
	return &reason.SearchResult{Text: completion.Text, Sources: []string{"https://example.com"}}, nil
}

// omniOutput satisfies every stage's canonical shape at once; applyOutput
// only reads the fields its stage owns.
const omniOutput = `{
  "probability": 0.6,
  "confidenceInterval": {"low": 0.5, "high": 0.7},
  "sampleSize": 100,
  "matches": [{"description": "2023 rivalry game", "similarity": 0.8, "outcome": "home win"}],
  "subQuestions": [{"question": "is the starting center available", "estimate": 0.7}],
  "structuralEstimate": 0.58,
  "items": [{"claim": "starter out", "source": "https://example.com", "direction": "contradicts", "strength": 0.6}],
  "summary": "injury news dominates",
  "updates": [{"evidence": "injury", "likelihoodRatio": 0.8}],
  "posterior": 0.55,
  "concerns": ["thin sample"],
  "biasFlags": ["recency"],
  "confidenceAdjustment": -0.05,
  "finalProbability": 0.62,
  "finalInterval": {"low": 0.55, "high": 0.7},
  "recommendation": "lean home side",
  "keyDrivers": ["rest advantage"],
  "calibratedProbability": 0.6,
  "confidence": 0.8
}`

func newTestExecutor(t *testing.T, store forecast.Store, client reason.Client) *Executor {
	t.Helper()
	registry, err := agent.DefaultRegistry(nil)
	require.NoError(t, err)
	renderer, err := prompt.NewRenderer()
	require.NoError(t, err)
	invoker := invoke.NewInvoker(registry, renderer, client, nil)
	return NewExecutor(store, invoker, NewRouter(registry), nil)
}

func seedContext(t *testing.T, store forecast.Store) *forecast.Context {
	t.Helper()
	_, fc := forecast.NewPair("game-1", "lakers", "celtics", 0, nil)
	require.NoError(t, store.PutContext(fc))
	return fc
}

func TestExecuteMergesAndPersists(t *testing.T) {
	store := forecast.NewMemoryStore()
	fc := seedContext(t, store)
	exec := newTestExecutor(t, store, &scriptedClient{respond: func(string) string { return omniOutput }})

	result, err := exec.Execute(context.Background(), fc.ID, forecast.StageBaseRate, forecast.DefaultStageConfig())
	require.NoError(t, err)
	assert.Equal(t, StageSuccess, result.Status)
	assert.Len(t, result.Contributions, 2)

	stored, err := store.GetContext(fc.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.BaseRate)
	assert.InDelta(t, 0.6, *stored.BaseRate, 1e-9)
	assert.Len(t, stored.Contributions[forecast.StageBaseRate], 2)
	assert.Contains(t, stored.StageElapsedMS, forecast.StageBaseRate)
}

func TestExecuteExplicitAgentListWins(t *testing.T) {
	store := forecast.NewMemoryStore()
	fc := seedContext(t, store)
	exec := newTestExecutor(t, store, &scriptedClient{respond: func(string) string { return omniOutput }})

	cfg := forecast.StageConfig{
		Enabled: true,
		Agents: []forecast.AgentConfig{
			{ID: "rate-setter", Enabled: true},
			{ID: "stat-modeler", Enabled: false},
		},
	}

	result, err := exec.Execute(context.Background(), fc.ID, forecast.StageBaseRate, cfg)
	require.NoError(t, err)
	require.Len(t, result.Contributions, 1)
	assert.Equal(t, "rate-setter", result.Contributions[0].AgentID)
}

func TestExecuteAgentWeightShapesMerge(t *testing.T) {
	store := forecast.NewMemoryStore()
	fc := seedContext(t, store)
	exec := newTestExecutor(t, store, &scriptedClient{respond: func(string) string { return omniOutput }})

	cfg := forecast.StageConfig{
		Enabled: true,
		Agents: []forecast.AgentConfig{
			{ID: "rate-setter", Enabled: true, Weight: 0.5},
		},
	}

	result, err := exec.Execute(context.Background(), fc.ID, forecast.StageBaseRate, cfg)
	require.NoError(t, err)
	require.Len(t, result.Contributions, 1)
	// omniOutput reports confidence 0.8; the configured weight halves it.
	assert.InDelta(t, 0.4, result.Contributions[0].Confidence, 1e-9)
}

func TestExecuteAllAgentsFailed(t *testing.T) {
	store := forecast.NewMemoryStore()
	fc := seedContext(t, store)
	exec := newTestExecutor(t, store, &scriptedClient{
		respond: func(string) string { return omniOutput },
		failFor: []string{"estimate the probability"},
	})

	result, err := exec.Execute(context.Background(), fc.ID, forecast.StageBaseRate, forecast.DefaultStageConfig())
	assert.ErrorIs(t, err, ErrAllAgentsFailed)
	assert.Equal(t, StageFailed, result.Status)

	stored, err := store.GetContext(fc.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.BaseRate)
	assert.Empty(t, stored.Contributions[forecast.StageBaseRate])
}

func TestExecutePartialFailure(t *testing.T) {
	store := forecast.NewMemoryStore()
	fc := seedContext(t, store)

	// Fail the first call only; the sibling still succeeds.
	first := true
	exec := newTestExecutor(t, store, &scriptedClient{respond: func(string) string {
		if first {
			first = false
			return "garbled, not json"
		}
		return omniOutput
	}})

	cfg := forecast.StageConfig{
		Enabled: true,
		Agents: []forecast.AgentConfig{
			{ID: "rate-setter", Enabled: true},
			{ID: "stat-modeler", Enabled: true},
		},
	}

	result, err := exec.Execute(context.Background(), fc.ID, forecast.StageBaseRate, cfg)
	require.NoError(t, err)
	assert.Equal(t, StagePartial, result.Status)
	assert.Len(t, result.Contributions, 1)
	assert.Error(t, result.Err)
}

func TestExecuteNoAgentsForStage(t *testing.T) {
	store := forecast.NewMemoryStore()
	fc := seedContext(t, store)

	registry := agent.NewRegistry(nil)
	renderer, err := prompt.NewRenderer()
	require.NoError(t, err)
	invoker := invoke.NewInvoker(registry, renderer, &scriptedClient{respond: func(string) string { return omniOutput }}, nil)
	exec := NewExecutor(store, invoker, NewRouter(registry), nil)

	_, err = exec.Execute(context.Background(), fc.ID, forecast.StageBaseRate, forecast.DefaultStageConfig())
	assert.ErrorIs(t, err, ErrNoAgentsAvailable)
}

func TestExecuteUnknownForecast(t *testing.T) {
	store := forecast.NewMemoryStore()
	exec := newTestExecutor(t, store, &scriptedClient{respond: func(string) string { return omniOutput }})

	_, err := exec.Execute(context.Background(), "missing", forecast.StageBaseRate, forecast.DefaultStageConfig())
	assert.ErrorIs(t, err, forecast.ErrNotFound)
}
