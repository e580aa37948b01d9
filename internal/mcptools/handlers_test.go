package mcptools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/foresight/internal/agent"
	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/invoke"
	"github.com/dusk-indust/foresight/internal/pipeline"
	"github.com/dusk-indust/foresight/internal/prompt"
	"github.com/dusk-indust/foresight/internal/reason"
)

type stubClient struct{}

const stubOutput = `{
  "probability": 0.6,
  "matches": [{"description": "2023 rivalry game", "outcome": "home win"}],
  "items": [{"claim": "starter out", "source": "https://example.com"}],
  "updates": [{"evidence": "injury", "likelihoodRatio": 0.8}],
  "posterior": 0.55,
  "subQuestions": [{"question": "is the center available", "estimate": 0.7}],
  "concerns": ["thin sample"],
  "finalProbability": 0.62,
  "recommendation": "lean home side",
  "confidence": 0.8
}`

func (stubClient) Complete(context.Context, string, string, reason.Options) (*reason.Completion, error) {
	return &reason.Completion{Text: stubOutput}, nil
}

func (stubClient) CompleteJSON(context.Context, string, string, reason.Options) (*reason.Completion, error) {
	return &reason.Completion{Text: stubOutput}, nil
}

func (stubClient) CompleteWithSearch(context.Context, string, reason.Options) (*reason.SearchResult, error) {
	return &reason.SearchResult{Text: stubOutput, Sources: []string{"https://example.com"}}, nil
}

func newTestService(t *testing.T) (*ForecastService, *pipeline.Orchestrator, forecast.Store) {
	t.Helper()

	store := forecast.NewMemoryStore()
	registry, err := agent.DefaultRegistry(nil)
	require.NoError(t, err)
	renderer, err := prompt.NewRenderer()
	require.NoError(t, err)

	invoker := invoke.NewInvoker(registry, renderer, stubClient{}, nil)
	executor := pipeline.NewExecutor(store, invoker, pipeline.NewRouter(registry), nil)
	orch := pipeline.NewOrchestrator(store, executor, pipeline.NewReporter(), nil, nil)

	return NewForecastService(orch, store), orch, store
}

func TestStartForecastTool(t *testing.T) {
	svc, orch, store := newTestService(t)

	_, out, err := svc.StartForecast(context.Background(), nil, StartForecastInput{
		GameID: "game-1",
		HomeID: "lakers",
		AwayID: "celtics",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.ForecastID)
	assert.NotEmpty(t, out.TaskID)

	orch.Wait()

	fc, err := store.GetContext(out.ForecastID)
	require.NoError(t, err)
	require.NotNil(t, fc.FinalProbability)
}

func TestStartForecastToolValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.StartForecast(context.Background(), nil, StartForecastInput{GameID: "game-1"})
	assert.Error(t, err)
}

func TestGetForecastTool(t *testing.T) {
	svc, orch, _ := newTestService(t)

	_, started, err := svc.StartForecast(context.Background(), nil, StartForecastInput{
		GameID: "game-1",
		HomeID: "lakers",
		AwayID: "celtics",
	})
	require.NoError(t, err)
	orch.Wait()

	_, out, err := svc.GetForecast(context.Background(), nil, GetForecastInput{ForecastID: started.ForecastID})
	require.NoError(t, err)
	require.NotNil(t, out.FinalProbability)
	assert.InDelta(t, 0.62, *out.FinalProbability, 1e-9)
	assert.Equal(t, "lean home side", out.Recommendation)
}

func TestGetForecastToolUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, err := svc.GetForecast(context.Background(), nil, GetForecastInput{ForecastID: "missing"})
	assert.ErrorIs(t, err, forecast.ErrNotFound)
}

func TestListForecastsTool(t *testing.T) {
	svc, orch, _ := newTestService(t)

	_, _, err := svc.StartForecast(context.Background(), nil, StartForecastInput{
		GameID: "game-1",
		HomeID: "lakers",
		AwayID: "celtics",
	})
	require.NoError(t, err)
	orch.Wait()

	_, out, err := svc.ListForecasts(context.Background(), nil, ListForecastsInput{GameID: "game-1"})
	require.NoError(t, err)
	require.Len(t, out.Forecasts, 1)
	assert.Equal(t, "game-1", out.Forecasts[0].GameID)
	assert.Equal(t, string(forecast.TaskCompleted), out.Forecasts[0].State)
}

func TestCancelForecastToolUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, out, err := svc.CancelForecast(context.Background(), nil, CancelForecastInput{ForecastID: "missing"})
	assert.Error(t, err)
	assert.Equal(t, "failed", out.Status)
}
