package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/reason"
)

func newTestOrchestrator(t *testing.T, store forecast.Store, client reason.Client) *Orchestrator {
	t.Helper()
	exec := newTestExecutor(t, store, client)
	return NewOrchestrator(store, exec, NewReporter(), BuiltinPresets(), nil)
}

func drainEvents(reporter *Reporter) []Event {
	var events []Event
	for {
		select {
		case e := <-reporter.Subscribe():
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestOrchestratorRunsFullPipeline(t *testing.T) {
	store := forecast.NewMemoryStore()
	orch := newTestOrchestrator(t, store, &scriptedClient{respond: func(string) string { return omniOutput }})

	forecastID, taskID, err := orch.Start(context.Background(), "game-1", "lakers", "celtics", "", 0)
	require.NoError(t, err)
	orch.Wait()

	task, err := store.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, forecast.TaskCompleted, task.State)
	assert.NotNil(t, task.CompletedAt)

	fc, err := store.GetContext(forecastID)
	require.NoError(t, err)
	require.NotNil(t, fc.FinalProbability)
	assert.InDelta(t, 0.62, *fc.FinalProbability, 1e-9)
	require.NotNil(t, fc.BaseRate)
	require.NotNil(t, fc.Posterior)
	assert.NotEmpty(t, fc.Evidence)
	assert.NotEmpty(t, fc.Concerns)

	// Every enabled stage recorded at least one contribution.
	for _, stage := range forecast.Stages() {
		assert.NotEmpty(t, fc.Contributions[stage], "stage %s", stage)
	}

	events := drainEvents(orch.Reporter())
	kinds := make(map[EventKind]int)
	for _, e := range events {
		kinds[e.Kind]++
	}
	assert.Equal(t, 8, kinds[EventStageStart])
	assert.Equal(t, 8, kinds[EventStageComplete])
	assert.Equal(t, 1, kinds[EventPipelineComplete])
	assert.Zero(t, kinds[EventPipelineError])
}

func TestOrchestratorFastPresetSkipsStages(t *testing.T) {
	store := forecast.NewMemoryStore()
	orch := newTestOrchestrator(t, store, &scriptedClient{respond: func(string) string { return omniOutput }})

	forecastID, _, err := orch.Start(context.Background(), "game-1", "lakers", "celtics", "fast", 0)
	require.NoError(t, err)
	orch.Wait()

	fc, err := store.GetContext(forecastID)
	require.NoError(t, err)
	assert.Empty(t, fc.Contributions[forecast.StageDecomposition])
	assert.Empty(t, fc.Contributions[forecast.StageAdversarialReview])
	assert.Empty(t, fc.Contributions[forecast.StageCalibration])
	require.NotNil(t, fc.FinalProbability)
}

func TestOrchestratorUnknownPreset(t *testing.T) {
	store := forecast.NewMemoryStore()
	orch := newTestOrchestrator(t, store, &scriptedClient{respond: func(string) string { return omniOutput }})

	_, _, err := orch.Start(context.Background(), "game-1", "lakers", "celtics", "warp-speed", 0)
	assert.Error(t, err)
}

func TestOrchestratorCriticalStageFailureFailsTask(t *testing.T) {
	store := forecast.NewMemoryStore()
	// Synthesis prompts fail for every agent; earlier stages succeed.
	orch := newTestOrchestrator(t, store, &scriptedClient{
		respond: func(string) string { return omniOutput },
		failFor: []string{"final forecast"},
	})

	forecastID, taskID, err := orch.Start(context.Background(), "game-1", "lakers", "celtics", "", 0)
	require.NoError(t, err)
	orch.Wait()

	task, err := store.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, forecast.TaskFailed, task.State)
	assert.NotEmpty(t, task.Error)

	// Values committed before the failure survive on the context.
	fc, err := store.GetContext(forecastID)
	require.NoError(t, err)
	assert.NotNil(t, fc.BaseRate)
	assert.NotNil(t, fc.Posterior)
	assert.Nil(t, fc.FinalProbability)

	events := drainEvents(orch.Reporter())
	var sawError bool
	for _, e := range events {
		if e.Kind == EventPipelineError {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestOrchestratorNonCriticalFailureContinues(t *testing.T) {
	store := forecast.NewMemoryStore()
	// Adversarial review fails, but the pipeline still completes.
	orch := newTestOrchestrator(t, store, &scriptedClient{
		respond: func(string) string { return omniOutput },
		failFor: []string{"attack this forecast"},
	})

	forecastID, taskID, err := orch.Start(context.Background(), "game-1", "lakers", "celtics", "", 0)
	require.NoError(t, err)
	orch.Wait()

	task, err := store.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, forecast.TaskCompleted, task.State)

	fc, err := store.GetContext(forecastID)
	require.NoError(t, err)
	assert.Empty(t, fc.Concerns)
	require.NotNil(t, fc.FinalProbability)
}

func TestOrchestratorNoFinalProbabilityLeavesStateReached(t *testing.T) {
	store := forecast.NewMemoryStore()
	exec := newTestExecutor(t, store, &scriptedClient{respond: func(string) string { return omniOutput }})
	presets := Presets{
		DefaultPresetName: {
			forecast.StageSynthesis: {Enabled: false},
		},
	}
	orch := NewOrchestrator(store, exec, NewReporter(), presets, nil)

	forecastID, taskID, err := orch.Start(context.Background(), "game-1", "lakers", "celtics", "", 0)
	require.NoError(t, err)
	orch.Wait()

	// Synthesis never ran, so there is no final probability. The task keeps
	// the state it reached rather than being failed.
	task, err := store.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, forecast.TaskWorking, task.State)
	assert.Empty(t, task.Error)

	fc, err := store.GetContext(forecastID)
	require.NoError(t, err)
	assert.Nil(t, fc.FinalProbability)

	for _, e := range drainEvents(orch.Reporter()) {
		assert.NotEqual(t, EventPipelineComplete, e.Kind)
		assert.NotEqual(t, EventPipelineError, e.Kind)
	}
}

func TestOrchestratorCancelBeforeDispatch(t *testing.T) {
	store := forecast.NewMemoryStore()
	orch := newTestOrchestrator(t, store, &scriptedClient{respond: func(string) string { return omniOutput }})

	// Enqueue without starting a driver by going through the queue directly.
	configs, err := BuiltinPresets().Resolve("")
	require.NoError(t, err)
	task, fc := forecast.NewPair("game-1", "lakers", "celtics", 0, configs)
	require.NoError(t, store.PutContext(fc))
	require.NoError(t, store.PutTask(task))
	require.NoError(t, orch.Queue().Enqueue(task.ID))

	require.NoError(t, orch.Cancel(fc.ID))

	stored, err := store.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, forecast.TaskCancelled, stored.State)
}

func TestOrchestratorCancelUnknownForecast(t *testing.T) {
	store := forecast.NewMemoryStore()
	orch := newTestOrchestrator(t, store, &scriptedClient{respond: func(string) string { return omniOutput }})
	assert.ErrorIs(t, orch.Cancel("missing"), forecast.ErrNotFound)
}

func TestOrchestratorCooperativeCancelStopsAtBoundary(t *testing.T) {
	store := forecast.NewMemoryStore()

	// The client blocks the driver on the first stage until the cancel flag
	// is set, so the boundary check runs afterwards.
	release := make(chan struct{})
	client := &scriptedClient{respond: func(string) string {
		<-release
		return omniOutput
	}}
	orch := newTestOrchestrator(t, store, client)

	forecastID, taskID, err := orch.Start(context.Background(), "game-1", "lakers", "celtics", "", 0)
	require.NoError(t, err)

	require.NoError(t, store.UpdateTask(taskID, func(tk *forecast.Task) {
		tk.CancelRequested = true
	}))
	close(release)
	orch.Wait()

	task, err := store.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, forecast.TaskCancelled, task.State)

	fc, err := store.GetContext(forecastID)
	require.NoError(t, err)
	assert.Nil(t, fc.FinalProbability)
}
