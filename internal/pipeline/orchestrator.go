package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dusk-indust/foresight/internal/forecast"
)

// Orchestrator owns the full lifecycle of a forecast run: it creates the
// task/context pair, queues the task, and drives it through the stage
// sequence. One goroutine drives one task; concurrency across forecasts is
// bounded only by the caller.
type Orchestrator struct {
	store    forecast.Store
	queue    *Queue
	executor *Executor
	reporter *Reporter
	presets  Presets
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewOrchestrator wires an orchestrator over the given components. A nil
// presets map falls back to the builtins.
func NewOrchestrator(store forecast.Store, executor *Executor, reporter *Reporter, presets Presets, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if presets == nil {
		presets = BuiltinPresets()
	}
	o := &Orchestrator{
		store:    store,
		executor: executor,
		reporter: reporter,
		presets:  presets,
		logger:   logger,
	}
	o.queue = NewQueue(store, reporter.Emit)
	return o
}

// Reporter exposes the event reporter for transport adapters.
func (o *Orchestrator) Reporter() *Reporter { return o.reporter }

// Queue exposes the task queue, mainly for depth inspection.
func (o *Orchestrator) Queue() *Queue { return o.queue }

// Start submits a new forecast for the given matchup, enqueues its task and
// begins driving it. It returns immediately with the forecast and task ids;
// progress is observable through the reporter and the store.
func (o *Orchestrator) Start(ctx context.Context, gameID, homeID, awayID, preset string, priority int) (forecastID, taskID string, err error) {
	configs, err := o.presets.Resolve(preset)
	if err != nil {
		return "", "", err
	}

	task, fc := forecast.NewPair(gameID, homeID, awayID, priority, configs)
	if err := o.store.PutContext(fc); err != nil {
		return "", "", fmt.Errorf("store context: %w", err)
	}
	if err := o.store.PutTask(task); err != nil {
		return "", "", fmt.Errorf("store task: %w", err)
	}
	if err := o.queue.Enqueue(task.ID); err != nil {
		return "", "", err
	}

	o.logger.Info("forecast submitted",
		zap.String("forecast_id", fc.ID),
		zap.String("task_id", task.ID),
		zap.String("game_id", gameID),
		zap.String("preset", preset))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if id, ok := o.queue.Dequeue(); ok {
			o.drive(ctx, id)
		}
	}()

	return fc.ID, task.ID, nil
}

// Wait blocks until every in-flight forecast driver has finished. Intended
// for shutdown and tests.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Cancel cancels the forecast's task. A still-queued task is removed
// outright; a working task gets the cooperative flag and stops at the next
// stage boundary. Cancelling an already-terminal task is an error.
func (o *Orchestrator) Cancel(forecastID string) error {
	task, err := o.taskForForecast(forecastID)
	if err != nil {
		return err
	}
	if task.State.IsTerminal() {
		return fmt.Errorf("task %s already %s", task.ID, task.State)
	}

	removed, err := o.queue.CancelQueued(task.ID)
	if err != nil {
		return err
	}
	if removed {
		return nil
	}

	return o.store.UpdateTask(task.ID, func(t *forecast.Task) {
		t.CancelRequested = true
	})
}

func (o *Orchestrator) taskForForecast(forecastID string) (*forecast.Task, error) {
	tasks, err := o.store.ActiveTasks()
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.ForecastID == forecastID {
			return t, nil
		}
	}
	return nil, fmt.Errorf("forecast %s: %w", forecastID, forecast.ErrNotFound)
}

// drive runs a dequeued task through every enabled stage in order. Critical
// stage failure fails the whole run; non-critical failures are recorded and
// skipped. Cancellation is honored at stage boundaries only, so a stage in
// flight always finishes.
func (o *Orchestrator) drive(ctx context.Context, taskID string) {
	task, err := o.store.GetTask(taskID)
	if err != nil {
		o.logger.Error("dequeued unknown task", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	forecastID := task.ForecastID

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic",
				zap.String("forecast_id", forecastID),
				zap.Any("panic", r))
			o.fail(forecastID, taskID, fmt.Errorf("pipeline panic: %v", r))
		}
	}()

	var transitionErr error
	if err := o.store.UpdateTask(taskID, func(t *forecast.Task) {
		transitionErr = t.Transition(forecast.TaskWorking)
	}); err != nil || transitionErr != nil {
		o.logger.Error("task start failed", zap.String("task_id", taskID),
			zap.Error(errors.Join(err, transitionErr)))
		return
	}

	for _, stage := range forecast.Stages() {
		if o.cancelled(taskID) {
			o.cancel(forecastID, taskID)
			return
		}
		if ctx.Err() != nil {
			o.fail(forecastID, taskID, ctx.Err())
			return
		}

		cfg, ok := task.Configs[stage]
		if !ok {
			cfg = forecast.DefaultStageConfig()
		}
		if !cfg.Enabled {
			o.logger.Debug("stage disabled",
				zap.String("forecast_id", forecastID),
				zap.String("stage", string(stage)))
			continue
		}

		o.advanceStage(forecastID, taskID, stage)
		o.reporter.Emit(Event{
			Kind:       EventStageStart,
			ForecastID: forecastID,
			TaskID:     taskID,
			Stage:      stage,
		})

		result, err := o.runStage(ctx, forecastID, stage, cfg)
		if err != nil {
			if Critical(stage) {
				o.fail(forecastID, taskID, fmt.Errorf("%w: stage %s: %v", ErrPipelineFailure, stage, err))
				return
			}
			o.logger.Warn("non-critical stage failed, continuing",
				zap.String("forecast_id", forecastID),
				zap.String("stage", string(stage)),
				zap.Error(err))
			o.reporter.Emit(Event{
				Kind:       EventStageComplete,
				ForecastID: forecastID,
				TaskID:     taskID,
				Stage:      stage,
				Status:     string(StageFailed),
				Message:    err.Error(),
			})
			continue
		}

		o.reporter.Emit(Event{
			Kind:       EventStageComplete,
			ForecastID: forecastID,
			TaskID:     taskID,
			Stage:      stage,
			Status:     string(result.Status),
			Output:     result.Output,
			ElapsedMS:  result.ElapsedMS,
		})
	}

	o.complete(forecastID, taskID)
}

func (o *Orchestrator) runStage(ctx context.Context, forecastID string, stage forecast.Stage, cfg forecast.StageConfig) (*StageResult, error) {
	ctx, span := startStageSpan(ctx, forecastID, stage)
	defer span.End()

	result, err := o.executor.Execute(ctx, forecastID, stage, cfg)
	recordStageSpan(span, result, err)
	return result, err
}

func (o *Orchestrator) cancelled(taskID string) bool {
	task, err := o.store.GetTask(taskID)
	if err != nil {
		return false
	}
	return task.CancelRequested
}

func (o *Orchestrator) advanceStage(forecastID, taskID string, stage forecast.Stage) {
	_ = o.store.UpdateTask(taskID, func(t *forecast.Task) {
		t.CurrentStage = stage
	})
	_ = o.store.UpdateContext(forecastID, func(fc *forecast.Context) {
		fc.CurrentStage = stage
	})
}

// complete finishes the run. A run that reached the end without a final
// probability is left in whatever state it reached; completion requires an
// actual forecast.
func (o *Orchestrator) complete(forecastID, taskID string) {
	fc, err := o.store.GetContext(forecastID)
	if err != nil {
		o.fail(forecastID, taskID, fmt.Errorf("%w: load context: %v", ErrPipelineFailure, err))
		return
	}
	if fc.FinalProbability == nil {
		o.logger.Warn("pipeline finished without a final probability",
			zap.String("forecast_id", forecastID))
		return
	}

	_ = o.store.UpdateTask(taskID, func(t *forecast.Task) {
		_ = t.Transition(forecast.TaskCompleted)
	})

	o.logger.Info("forecast complete",
		zap.String("forecast_id", forecastID),
		zap.Float64("final_probability", *fc.FinalProbability))

	o.reporter.Emit(Event{
		Kind:       EventPipelineComplete,
		ForecastID: forecastID,
		TaskID:     taskID,
		Status:     string(forecast.TaskCompleted),
		Output:     map[string]any{"finalProbability": *fc.FinalProbability},
	})
}

func (o *Orchestrator) fail(forecastID, taskID string, cause error) {
	_ = o.store.UpdateTask(taskID, func(t *forecast.Task) {
		t.Error = cause.Error()
		_ = t.Transition(forecast.TaskFailed)
	})

	o.logger.Error("forecast failed",
		zap.String("forecast_id", forecastID),
		zap.Error(cause))

	o.reporter.Emit(Event{
		Kind:       EventPipelineError,
		ForecastID: forecastID,
		TaskID:     taskID,
		Status:     string(forecast.TaskFailed),
		Message:    cause.Error(),
	})
}

func (o *Orchestrator) cancel(forecastID, taskID string) {
	_ = o.store.UpdateTask(taskID, func(t *forecast.Task) {
		_ = t.Transition(forecast.TaskCancelled)
	})

	o.logger.Info("forecast cancelled", zap.String("forecast_id", forecastID))

	o.reporter.Emit(Event{
		Kind:       EventProgressUpdate,
		ForecastID: forecastID,
		TaskID:     taskID,
		Status:     string(forecast.TaskCancelled),
		Message:    "cancelled at stage boundary",
	})
}
