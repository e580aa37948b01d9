package forecast

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskState is the lifecycle state of a pipeline task.
type TaskState string

const (
	TaskSubmitted TaskState = "submitted"
	TaskQueued    TaskState = "queued"
	TaskWorking   TaskState = "working"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// IsTerminal returns true if the state is final. No transition leaves a
// terminal state.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// transitions is the legal state graph. Cancellation is reachable from every
// non-terminal state.
var transitions = map[TaskState][]TaskState{
	TaskSubmitted: {TaskQueued, TaskCancelled},
	TaskQueued:    {TaskWorking, TaskCancelled},
	TaskWorking:   {TaskCompleted, TaskFailed, TaskCancelled},
}

// Task is one unit of pipeline work, paired one-to-one with a Context.
type Task struct {
	ID         string    `json:"id"`
	ForecastID string    `json:"forecastId"`
	GameID     string    `json:"gameId"`
	State      TaskState `json:"state"`

	CurrentStage Stage `json:"currentStage,omitempty"`
	Priority     int   `json:"priority"`

	// Configs is the stage configuration resolved from the preset at
	// creation time. Stages absent from the map run with defaults.
	Configs map[Stage]StageConfig `json:"configs,omitempty"`

	// CancelRequested is the cooperative cancellation flag, checked by the
	// orchestrator at stage boundaries only.
	CancelRequested bool `json:"cancelRequested,omitempty"`

	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// History records every state the task has passed through.
	History []StateChange `json:"history,omitempty"`
}

// StateChange is one recorded task state transition.
type StateChange struct {
	State     TaskState `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// Transition moves the task to the given state, enforcing the legal state
// graph. Completed and failed additionally stamp CompletedAt. Transitions
// out of a terminal state are rejected.
func (t *Task) Transition(to TaskState) error {
	if t.State.IsTerminal() {
		return fmt.Errorf("task %s: illegal transition %s -> %s: %s is terminal",
			t.ID, t.State, to, t.State)
	}
	legal := false
	for _, next := range transitions[t.State] {
		if next == to {
			legal = true
			break
		}
	}
	if !legal {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.ID, t.State, to)
	}

	now := time.Now()
	t.State = to
	t.UpdatedAt = now
	t.History = append(t.History, StateChange{State: to, Timestamp: now})
	if to == TaskCompleted || to == TaskFailed {
		t.CompletedAt = &now
	}
	return nil
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	dst := *t
	dst.History = append([]StateChange(nil), t.History...)
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		dst.CompletedAt = &completed
	}
	if t.Configs != nil {
		dst.Configs = make(map[Stage]StageConfig, len(t.Configs))
		for stage, cfg := range t.Configs {
			dst.Configs[stage] = cfg.Clone()
		}
	}
	return &dst
}

// NewPair creates a task and its owned context for one forecast request.
// Both carry fresh UUIDs; the task starts in the submitted state.
func NewPair(gameID, homeID, awayID string, priority int, configs map[Stage]StageConfig) (*Task, *Context) {
	now := time.Now()

	fc := &Context{
		ID:        uuid.NewString(),
		GameID:    gameID,
		HomeID:    homeID,
		AwayID:    awayID,
		CreatedAt: now,
	}

	task := &Task{
		ID:         uuid.NewString(),
		ForecastID: fc.ID,
		GameID:     gameID,
		State:      TaskSubmitted,
		Priority:   priority,
		Configs:    configs,
		CreatedAt:  now,
		UpdatedAt:  now,
		History:    []StateChange{{State: TaskSubmitted, Timestamp: now}},
	}

	return task, fc
}
