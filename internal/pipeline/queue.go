package pipeline

import (
	"fmt"
	"sync"

	"github.com/dusk-indust/foresight/internal/forecast"
)

// Queue is the priority-ordered holding area for pipeline tasks. Ordering is
// by descending priority, stable among equal priorities, so dequeue is
// FIFO-within-priority. The queue records lifecycle transitions through the
// Store and reports them via the optional event callback; it never executes
// anything itself.
type Queue struct {
	mu    sync.Mutex
	items []queueItem

	store   forecast.Store
	onEvent func(Event)
}

type queueItem struct {
	taskID     string
	forecastID string
	priority   int
}

// NewQueue creates a Queue backed by the given store. onEvent may be nil.
func NewQueue(store forecast.Store, onEvent func(Event)) *Queue {
	return &Queue{store: store, onEvent: onEvent}
}

// Enqueue transitions a submitted task to queued and inserts it by priority.
func (q *Queue) Enqueue(taskID string) error {
	task, err := q.store.GetTask(taskID)
	if err != nil {
		return err
	}

	var transitionErr error
	if err := q.store.UpdateTask(taskID, func(t *forecast.Task) {
		transitionErr = t.Transition(forecast.TaskQueued)
	}); err != nil {
		return err
	}
	if transitionErr != nil {
		return transitionErr
	}

	q.mu.Lock()
	q.insert(queueItem{taskID: task.ID, forecastID: task.ForecastID, priority: task.Priority})
	depth := len(q.items)
	q.mu.Unlock()

	q.emit(Event{
		Kind:       EventProgressUpdate,
		ForecastID: task.ForecastID,
		TaskID:     task.ID,
		Status:     string(forecast.TaskQueued),
		Message:    fmt.Sprintf("queued at depth %d", depth),
	})
	return nil
}

// insert places the item after every queued item of equal or higher
// priority, keeping FIFO order within a priority level.
func (q *Queue) insert(item queueItem) {
	pos := len(q.items)
	for i, existing := range q.items {
		if existing.priority < item.priority {
			pos = i
			break
		}
	}
	q.items = append(q.items, queueItem{})
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = item
}

// Dequeue pops the highest-priority task id, or ok=false when empty.
func (q *Queue) Dequeue() (taskID string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item.taskID, true
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// CancelQueued removes a still-queued task outright and transitions it
// directly to cancelled. Returns false if the task is not in the queue
// (already dispatched or never enqueued); the caller then falls back to the
// cooperative flag.
func (q *Queue) CancelQueued(taskID string) (bool, error) {
	q.mu.Lock()
	removed := false
	var forecastID string
	for i, item := range q.items {
		if item.taskID == taskID {
			forecastID = item.forecastID
			q.items = append(q.items[:i], q.items[i+1:]...)
			removed = true
			break
		}
	}
	q.mu.Unlock()

	if !removed {
		return false, nil
	}

	var transitionErr error
	if err := q.store.UpdateTask(taskID, func(t *forecast.Task) {
		transitionErr = t.Transition(forecast.TaskCancelled)
	}); err != nil {
		return true, err
	}
	if transitionErr != nil {
		return true, transitionErr
	}

	q.emit(Event{
		Kind:       EventProgressUpdate,
		ForecastID: forecastID,
		TaskID:     taskID,
		Status:     string(forecast.TaskCancelled),
		Message:    "cancelled before dispatch",
	})
	return true, nil
}

func (q *Queue) emit(event Event) {
	if q.onEvent != nil {
		q.onEvent(event)
	}
}
