package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/foresight/internal/forecast"
)

func enqueueTask(t *testing.T, store forecast.Store, q *Queue, gameID string, priority int) *forecast.Task {
	t.Helper()
	task, fc := forecast.NewPair(gameID, "home", "away", priority, nil)
	require.NoError(t, store.PutContext(fc))
	require.NoError(t, store.PutTask(task))
	require.NoError(t, q.Enqueue(task.ID))
	return task
}

func TestQueuePriorityOrdering(t *testing.T) {
	store := forecast.NewMemoryStore()
	q := NewQueue(store, nil)

	low := enqueueTask(t, store, q, "game-1", 0)
	high := enqueueTask(t, store, q, "game-2", 10)
	mid := enqueueTask(t, store, q, "game-3", 5)

	first, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, high.ID, first)

	second, _ := q.Dequeue()
	assert.Equal(t, mid.ID, second)

	third, _ := q.Dequeue()
	assert.Equal(t, low.ID, third)

	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestQueueFIFOWithinPriority(t *testing.T) {
	store := forecast.NewMemoryStore()
	q := NewQueue(store, nil)

	first := enqueueTask(t, store, q, "game-1", 3)
	second := enqueueTask(t, store, q, "game-2", 3)

	got, _ := q.Dequeue()
	assert.Equal(t, first.ID, got)
	got, _ = q.Dequeue()
	assert.Equal(t, second.ID, got)
}

func TestEnqueueTransitionsToQueued(t *testing.T) {
	store := forecast.NewMemoryStore()
	var events []Event
	q := NewQueue(store, func(e Event) { events = append(events, e) })

	task := enqueueTask(t, store, q, "game-1", 0)

	stored, err := store.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, forecast.TaskQueued, stored.State)

	require.Len(t, events, 1)
	assert.Equal(t, EventProgressUpdate, events[0].Kind)
	assert.Equal(t, string(forecast.TaskQueued), events[0].Status)
}

func TestEnqueueRejectsUnknownTask(t *testing.T) {
	q := NewQueue(forecast.NewMemoryStore(), nil)
	assert.ErrorIs(t, q.Enqueue("missing"), forecast.ErrNotFound)
}

func TestCancelQueuedRemovesAndTransitions(t *testing.T) {
	store := forecast.NewMemoryStore()
	q := NewQueue(store, nil)

	task := enqueueTask(t, store, q, "game-1", 0)

	removed, err := q.CancelQueued(task.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, q.Len())

	stored, err := store.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, forecast.TaskCancelled, stored.State)
}

func TestCancelQueuedMissesDispatchedTask(t *testing.T) {
	store := forecast.NewMemoryStore()
	q := NewQueue(store, nil)

	task := enqueueTask(t, store, q, "game-1", 0)
	_, ok := q.Dequeue()
	require.True(t, ok)

	removed, err := q.CancelQueued(task.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}
