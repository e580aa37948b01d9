package forecast

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a context or task id has no record.
var ErrNotFound = errors.New("forecast: not found")

// Store is the keyed persistence seam for contexts and tasks. It carries no
// business logic; the pipeline owns all semantics and mutates records
// exclusively through UpdateContext/UpdateTask so there is a single write
// path. Implementations must be safe for concurrent use.
type Store interface {
	PutContext(fc *Context) error
	GetContext(id string) (*Context, error)
	UpdateContext(id string, fn func(*Context)) error
	DeleteContext(id string) error

	PutTask(t *Task) error
	GetTask(id string) (*Task, error)
	UpdateTask(id string, fn func(*Task)) error
	DeleteTask(id string) error

	// TasksByGame returns all tasks whose forecast targets the given
	// external game id, in insertion order.
	TasksByGame(gameID string) ([]*Task, error)

	// ActiveTasks returns all tasks not in a terminal state, in insertion
	// order. Tasks and contexts are created as a pair, so this doubles as
	// the set of non-terminal forecast contexts, addressed through each
	// task's ForecastID.
	ActiveTasks() ([]*Task, error)
}

// MemoryStore is the volatile reference Store. Records are held in maps
// keyed by id with separate slices preserving insertion order. Reads return
// deep copies, so callers can never alias stored state; writes happen only
// inside Update closures under the write lock.
type MemoryStore struct {
	mu sync.RWMutex

	contexts     map[string]*Context
	contextOrder []string

	tasks     map[string]*Task
	taskOrder []string

	// byGame indexes task ids by game id.
	byGame map[string][]string
}

// NewMemoryStore returns an initialized MemoryStore ready for use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contexts: make(map[string]*Context),
		tasks:    make(map[string]*Task),
		byGame:   make(map[string][]string),
	}
}

// PutContext stores a new context. Storing an id that already exists is an
// error; contexts are created once and then mutated through UpdateContext.
func (s *MemoryStore) PutContext(fc *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contexts[fc.ID]; exists {
		return fmt.Errorf("context %q already exists", fc.ID)
	}
	s.contexts[fc.ID] = fc.Clone()
	s.contextOrder = append(s.contextOrder, fc.ID)
	return nil
}

// GetContext returns a deep copy of the context with the given id.
func (s *MemoryStore) GetContext(id string) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fc, ok := s.contexts[id]
	if !ok {
		return nil, fmt.Errorf("context %q: %w", id, ErrNotFound)
	}
	return fc.Clone(), nil
}

// UpdateContext applies fn to the stored context under the write lock.
func (s *MemoryStore) UpdateContext(id string, fn func(*Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fc, ok := s.contexts[id]
	if !ok {
		return fmt.Errorf("context %q: %w", id, ErrNotFound)
	}
	fn(fc)
	return nil
}

// DeleteContext removes a context. Deleting an absent id is a no-op.
func (s *MemoryStore) DeleteContext(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.contexts, id)
	s.contextOrder = removeID(s.contextOrder, id)
	return nil
}

// PutTask stores a new task and indexes it by game id.
func (s *MemoryStore) PutTask(t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task %q already exists", t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	s.taskOrder = append(s.taskOrder, t.ID)
	if t.GameID != "" {
		s.byGame[t.GameID] = append(s.byGame[t.GameID], t.ID)
	}
	return nil
}

// GetTask returns a deep copy of the task with the given id.
func (s *MemoryStore) GetTask(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

// UpdateTask applies fn to the stored task under the write lock.
func (s *MemoryStore) UpdateTask(id string, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	fn(t)
	return nil
}

// DeleteTask removes a task and its index entry. Deleting an absent id is a
// no-op.
func (s *MemoryStore) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	delete(s.tasks, id)
	s.taskOrder = removeID(s.taskOrder, id)
	if t.GameID != "" {
		s.byGame[t.GameID] = removeID(s.byGame[t.GameID], id)
	}
	return nil
}

// TasksByGame returns deep copies of all tasks for the given game id.
func (s *MemoryStore) TasksByGame(gameID string) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byGame[gameID]
	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.tasks[id]; ok {
			tasks = append(tasks, t.Clone())
		}
	}
	return tasks, nil
}

// ActiveTasks returns deep copies of all non-terminal tasks.
func (s *MemoryStore) ActiveTasks() ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []*Task
	for _, id := range s.taskOrder {
		t := s.tasks[id]
		if !t.State.IsTerminal() {
			tasks = append(tasks, t.Clone())
		}
	}
	return tasks, nil
}

func removeID(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
