package forecast

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is a durable Store implementation over SQLite. Records are
// serialized as JSON documents; the only columns broken out are the ones the
// secondary queries filter on (game id, task state, insertion sequence).
// It satisfies the same contract as MemoryStore and is the intended
// production replacement behind the Store seam.
type SQLiteStore struct {
	db *sql.DB

	// mu serializes Update read-modify-write cycles. SQLite already
	// serializes writers, but the Update contract requires the closure to
	// see the latest committed record.
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// init creates the database schema.
func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contexts (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		data TEXT NOT NULL,
		seq INTEGER
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		forecast_id TEXT NOT NULL,
		game_id TEXT NOT NULL,
		state TEXT NOT NULL,
		data TEXT NOT NULL,
		seq INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_game ON tasks(game_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutContext(fc *Context) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshal context %q: %w", fc.ID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO contexts (id, game_id, data, seq)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM contexts))`,
		fc.ID, fc.GameID, string(data))
	if err != nil {
		return fmt.Errorf("insert context %q: %w", fc.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetContext(id string) (*Context, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM contexts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("context %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query context %q: %w", id, err)
	}

	var fc Context
	if err := json.Unmarshal([]byte(data), &fc); err != nil {
		return nil, fmt.Errorf("unmarshal context %q: %w", id, err)
	}
	return &fc, nil
}

func (s *SQLiteStore) UpdateContext(id string, fn func(*Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fc, err := s.GetContext(id)
	if err != nil {
		return err
	}
	fn(fc)

	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshal context %q: %w", id, err)
	}
	if _, err := s.db.Exec(`UPDATE contexts SET data = ? WHERE id = ?`, string(data), id); err != nil {
		return fmt.Errorf("update context %q: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteContext(id string) error {
	if _, err := s.db.Exec(`DELETE FROM contexts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete context %q: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) PutTask(t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task %q: %w", t.ID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO tasks (id, forecast_id, game_id, state, data, seq)
		 VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM tasks))`,
		t.ID, t.ForecastID, t.GameID, string(t.State), string(data))
	if err != nil {
		return fmt.Errorf("insert task %q: %w", t.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(id string) (*Task, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM tasks WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query task %q: %w", id, err)
	}

	var t Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("unmarshal task %q: %w", id, err)
	}
	return &t, nil
}

func (s *SQLiteStore) UpdateTask(id string, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.GetTask(id)
	if err != nil {
		return err
	}
	fn(t)

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task %q: %w", id, err)
	}
	if _, err := s.db.Exec(`UPDATE tasks SET state = ?, data = ? WHERE id = ?`,
		string(t.State), string(data), id); err != nil {
		return fmt.Errorf("update task %q: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTask(id string) error {
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %q: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) TasksByGame(gameID string) ([]*Task, error) {
	return s.queryTasks(`SELECT data FROM tasks WHERE game_id = ? ORDER BY seq`, gameID)
}

func (s *SQLiteStore) ActiveTasks() ([]*Task, error) {
	return s.queryTasks(
		`SELECT data FROM tasks WHERE state NOT IN (?, ?, ?) ORDER BY seq`,
		string(TaskCompleted), string(TaskFailed), string(TaskCancelled))
}

func (s *SQLiteStore) queryTasks(query string, args ...any) ([]*Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		var t Task
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("unmarshal task row: %w", err)
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}
