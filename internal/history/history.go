// Package history records runs in a local sqlite database so past
// pipeline outcomes stay inspectable (`autobuild runs`).
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// ErrNotFound is returned when a run doesn't exist.
var ErrNotFound = errors.New("run not found")

const dbFile = "history.db"

// Run is one pipeline invocation.
type Run struct {
	ID         string
	Project    string
	Spec       string
	Model      string
	State      string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in flight
}

// Phase is one phase of a run.
type Phase struct {
	RunID      string
	Name       string
	Model      string
	Outcome    string // "" while the phase is in flight
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store provides run history storage using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// DefaultPath returns the per-user history database path.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".autobuild", dbFile), nil
}

// Open opens or creates a history store at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// OpenDefault opens the store at DefaultPath.
func OpenDefault() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			project     TEXT NOT NULL,
			spec        TEXT NOT NULL,
			model       TEXT NOT NULL,
			state       TEXT NOT NULL,
			error       TEXT NOT NULL DEFAULT '',
			started_at  TEXT NOT NULL,
			finished_at TEXT
		);
		CREATE TABLE IF NOT EXISTS phases (
			run_id      TEXT NOT NULL,
			phase       TEXT NOT NULL,
			model       TEXT NOT NULL,
			outcome     TEXT NOT NULL DEFAULT '',
			started_at  TEXT NOT NULL,
			finished_at TEXT,
			PRIMARY KEY (run_id, phase)
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`)
	return err
}

// StartRun records a new run in its initial state.
func (s *Store) StartRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := run.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, project, spec, model, state, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Project, run.Spec, run.Model, run.State, started.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// UpdateState records a state transition for an in-flight run.
func (s *Store) UpdateState(id, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE runs SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("updating run state: %w", err)
	}
	return nil
}

// FinishRun records the final state, optional error text, and finish time.
func (s *Store) FinishRun(id, state, errorText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE runs SET state = ?, error = ?, finished_at = ? WHERE id = ?
	`, state, errorText, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// StartPhase records a phase beginning under a run.
func (s *Store) StartPhase(runID, phase, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO phases (run_id, phase, model, started_at)
		VALUES (?, ?, ?, ?)
	`, runID, phase, model, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting phase: %w", err)
	}
	return nil
}

// FinishPhase records a phase outcome.
func (s *Store) FinishPhase(runID, phase, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE phases SET outcome = ?, finished_at = ? WHERE run_id = ? AND phase = ?
	`, outcome, time.Now().UTC().Format(time.RFC3339Nano), runID, phase)
	if err != nil {
		return fmt.Errorf("finishing phase: %w", err)
	}
	return nil
}

// Get retrieves a run by id.
func (s *Store) Get(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, project, spec, model, state, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	return run, nil
}

// Recent returns the most recently started runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, project, spec, model, state, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Phases returns a run's phases in start order.
func (s *Store) Phases(runID string) ([]Phase, error) {
	rows, err := s.db.Query(`
		SELECT run_id, phase, model, outcome, started_at, finished_at
		FROM phases WHERE run_id = ? ORDER BY started_at
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying phases: %w", err)
	}
	defer rows.Close()

	var phases []Phase
	for rows.Next() {
		var p Phase
		var startedStr string
		var finished sql.NullString
		if err := rows.Scan(&p.RunID, &p.Name, &p.Model, &p.Outcome, &startedStr, &finished); err != nil {
			return nil, fmt.Errorf("scanning phase: %w", err)
		}
		p.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		if finished.Valid {
			p.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRun(scan func(...any) error) (*Run, error) {
	var run Run
	var startedStr string
	var finished sql.NullString
	err := scan(&run.ID, &run.Project, &run.Spec, &run.Model, &run.State, &run.Error, &startedStr, &finished)
	if err != nil {
		return nil, err
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	if finished.Valid {
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	return &run, nil
}
