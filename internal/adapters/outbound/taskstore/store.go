// Package taskstore keeps the status of pipeline runs and their layers in a
// SQLite database so long or parallel runs can be observed while they execute.
package taskstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/layerforge/layerforge/internal/domain"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultFile is the database location relative to a project root.
const DefaultFile = ".layerforge/tasks.db"

// Run status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunStatus is one row of the runs table with its layers.
type RunStatus struct {
	ID         string        `json:"id"`
	Project    string        `json:"project"`
	Keyword    string        `json:"keyword"`
	Status     string        `json:"status"`
	CommitHash string        `json:"commit_hash,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Layers     []LayerStatus `json:"layers,omitempty"`
}

// LayerStatus is one row of the layers table.
type LayerStatus struct {
	Layer        domain.Layer  `json:"layer"`
	Action       domain.Action `json:"action"`
	Target       string        `json:"target"`
	Path         string        `json:"path"`
	Status       string        `json:"status"`
	Turns        int           `json:"turns"`
	WrittenFiles []string      `json:"written_files,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Store implements domain.RunRecorder on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the parent directory if needed, opens the database in WAL mode
// and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("taskstore: create dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("taskstore: open database: %w", err)
	}
	// Parallel layers report concurrently; one connection serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("taskstore: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("taskstore: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			project     TEXT NOT NULL,
			keyword     TEXT NOT NULL,
			status      TEXT NOT NULL,
			commit_hash TEXT NOT NULL DEFAULT '',
			started_at  TEXT NOT NULL,
			finished_at TEXT
		);

		CREATE TABLE IF NOT EXISTS layers (
			run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			layer         TEXT NOT NULL,
			action        TEXT NOT NULL,
			target        TEXT NOT NULL DEFAULT '',
			path          TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			turns         INTEGER NOT NULL DEFAULT 0,
			written_files TEXT NOT NULL DEFAULT '',
			error         TEXT NOT NULL DEFAULT '',
			updated_at    TEXT NOT NULL,
			PRIMARY KEY (run_id, layer)
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`)
	return err
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

func (s *Store) RunStarted(r *domain.RunReport) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, project, keyword, status, started_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status`,
		r.ID, r.ProjectPath, r.Feature.Keyword, StatusRunning, r.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("taskstore: run started: %w", err)
	}
	return nil
}

func (s *Store) LayerStarted(runID string, d domain.LayerDecision) error {
	_, err := s.db.Exec(
		`INSERT INTO layers (run_id, layer, action, target, path, status, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, layer) DO UPDATE SET
			action = excluded.action, target = excluded.target, path = excluded.path,
			status = excluded.status, updated_at = excluded.updated_at`,
		runID, string(d.Layer), string(d.Action), d.Target, d.Path, StatusRunning, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("taskstore: layer %s started: %w", d.Layer, err)
	}
	return nil
}

func (s *Store) LayerFinished(runID string, res domain.GenerationResult) error {
	d := res.Decision
	_, err := s.db.Exec(
		`INSERT INTO layers (run_id, layer, action, target, path, status, turns, written_files, error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, layer) DO UPDATE SET
			status = excluded.status, turns = excluded.turns, written_files = excluded.written_files,
			error = excluded.error, updated_at = excluded.updated_at`,
		runID, string(res.Layer), string(d.Action), d.Target, d.Path, string(res.Termination),
		len(res.Turns), strings.Join(res.WrittenFiles, "\n"), res.Error, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("taskstore: layer %s finished: %w", res.Layer, err)
	}
	return nil
}

func (s *Store) RunFinished(r *domain.RunReport) error {
	status := StatusFailed
	if r.Success {
		status = StatusSucceeded
	}
	finished := r.FinishedAt
	if finished.IsZero() {
		finished = s.now()
	}
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, commit_hash = ?, finished_at = ? WHERE id = ?`,
		status, r.CommitHash, finished.UTC().Format(timeLayout), r.ID,
	)
	if err != nil {
		return fmt.Errorf("taskstore: run finished: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("taskstore: run %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}

// Run returns one run with its layers in generation order.
func (s *Store) Run(id string) (*RunStatus, error) {
	row := s.db.QueryRow(
		`SELECT id, project, keyword, status, commit_hash, started_at, finished_at FROM runs WHERE id = ?`, id)
	rs, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("taskstore: run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taskstore: run %s: %w", id, err)
	}

	rows, err := s.db.Query(
		`SELECT layer, action, target, path, status, turns, written_files, error FROM layers WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("taskstore: layers of %s: %w", id, err)
	}
	defer rows.Close()

	byLayer := make(map[domain.Layer]LayerStatus)
	for rows.Next() {
		var (
			ls      LayerStatus
			layer   string
			action  string
			written string
		)
		if err := rows.Scan(&layer, &action, &ls.Target, &ls.Path, &ls.Status, &ls.Turns, &written, &ls.Error); err != nil {
			return nil, fmt.Errorf("taskstore: scan layer: %w", err)
		}
		ls.Layer, ls.Action = domain.Layer(layer), domain.Action(action)
		if written != "" {
			ls.WrittenFiles = strings.Split(written, "\n")
		}
		byLayer[ls.Layer] = ls
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("taskstore: layers of %s: %w", id, err)
	}
	for _, l := range domain.LayerOrder {
		if ls, ok := byLayer[l]; ok {
			rs.Layers = append(rs.Layers, ls)
		}
	}
	return rs, nil
}

// Recent returns up to limit runs, newest first, without layers.
func (s *Store) Recent(limit int) ([]RunStatus, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, project, keyword, status, commit_hash, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("taskstore: recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunStatus
	for rows.Next() {
		rs, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("taskstore: scan run: %w", err)
		}
		out = append(out, *rs)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunStatus, error) {
	var (
		rs       RunStatus
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&rs.ID, &rs.Project, &rs.Keyword, &rs.Status, &rs.CommitHash, &started, &finished); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	rs.StartedAt = t
	if finished.Valid {
		f, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		rs.FinishedAt = &f
	}
	return &rs, nil
}
