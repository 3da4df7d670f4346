package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/core/runner"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// ErrNoRuns is returned by Last when nothing has been saved yet.
var ErrNoRuns = errors.New("no runs recorded")

// Run is a stored run summary.
type Run struct {
	ID        string
	BaseURL   string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Passed    int
	Failed    int
	Attempts  int
}

func (r Run) AllPassed() bool {
	return r.Failed == 0
}

// Scenario is a stored scenario outcome.
type Scenario struct {
	Position  int
	Name      string
	Source    string
	Passed    bool
	Attempts  int
	Status    int
	ErrorKind string
	Error     string
	Duration  time.Duration
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path. A "sqlite://" or
// "sqlite:" prefix is accepted.
func Open(path string) (*Store, error) {
	dsn := dataSource(path)
	if dsn == "" {
		return nil, fmt.Errorf("history database path is empty")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open history db %s: %w", dsn, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history schema migration failed: %w", err)
	}
	return s, nil
}

func dataSource(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "sqlite://") {
		return strings.TrimPrefix(path, "sqlite://")
	}
	return strings.TrimPrefix(path, "sqlite:")
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	// times are unix milliseconds, durations are milliseconds
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		base_url TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		total INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		attempts INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS scenarios (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		source TEXT NOT NULL,
		passed INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		status INTEGER NOT NULL,
		error_kind TEXT NOT NULL,
		error TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (run_id, position)
	);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Save records a run and all its scenario outcomes in one transaction.
func (s *Store) Save(ctx context.Context, result *runner.RunResult) error {
	if result == nil {
		return fmt.Errorf("nil run result")
	}
	if result.ID == "" {
		return fmt.Errorf("run result has no ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, base_url, started_at, duration_ms, total, passed, failed, attempts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.BaseURL, result.StartedAt.UnixMilli(), result.Duration.Milliseconds(),
		result.Total(), result.Passed, result.Failed, result.TotalAttempts(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", result.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scenarios (run_id, position, name, source, passed, attempts, status, error_kind, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare scenario insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range result.Results {
		errText := ""
		if r.LastError != nil {
			errText = r.LastError.Error()
		}
		if _, err := stmt.ExecContext(ctx,
			result.ID, i, r.Name, r.Source, r.Passed, r.Attempts, r.LastStatus,
			string(r.ErrorKind), errText, r.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("failed to save scenario %q: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", result.ID, err)
	}
	return nil
}

const runColumns = `id, base_url, started_at, duration_ms, total, passed, failed, attempts`

// Recent returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Last returns the most recent run or ErrNoRuns.
func (s *Store) Last(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Scenarios returns the scenario outcomes of one run in their original order.
func (s *Store) Scenarios(ctx context.Context, runID string) ([]Scenario, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, name, source, passed, attempts, status, error_kind, error, duration_ms
		 FROM scenarios WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	out := make([]Scenario, 0)
	for rows.Next() {
		var sc Scenario
		var durationMs int64
		if err := rows.Scan(&sc.Position, &sc.Name, &sc.Source, &sc.Passed, &sc.Attempts,
			&sc.Status, &sc.ErrorKind, &sc.Error, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		sc.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var startedMs, durationMs int64
	err := row.Scan(&run.ID, &run.BaseURL, &startedMs, &durationMs,
		&run.Total, &run.Passed, &run.Failed, &run.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = time.UnixMilli(startedMs).UTC()
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return run, nil
}
