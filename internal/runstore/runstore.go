// Package runstore persists planning-run summaries in a local SQLite
// database so runs can be compared across invocations. It stores run
// outcomes, not assignments; solution files carry the beams themselves.
package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"
)

var (
	ErrClosed   = errors.New("run store is closed")
	ErrNotFound = errors.New("run not found")
)

// Run is one recorded planning-run summary.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Scenario    string
	Fingerprint string
	Users       int
	Satellites  int
	Served      int
	Coverage    float64
	Duration    time.Duration
	Sweeps      int
	Swaps       int
	DeadlineHit bool
	Violations  int
}

// Store wraps the SQLite connection holding run history. It is intended
// for single-owner use; Close must not race with other calls.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the run store at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping run store: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) migrate() error {
	version := 0
	s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS runs (
				id           TEXT PRIMARY KEY,
				created_at   TEXT NOT NULL,
				scenario     TEXT NOT NULL,
				fingerprint  TEXT NOT NULL,
				users        INTEGER NOT NULL,
				satellites   INTEGER NOT NULL,
				served       INTEGER NOT NULL,
				coverage     REAL NOT NULL,
				duration_ms  INTEGER NOT NULL,
				sweeps       INTEGER NOT NULL,
				swaps        INTEGER NOT NULL,
				deadline_hit INTEGER NOT NULL DEFAULT 0,
				violations   INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
			CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// RecordRun inserts a run summary, assigning an ID and timestamp when
// absent, and returns the run ID.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	if s == nil || s.db == nil {
		return "", ErrClosed
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, scenario, fingerprint, users, satellites,
			served, coverage, duration_ms, sweeps, swaps, deadline_hit, violations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.Scenario,
		run.Fingerprint,
		run.Users,
		run.Satellites,
		run.Served,
		run.Coverage,
		run.Duration.Milliseconds(),
		run.Sweeps,
		run.Swaps,
		boolToInt(run.DeadlineHit),
		run.Violations,
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return run.ID, nil
}

// RecentRuns returns the most recent runs, newest first. Limit 0 means
// unlimited.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}

	query := `
		SELECT id, created_at, scenario, fingerprint, users, satellites,
		       served, coverage, duration_ms, sweeps, swaps, deadline_hit, violations
		  FROM runs
		 ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// BestForScenario returns the highest-coverage run recorded for the given
// scenario fingerprint. Ties go to the earlier run.
func (s *Store) BestForScenario(ctx context.Context, fingerprint string) (Run, error) {
	if s == nil || s.db == nil {
		return Run{}, ErrClosed
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, scenario, fingerprint, users, satellites,
		       served, coverage, duration_ms, sweeps, swaps, deadline_hit, violations
		  FROM runs
		 WHERE fingerprint = ?
		 ORDER BY coverage DESC, created_at ASC
		 LIMIT 1`, fingerprint)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: fingerprint %s", ErrNotFound, fingerprint)
	}
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// Fingerprint returns a stable hex digest of raw scenario bytes, used to
// correlate runs over the same input.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run         Run
		createdAt   string
		durationMS  int64
		deadlineHit int
	)
	if err := row.Scan(
		&run.ID,
		&createdAt,
		&run.Scenario,
		&run.Fingerprint,
		&run.Users,
		&run.Satellites,
		&run.Served,
		&run.Coverage,
		&durationMS,
		&run.Sweeps,
		&run.Swaps,
		&deadlineHit,
		&run.Violations,
	); err != nil {
		return Run{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse run timestamp %q: %w", createdAt, err)
	}
	run.CreatedAt = ts
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.DeadlineHit = deadlineHit != 0
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
