// Package ledger persists run history to SQLite so past gap-filling
// outcomes can be reviewed without re-running the pipeline. Rows are
// append-only.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tripstitch/tripstitch/internal/report"
)

// DefaultDBPath is the default ledger location.
const DefaultDBPath = "~/.tripstitch/tripstitch.db"

// RunSummary is one persisted run.
type RunSummary struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	LegsLoaded    int
	GapsFound     int
	GapsFilled    int
	EmailsScanned int
	BatchesTotal  int
	BatchesFailed int
	OutputFile    string
}

// GapOutcome is one persisted per-gap result.
type GapOutcome struct {
	RunID     string
	GapNumber int
	Kind      string
	PriorCity string
	NextCity  string
	Outcome   string
	Sources   string
}

// Ledger is the SQLite-backed run history store.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the ledger database. Pass ":memory:" for
// tests.
func Open(path string) (*Ledger, error) {
	if path == "" {
		path = expandPath(DefaultDBPath)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging ledger: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger: %w", err)
	}
	return l, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			legs_loaded INTEGER NOT NULL,
			gaps_found INTEGER NOT NULL,
			gaps_filled INTEGER NOT NULL,
			emails_scanned INTEGER NOT NULL,
			batches_total INTEGER NOT NULL,
			batches_failed INTEGER NOT NULL,
			output_file TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS gap_outcomes (
			run_id TEXT NOT NULL REFERENCES runs(id),
			gap_number INTEGER NOT NULL,
			kind TEXT NOT NULL,
			prior_city TEXT NOT NULL,
			next_city TEXT NOT NULL,
			outcome TEXT NOT NULL,
			sources TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, gap_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, stmt := range schema {
		if _, err := l.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun persists a run report and its per-gap outcomes in one
// transaction, returning the generated run ID.
func (l *Ledger) SaveRun(ctx context.Context, r *report.RunReport) (string, error) {
	id := r.RunID
	if id == "" {
		id = uuid.NewString()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, legs_loaded, gaps_found, gaps_filled,
			emails_scanned, batches_total, batches_failed, output_file)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		r.StartedAt.UTC().Format(time.RFC3339),
		r.FinishedAt.UTC().Format(time.RFC3339),
		r.LegsLoaded, len(r.Gaps), r.FilledCount(),
		r.EmailsScanned, r.BatchesTotal, r.BatchesFailed, r.OutputFile,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for _, g := range r.Gaps {
		sources := ""
		for i, s := range g.Sources {
			if i > 0 {
				sources += ","
			}
			sources += s
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO gap_outcomes (run_id, gap_number, kind, prior_city, next_city, outcome, sources)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, g.Gap.Number, string(g.Gap.Kind),
			g.Gap.PriorArrivalCity, g.Gap.NextDepartureCity,
			string(g.Outcome), sources,
		)
		if err != nil {
			return "", fmt.Errorf("inserting gap outcome: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, legs_loaded, gaps_found, gaps_filled,
			emails_scanned, batches_total, batches_failed, output_file
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.LegsLoaded, &r.GapsFound, &r.GapsFilled,
			&r.EmailsScanned, &r.BatchesTotal, &r.BatchesFailed, &r.OutputFile); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GapOutcomes returns the per-gap results for one run.
func (l *Ledger) GapOutcomes(ctx context.Context, runID string) ([]GapOutcome, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, gap_number, kind, prior_city, next_city, outcome, sources
		 FROM gap_outcomes WHERE run_id = ? ORDER BY gap_number`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []GapOutcome
	for rows.Next() {
		var g GapOutcome
		if err := rows.Scan(&g.RunID, &g.GapNumber, &g.Kind, &g.PriorCity, &g.NextCity, &g.Outcome, &g.Sources); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, g)
	}
	return outcomes, rows.Err()
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
