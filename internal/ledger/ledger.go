// Package ledger keeps a SQLite history of tagging runs and their per-file
// outcomes.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	wdtag "github.com/anatolykoptev/go-wdtag"
)

// Ledger is a run history backed by SQLite. It is safe for concurrent use.
type Ledger struct {
	db   *sql.DB
	path string
}

// Run is the header row of one tagging run.
type Run struct {
	ID         string
	Dir        string
	Output     wdtag.OutputMode
	Recursive  bool
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or after a crash
	Processed  int
	Skipped    int
	Error      string
}

// Entry is one recorded file outcome.
type Entry struct {
	Name       string
	Path       string
	Reason     string // SkipReason code, "processed" for successes
	Error      string
	Tags       []string
	RecordedAt time.Time
}

// Open initializes or connects to the ledger database and applies migrations.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	l := &Ledger{db: db, path: path}
	if err := l.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the database file location.
func (l *Ledger) Path() string { return l.path }

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// BeginRun inserts the header row for a new run.
func (l *Ledger) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("ledger: run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, dir, output_mode, recursive, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Dir, string(run.Output), boolInt(run.Recursive), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Record stores one file outcome for runID.
func (l *Ledger) Record(ctx context.Context, runID string, o wdtag.Outcome) error {
	var tags any
	if len(o.Tags) > 0 {
		tags = strings.Join(o.Tags, ", ")
	}
	var errText any
	if o.Err != nil {
		errText = o.Err.Error()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, name, path, reason, error, tags, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Name, o.Path, o.Reason.Code(), errText, tags, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// FinishRun stores the final counts. runErr is the error Run returned, if any.
func (l *Ledger) FinishRun(ctx context.Context, runID string, summary *wdtag.Summary, runErr error) error {
	finished := time.Now()
	processed, skipped := 0, 0
	if summary != nil {
		processed, skipped = summary.ProcessedCount(), summary.SkippedCount()
		if !summary.Finished.IsZero() {
			finished = summary.Finished
		}
	}
	var errText any
	if runErr != nil {
		errText = runErr.Error()
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, skipped = ?, error = ? WHERE id = ?`,
		formatTime(finished), processed, skipped, errText, runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ledger: unknown run %s", runID)
	}
	return nil
}

// Runs returns the most recent runs first. limit <= 0 returns all runs.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, dir, output_mode, recursive, started_at, finished_at, processed, skipped, error
        FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			output, started   string
			recursive         int
			finished, errText sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Dir, &output, &recursive, &started, &finished, &r.Processed, &r.Skipped, &errText); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Output = wdtag.OutputMode(output)
		r.Recursive = recursive != 0
		r.StartedAt = parseTime(started)
		if finished.Valid {
			r.FinishedAt = parseTime(finished.String)
		}
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Entries returns the outcomes recorded for runID in insertion order.
func (l *Ledger) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT name, path, reason, error, tags, recorded_at FROM outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e             Entry
			errText, tags sql.NullString
			recorded      string
		)
		if err := rows.Scan(&e.Name, &e.Path, &e.Reason, &errText, &tags, &recorded); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		e.Error = errText.String
		if tags.Valid && tags.String != "" {
			e.Tags = strings.Split(tags.String, ", ")
		}
		e.RecordedAt = parseTime(recorded)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// timeLayout has fixed-width fractions so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
