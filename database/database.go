package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"imdirdiff/logging"
	"imdirdiff/types"
)

// Run summarizes one finished comparison run
type Run struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	RootA      string
	RootB      string
	Backend    string
	ReportPath string
	Counts     types.Counts
}

// StoredRecord is one manifest entry of a stored run
type StoredRecord struct {
	Kind      types.DiffKind
	Path      string
	Score     sql.NullFloat64
	DiffAsset string
}

// NewRunID returns a fresh identifier for a run
func NewRunID() string {
	return uuid.NewString()
}

// InitDatabase initializes and returns a database connection
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		root_a TEXT NOT NULL,
		root_b TEXT NOT NULL,
		backend TEXT NOT NULL,
		only_in_a INTEGER NOT NULL,
		only_in_b INTEGER NOT NULL,
		changed INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS diff_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		score REAL,
		diff_asset TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_diff_records_run ON diff_records(run_id, position);`

	_, err = db.Exec(createTableSQL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating history tables: %w", err)
	}

	// report_path arrived after the first schema; older databases get it added
	var hasReportPath bool
	err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('runs') WHERE name='report_path'").Scan(&hasReportPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error checking for report_path column: %w", err)
	}

	if !hasReportPath {
		_, err = db.Exec("ALTER TABLE runs ADD COLUMN report_path TEXT;")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("error adding report_path column: %w", err)
		}
		logging.DebugLog("Added 'report_path' column to run history schema")
	}

	return db, nil
}

// OpenDatabase opens an existing database connection
func OpenDatabase(dbPath string) (*sql.DB, error) {
	return sql.Open("sqlite3", dbPath)
}

// StoreRun writes a run and its manifest in one transaction
func StoreRun(db *sql.DB, run Run, manifest types.Manifest) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("cannot start transaction for run %s: %w", run.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			id, started_at, duration_ms, root_a, root_b, backend, only_in_a, only_in_b, changed, report_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(),
		run.RootA,
		run.RootB,
		run.Backend,
		run.Counts.OnlyInA,
		run.Counts.OnlyInB,
		run.Counts.Changed,
		run.ReportPath,
	)
	if err != nil {
		return fmt.Errorf("cannot insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO diff_records (run_id, position, kind, path, score, diff_asset)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cannot prepare statement for run %s: %w", run.ID, err)
	}
	defer stmt.Close()

	for i, rec := range manifest {
		var (
			score sql.NullFloat64
			asset sql.NullString
		)
		if changed, ok := rec.(types.ChangedRecord); ok {
			score = sql.NullFloat64{Float64: changed.Score, Valid: true}
			asset = sql.NullString{String: changed.DiffAsset, Valid: changed.DiffAsset != ""}
		}

		_, err = stmt.Exec(run.ID, i, string(rec.Kind()), string(rec.RelPath()), score, asset)
		if err != nil {
			return fmt.Errorf("cannot insert record %s for run %s: %w", rec.RelPath(), run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cannot commit run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit returns all runs.
func ListRuns(db *sql.DB, limit int) ([]Run, error) {
	query := `SELECT id, started_at, duration_ms, root_a, root_b, backend, only_in_a, only_in_b, changed,
		COALESCE(report_path, '') FROM runs ORDER BY started_at DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			durationMs int64
		)
		err := rows.Scan(&run.ID, &startedAt, &durationMs, &run.RootA, &run.RootB, &run.Backend,
			&run.Counts.OnlyInA, &run.Counts.OnlyInB, &run.Counts.Changed, &run.ReportPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read run: %w", err)
		}

		run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s has a malformed start time: %w", run.ID, err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ErrRunNotFound is returned when no single run matches an id prefix
var ErrRunNotFound = errors.New("run not found")

// ResolveRunID expands an id prefix, as printed by the history listing, to
// the full run id. Ambiguous prefixes are rejected.
func ResolveRunID(db *sql.DB, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrRunNotFound)
	}

	rows, err := db.Query(`SELECT id FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("failed to look up run %s: %w", prefix, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to look up run %s: %w", prefix, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to look up run %s: %w", prefix, err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches several runs", ErrRunNotFound, prefix)
	}
}

// GetRunRecords returns the stored manifest of a run in its original order
func GetRunRecords(db *sql.DB, runID string) ([]StoredRecord, error) {
	rows, err := db.Query(`SELECT kind, path, score, COALESCE(diff_asset, '')
		FROM diff_records WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records of run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []StoredRecord
	for rows.Next() {
		var (
			rec  StoredRecord
			kind string
		)
		if err := rows.Scan(&kind, &rec.Path, &rec.Score, &rec.DiffAsset); err != nil {
			return nil, fmt.Errorf("failed to read record of run %s: %w", runID, err)
		}
		rec.Kind = types.DiffKind(kind)
		records = append(records, rec)
	}

	return records, rows.Err()
}
