// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset indexes weak-label files in SQLite so training sets can be
// sliced reproducibly by module and coverage.
package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/weaklabel/internal/jsonl"
	"github.com/pdiddy/weaklabel/internal/metrics"
	"github.com/pdiddy/weaklabel/pkg/types"
)

const dbFile = "weaklabel.db"

// Store manages the dataset SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// NewStore opens or creates dir/weaklabel.db and its schema.
func NewStore(cfg types.DatasetConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dataset directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(cfg.Dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dbFile)
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file TEXT NOT NULL,
			seq INTEGER NOT NULL,
			module TEXT NOT NULL,
			q TEXT NOT NULL,
			candidate_count INTEGER NOT NULL,
			UNIQUE(file, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queries_module ON queries(module)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			query_id INTEGER NOT NULL REFERENCES queries(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			id TEXT NOT NULL,
			score REAL NOT NULL,
			name TEXT NOT NULL,
			source TEXT,
			PRIMARY KEY(query_id, rank)
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_status (
			file TEXT PRIMARY KEY,
			file_mod_time TEXT NOT NULL,
			rows INTEGER NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IngestSummary reports the outcome of one Ingest call.
type IngestSummary struct {
	Rows       int
	Candidates int

	// Skipped is true when the file was unchanged since the last ingest.
	Skipped bool
}

// Ingest loads the weak-label file at path. Rows previously ingested from the
// same file are replaced in one transaction. An unchanged file (same mod
// time) is skipped.
func (s *Store) Ingest(ctx context.Context, path string, w io.Writer) (IngestSummary, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return IngestSummary{}, &types.IOError{Op: "resolve", Path: path, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return IngestSummary{}, &types.IOError{Op: "stat", Path: path, Err: err}
	}
	modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

	var storedModTime string
	var storedRows int
	err = s.db.QueryRowContext(ctx,
		`SELECT file_mod_time, rows FROM ingest_status WHERE file = ?`, abs,
	).Scan(&storedModTime, &storedRows)
	if err == nil && storedModTime == modTime {
		fmt.Fprintf(w, "skipped %s (unchanged, %d rows)\n", path, storedRows)
		return IngestSummary{Rows: storedRows, Skipped: true}, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return IngestSummary{}, fmt.Errorf("reading ingest status: %w", err)
	}

	f, err := jsonl.Open(abs)
	if err != nil {
		return IngestSummary{}, err
	}
	defer f.Close()

	reader := jsonl.NewReader[types.WeakLabelRow](f)
	summary, err := s.ingestFile(ctx, abs, modTime, reader)
	if err != nil {
		return IngestSummary{}, err
	}
	metrics.RowsWrittenTotal.WithLabelValues("dataset").Add(float64(summary.Rows))
	metrics.LinesSkippedTotal.WithLabelValues("dataset").Add(float64(reader.Skipped()))

	fmt.Fprintf(w, "ingested %s (%d rows, %d candidates)\n", path, summary.Rows, summary.Candidates)
	return summary, nil
}

func (s *Store) ingestFile(ctx context.Context, file, modTime string, reader *jsonl.Reader[types.WeakLabelRow]) (IngestSummary, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM queries WHERE file = ?`, file); err != nil {
		return IngestSummary{}, fmt.Errorf("deleting old rows: %w", err)
	}

	queryStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO queries (file, seq, module, q, candidate_count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("preparing query insert: %w", err)
	}
	defer queryStmt.Close()

	candStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO candidates (query_id, rank, id, score, name, source) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("preparing candidate insert: %w", err)
	}
	defer candStmt.Close()

	var summary IngestSummary
	for row := range reader.All() {
		res, err := queryStmt.ExecContext(ctx, file, summary.Rows, row.Module, row.Q, len(row.Candidates))
		if err != nil {
			return IngestSummary{}, fmt.Errorf("inserting row %d: %w", summary.Rows, err)
		}
		queryID, err := res.LastInsertId()
		if err != nil {
			return IngestSummary{}, fmt.Errorf("reading row id: %w", err)
		}

		for rank, c := range row.Candidates {
			var src sql.NullString
			if len(c.Source) > 0 {
				src = sql.NullString{String: string(c.Source), Valid: true}
			}
			if _, err := candStmt.ExecContext(ctx, queryID, rank, c.ID, c.Score, c.Name, src); err != nil {
				return IngestSummary{}, fmt.Errorf("inserting candidate %s: %w", c.ID, err)
			}
		}

		summary.Rows++
		summary.Candidates += len(row.Candidates)
	}
	if err := reader.Err(); err != nil {
		return IngestSummary{}, &types.IOError{Op: "read", Path: file, Err: err}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ingest_status (file, file_mod_time, rows) VALUES (?, ?, ?)
		 ON CONFLICT(file) DO UPDATE SET file_mod_time=excluded.file_mod_time, rows=excluded.rows`,
		file, modTime, summary.Rows,
	)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("updating ingest status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return IngestSummary{}, fmt.Errorf("committing ingest: %w", err)
	}
	return summary, nil
}

// sourceJSON converts a stored _source column back to the raw record.
func sourceJSON(src sql.NullString) json.RawMessage {
	if !src.Valid {
		return nil
	}
	return json.RawMessage(src.String)
}
