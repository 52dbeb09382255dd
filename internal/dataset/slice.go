// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/weaklabel/internal/jsonl"
	"github.com/pdiddy/weaklabel/pkg/types"
)

// SliceOptions filters rows returned by Slice. Zero values match everything.
type SliceOptions struct {
	Module        string `yaml:"module,omitempty"`
	MinCandidates int    `yaml:"min_candidates,omitempty"`
	Limit         int    `yaml:"limit,omitempty"`
}

// SliceSummary counts what Slice wrote.
type SliceSummary struct {
	Rows       int `yaml:"rows"`
	Candidates int `yaml:"candidates"`
}

// Slice writes matching rows to w as weak-label JSONL, in the order they were
// ingested.
func (s *Store) Slice(ctx context.Context, opts SliceOptions, w io.Writer) (SliceSummary, error) {
	var where []string
	var args []any
	if opts.Module != "" {
		where = append(where, "module = ?")
		args = append(args, opts.Module)
	}
	if opts.MinCandidates > 0 {
		where = append(where, "candidate_count >= ?")
		args = append(args, opts.MinCandidates)
	}

	query := `SELECT id, module, q FROM queries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return SliceSummary{}, fmt.Errorf("querying rows: %w", err)
	}

	type selected struct {
		id  int64
		row types.WeakLabelRow
	}
	var picked []selected
	for rows.Next() {
		var sel selected
		if err := rows.Scan(&sel.id, &sel.row.Module, &sel.row.Q); err != nil {
			rows.Close()
			return SliceSummary{}, fmt.Errorf("scanning row: %w", err)
		}
		picked = append(picked, sel)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return SliceSummary{}, fmt.Errorf("iterating rows: %w", err)
	}
	rows.Close()

	stmt, err := s.db.PrepareContext(ctx,
		`SELECT id, score, name, source FROM candidates WHERE query_id = ? ORDER BY rank`)
	if err != nil {
		return SliceSummary{}, fmt.Errorf("preparing candidate query: %w", err)
	}
	defer stmt.Close()

	out := jsonl.NewWriter(w)
	var summary SliceSummary
	for _, sel := range picked {
		cands, err := s.candidates(ctx, stmt, sel.id)
		if err != nil {
			return summary, err
		}
		sel.row.Candidates = cands
		if err := out.Write(sel.row); err != nil {
			return summary, err
		}
		summary.Rows++
		summary.Candidates += len(cands)
	}
	return summary, nil
}

func (s *Store) candidates(ctx context.Context, stmt *sql.Stmt, queryID int64) ([]types.Candidate, error) {
	rows, err := stmt.QueryContext(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	cands := []types.Candidate{}
	for rows.Next() {
		var c types.Candidate
		var src sql.NullString
		if err := rows.Scan(&c.ID, &c.Score, &c.Name, &src); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		c.Source = sourceJSON(src)
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

// Manifest records how a slice was produced so it can be regenerated.
type Manifest struct {
	Database  string       `yaml:"database"`
	Options   SliceOptions `yaml:"options"`
	Output    string       `yaml:"output"`
	Summary   SliceSummary `yaml:"summary"`
	CreatedAt time.Time    `yaml:"created_at"`
}

// WriteManifest writes m as YAML to path.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &types.IOError{Op: "create output directory", Path: filepath.Dir(path), Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &types.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}
