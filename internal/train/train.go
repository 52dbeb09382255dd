// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package train builds the model artifact from weak-label rows.
//
// The only trainer today is StubTrainer, which records dataset volume. A real
// ranking trainer implements Trainer over the same row stream and produces
// the same manifest, so callers do not change when it lands.
package train

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/weaklabel/internal/jsonl"
	"github.com/pdiddy/weaklabel/internal/metrics"
	"github.com/pdiddy/weaklabel/pkg/types"
)

// Trainer consumes weak-label rows and describes the model it produced.
type Trainer interface {
	Train(ctx context.Context, rows iter.Seq[types.WeakLabelRow]) (types.ModelArtifact, error)
}

// StubTrainer counts queries and candidates without fitting anything.
type StubTrainer struct {
	// Now returns the artifact timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Train implements Trainer.
func (s StubTrainer) Train(ctx context.Context, rows iter.Seq[types.WeakLabelRow]) (types.ModelArtifact, error) {
	a := types.ModelArtifact{Type: types.ArtifactTypeStub}
	for row := range rows {
		if err := ctx.Err(); err != nil {
			return types.ModelArtifact{}, err
		}
		a.Queries++
		a.Candidates += len(row.Candidates)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	a.CreatedAt = now().UTC()
	return a, nil
}

// WriteArtifact writes a as indented JSON to path, replacing any previous
// artifact and creating parent directories.
func WriteArtifact(path string, a types.ModelArtifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling model artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &types.IOError{Op: "create output directory", Path: filepath.Dir(path), Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &types.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// ReadArtifact loads a model artifact written by WriteArtifact.
func ReadArtifact(path string) (types.ModelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ModelArtifact{}, &types.IOError{Op: "read", Path: path, Err: err}
	}
	var a types.ModelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return types.ModelArtifact{}, fmt.Errorf("parsing model artifact %s: %w", path, err)
	}
	return a, nil
}

// Run trains on cfg.InPath, writes the artifact to cfg.OutPath and prints a
// summary to w.
func Run(ctx context.Context, t Trainer, cfg types.TrainConfig, w io.Writer) (types.ModelArtifact, error) {
	f, err := jsonl.Open(cfg.InPath)
	if err != nil {
		return types.ModelArtifact{}, err
	}
	defer f.Close()

	reader := jsonl.NewReader[types.WeakLabelRow](f)
	a, err := t.Train(ctx, reader.All())
	if err != nil {
		return types.ModelArtifact{}, err
	}
	if err := reader.Err(); err != nil {
		return types.ModelArtifact{}, &types.IOError{Op: "read", Path: cfg.InPath, Err: err}
	}
	metrics.LinesSkippedTotal.WithLabelValues("train").Add(float64(reader.Skipped()))

	if err := WriteArtifact(cfg.OutPath, a); err != nil {
		return types.ModelArtifact{}, err
	}
	fmt.Fprintf(w, "Wrote model stub to %s\n", cfg.OutPath)
	return a, nil
}
