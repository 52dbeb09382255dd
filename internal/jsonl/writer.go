// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/weaklabel/pkg/types"
)

// Writer encodes one record per line. Each Write is flushed so a reader never
// sees more than one partial line if the process dies mid-run.
type Writer struct {
	bw  *bufio.Writer
	enc *json.Encoder
	n   int
}

// NewWriter returns a Writer appending to w.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &Writer{bw: bw, enc: enc}
}

// Write encodes v followed by a newline and flushes it.
func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encoding record %d: %w", w.n+1, err)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("writing record %d: %w", w.n+1, err)
	}
	w.n++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.n }

// Create creates (or truncates) path for writing, creating parent
// directories as needed. Failures are reported as *types.IOError.
func Create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &types.IOError{Op: "create output directory", Path: filepath.Dir(path), Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &types.IOError{Op: "create output", Path: path, Err: err}
	}
	return f, nil
}

// WriteFileAtomic writes values to path as JSONL. The data goes to a
// temporary file in the same directory which is renamed over path on
// success, so readers see either the old file or the complete new one.
func WriteFileAtomic[T any](path string, values []T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &types.IOError{Op: "create output directory", Path: dir, Err: err}
	}

	tmpFile, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return &types.IOError{Op: "create temp file", Path: dir, Err: err}
	}
	tmpPath := tmpFile.Name()
	if err := tmpFile.Chmod(0o644); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return &types.IOError{Op: "chmod temp file", Path: tmpPath, Err: err}
	}

	w := NewWriter(tmpFile)
	var writeErr error
	for _, v := range values {
		if writeErr = w.Write(v); writeErr != nil {
			break
		}
	}
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return &types.IOError{Op: "write", Path: path, Err: writeErr}
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return &types.IOError{Op: "close temp file", Path: tmpPath, Err: closeErr}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &types.IOError{Op: "rename temp file", Path: path, Err: err}
	}
	return nil
}
