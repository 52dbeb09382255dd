// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package jsonl reads and writes line-delimited JSON, one record per line.
//
// Readers are lazy and single-pass: records are decoded one at a time as the
// consumer pulls them, so memory stays bounded by the longest line. Blank
// lines are ignored and malformed lines (including a truncated final line
// left by an interrupted writer, and lines longer than MaxLineSize) are
// skipped and counted, never fatal.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/pdiddy/weaklabel/pkg/types"
)

// MaxLineSize is the longest line a Reader decodes. Longer lines are
// discarded without being buffered and counted as skipped.
const MaxLineSize = 16 << 20

// Reader decodes records of type T from line-delimited JSON.
type Reader[T any] struct {
	br      *bufio.Reader
	buf     []byte
	max     int
	line    int
	skipped int
	err     error
	onSkip  func(*types.ParseError)
}

// NewReader returns a Reader over r.
func NewReader[T any](r io.Reader) *Reader[T] {
	return &Reader[T]{br: bufio.NewReaderSize(r, 64*1024), max: MaxLineSize}
}

// OnSkip registers fn to be called for every skipped line.
func (r *Reader[T]) OnSkip(fn func(*types.ParseError)) {
	r.onSkip = fn
}

// All yields decoded records in file order. The sequence can be ranged over
// once; after it ends, Err reports any read failure.
func (r *Reader[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			line, tooLong, err := r.next()
			if err != nil {
				if err != io.EOF {
					r.err = err
				}
				return
			}
			r.line++
			if tooLong {
				r.skip(errLineTooLong)
				continue
			}

			raw := bytes.TrimSpace(line)
			if len(raw) == 0 {
				continue
			}
			if bytes.Equal(raw, []byte("null")) {
				r.skip(errNullRecord)
				continue
			}

			var rec T
			if err := json.Unmarshal(raw, &rec); err != nil {
				r.skip(err)
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// next returns the following line without its terminator. A line over the
// size limit is drained and reported with tooLong set. io.EOF is returned
// only once no bytes remain.
func (r *Reader[T]) next() (line []byte, tooLong bool, err error) {
	r.buf = r.buf[:0]
	read := false
	for {
		chunk, err := r.br.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
		}
		if !tooLong {
			if len(r.buf)+len(bytes.TrimRight(chunk, "\n")) > r.max {
				tooLong = true
				r.buf = r.buf[:0]
			} else {
				r.buf = append(r.buf, chunk...)
			}
		}

		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && read:
			return r.buf, tooLong, nil
		case err != nil:
			return nil, false, err
		}
		return r.buf, tooLong, nil
	}
}

// Skipped returns the number of malformed lines skipped so far.
func (r *Reader[T]) Skipped() int { return r.skipped }

// Err returns the first read error encountered, if any. Malformed lines are
// not errors.
func (r *Reader[T]) Err() error { return r.err }

func (r *Reader[T]) skip(err error) {
	r.skipped++
	if r.onSkip != nil {
		r.onSkip(&types.ParseError{Line: r.line, Err: err})
	}
}

type nullRecordError struct{}

func (nullRecordError) Error() string { return "null record" }

var errNullRecord error = nullRecordError{}

var errLineTooLong = fmt.Errorf("line exceeds %d bytes", MaxLineSize)

// Open opens path for reading. Failures are reported as *types.IOError.
func Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.IOError{Op: "open input", Path: path, Err: err}
	}
	return f, nil
}
