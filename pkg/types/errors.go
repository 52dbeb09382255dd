// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// DataSourceError reports that every analytics source was tried and none
// produced data. Status is the HTTP status of the primary source, or 0 when
// the primary failed before receiving a response.
type DataSourceError struct {
	Status int
	Causes []error
}

func (e *DataSourceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("no analytics source available (primary returned HTTP %d): %v", e.Status, errors.Join(e.Causes...))
	}
	return fmt.Sprintf("no analytics source available: %v", errors.Join(e.Causes...))
}

// Unwrap exposes the per-source failures to errors.Is and errors.As.
func (e *DataSourceError) Unwrap() []error { return e.Causes }

// ParseError reports a single input line that could not be decoded. Readers
// skip such lines; the error is only surfaced for accounting.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CandidateLookupError reports a failed search for one query. The labeler
// recovers from it by emitting an empty candidate list.
type CandidateLookupError struct {
	Alias  string
	Query  string
	Status int
	Err    error
}

func (e *CandidateLookupError) Error() string {
	switch {
	case e.Status > 0:
		return fmt.Sprintf("search %s for %q: HTTP %d", e.Alias, e.Query, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("search %s for %q: %v", e.Alias, e.Query, e.Err)
	default:
		return fmt.Sprintf("search %s for %q failed", e.Alias, e.Query)
	}
}

func (e *CandidateLookupError) Unwrap() error { return e.Err }

// IOError reports that a stage could not open its input or create its
// output. It is fatal for the stage.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
