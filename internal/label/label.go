// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package label turns trending queries into weak-label rows by asking the
// search index what it currently returns for each query.
//
// Queries are processed one at a time in input order, and every input row
// produces exactly one output row. A failed lookup never aborts the batch:
// the row is written with an empty candidate list and a warning is logged.
package label

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/weaklabel/internal/jsonl"
	"github.com/pdiddy/weaklabel/internal/metrics"
	"github.com/pdiddy/weaklabel/pkg/types"
)

// Searcher retrieves ranked candidates for a query from one index alias.
type Searcher interface {
	Search(ctx context.Context, alias, q string, k int) ([]types.Candidate, error)
}

// Labeler pairs queries with search candidates.
type Labeler struct {
	Searcher Searcher

	// K is the number of candidates requested per query.
	K int

	// LookupTimeout bounds each search call. Zero means no per-call bound.
	LookupTimeout time.Duration

	Logger *zap.Logger
}

// Summary holds counts from a labeling run.
type Summary struct {
	// Rows is the number of rows written, one per well-formed input line.
	Rows int
	// Covered counts rows with at least one candidate.
	Covered int
	// Failed counts lookups that errored and were written with no candidates.
	Failed int
	// Skipped counts malformed input lines.
	Skipped int
}

func (l *Labeler) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

// Label looks up candidates for one trending query. It always returns a
// usable row; a non-nil error reports that the lookup failed and the row's
// candidate list was left empty.
func (l *Labeler) Label(ctx context.Context, tq types.TrendQuery) (types.WeakLabelRow, error) {
	module := tq.Module
	if module == "" {
		module = DefaultModule
	}
	row := types.WeakLabelRow{Module: module, Q: tq.Q, Candidates: []types.Candidate{}}
	alias := ResolveAlias(module)

	lookupCtx := ctx
	if l.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, l.LookupTimeout)
		defer cancel()
	}

	start := time.Now()
	candidates, err := l.Searcher.Search(lookupCtx, alias, tq.Q, l.K)
	metrics.LookupDuration.WithLabelValues(alias).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LookupsTotal.WithLabelValues(alias, "error").Inc()
		l.logger().Warn("candidate lookup failed, writing empty candidates",
			zap.String("module", module),
			zap.String("q", tq.Q),
			zap.String("alias", alias),
			zap.Error(err),
		)
		return row, err
	}

	if len(candidates) == 0 {
		metrics.LookupsTotal.WithLabelValues(alias, "empty").Inc()
	} else {
		metrics.LookupsTotal.WithLabelValues(alias, "hit").Inc()
		row.Candidates = candidates
	}
	return row, nil
}

// Run reads TrendQuery lines from in and writes one WeakLabelRow line to out
// per well-formed input line, in input order. Each row is flushed before the
// next query is read. Only write failures and cancellation of ctx stop the
// run early.
func (l *Labeler) Run(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	var summary Summary
	log := l.logger()

	reader := jsonl.NewReader[types.TrendQuery](in)
	reader.OnSkip(func(pe *types.ParseError) {
		log.Debug("skipping malformed trend line", zap.Int("line", pe.Line), zap.Error(pe.Err))
	})
	writer := jsonl.NewWriter(out)

	for tq := range reader.All() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		row, lookupErr := l.Label(ctx, tq)
		// A lookup cut short by cancellation is not a zero-coverage row.
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if lookupErr != nil {
			summary.Failed++
		}
		if err := writer.Write(row); err != nil {
			return summary, err
		}
		summary.Rows++
		if len(row.Candidates) > 0 {
			summary.Covered++
		}
	}
	summary.Skipped = reader.Skipped()

	metrics.RowsWrittenTotal.WithLabelValues("label").Add(float64(summary.Rows))
	metrics.LinesSkippedTotal.WithLabelValues("label").Add(float64(summary.Skipped))

	if err := reader.Err(); err != nil {
		return summary, fmt.Errorf("reading trending queries: %w", err)
	}
	return summary, nil
}

// Run labels cfg.InPath into cfg.OutPath and prints a summary to w.
func Run(ctx context.Context, l *Labeler, cfg types.LabelConfig, w io.Writer) (Summary, error) {
	in, err := jsonl.Open(cfg.InPath)
	if err != nil {
		return Summary{}, err
	}
	defer in.Close()

	out, err := jsonl.Create(cfg.OutPath)
	if err != nil {
		return Summary{}, err
	}

	summary, runErr := l.Run(ctx, in, out)
	closeErr := out.Close()
	if runErr != nil {
		return summary, runErr
	}
	if closeErr != nil {
		return summary, &types.IOError{Op: "close output", Path: cfg.OutPath, Err: closeErr}
	}

	fmt.Fprintf(w, "Wrote %d rows to %s", summary.Rows, cfg.OutPath)
	if summary.Failed > 0 {
		fmt.Fprintf(w, " (%d lookups failed)", summary.Failed)
	}
	fmt.Fprintln(w)
	return summary, nil
}
