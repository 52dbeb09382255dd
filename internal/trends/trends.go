// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package trends extracts the most frequent search queries over a trailing
// window and writes them as trending-queries JSONL.
//
// Sources are tried in order; the first one that answers wins. The analytics
// store is the primary source and the search API's trending endpoint is the
// fallback. The stage fails only when every source has failed.
package trends

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/pdiddy/weaklabel/internal/jsonl"
	"github.com/pdiddy/weaklabel/internal/metrics"
	"github.com/pdiddy/weaklabel/pkg/types"
)

// defaultWindowDays applies when the window token is missing or malformed.
const defaultWindowDays = 7

var windowRe = regexp.MustCompile(`^(\d+)d$`)

// ParseWindow converts a "<N>d" token to a number of days. Anything else,
// including an overflowing N, yields 7.
func ParseWindow(token string) int {
	m := windowRe.FindStringSubmatch(token)
	if m == nil {
		return defaultWindowDays
	}
	days, err := strconv.Atoi(m[1])
	if err != nil {
		return defaultWindowDays
	}
	return days
}

// Request describes one extraction.
type Request struct {
	// Window is the raw token, forwarded as-is to sources that take it.
	Window string
	// Days is the parsed window length.
	Days int
	// Limit caps the number of rows returned.
	Limit int
}

// NewRequest builds a Request from the stage configuration.
func NewRequest(cfg types.TrendsConfig) Request {
	return Request{Window: cfg.Window, Days: ParseWindow(cfg.Window), Limit: cfg.Limit}
}

// Source fetches aggregated query counts from one backing system.
type Source interface {
	Name() string
	Fetch(ctx context.Context, req Request) ([]types.TrendQuery, error)
}

// StatusError reports a non-success HTTP response from a source.
type StatusError struct {
	Source string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Source, e.Status)
}

// NewSources returns the default source chain: ClickHouse, then the search
// API proxy.
func NewSources(client *http.Client, cfg types.PipelineConfig) []Source {
	return []Source{
		&ClickHouseSource{
			Client:     client,
			BaseURL:    cfg.Analytics.URL,
			User:       cfg.Analytics.User,
			Password:   cfg.Analytics.Password,
			UserAgent:  cfg.HTTP.UserAgent,
			MaxRetries: cfg.HTTP.MaxRetries,
		},
		&ProxySource{
			Client:     client,
			BaseURL:    cfg.Analytics.ProxyURL,
			UserAgent:  cfg.HTTP.UserAgent,
			MaxRetries: cfg.HTTP.MaxRetries,
		},
	}
}

// Extractor runs the source chain.
type Extractor struct {
	Sources []Source
	Logger  *zap.Logger
}

// Result holds the extracted rows and the name of the source that produced them.
type Result struct {
	Rows   []types.TrendQuery
	Source string
}

// Extract tries each source in order and returns the first successful
// answer, normalised: rows with empty query text dropped, sorted by
// descending count, truncated to req.Limit. When every source fails it
// returns a *types.DataSourceError carrying the primary source's status.
func (e *Extractor) Extract(ctx context.Context, req Request) (Result, error) {
	if len(e.Sources) == 0 {
		return Result{}, fmt.Errorf("no analytics sources configured")
	}
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var causes []error
	for i, src := range e.Sources {
		rows, err := src.Fetch(ctx, req)
		if err == nil {
			metrics.TrendSourceRequestsTotal.WithLabelValues(src.Name(), "ok").Inc()
			if i > 0 {
				log.Info("using fallback analytics source", zap.String("source", src.Name()))
			}
			return Result{Rows: normalize(rows, req.Limit), Source: src.Name()}, nil
		}

		metrics.TrendSourceRequestsTotal.WithLabelValues(src.Name(), "error").Inc()
		log.Warn("analytics source failed", zap.String("source", src.Name()), zap.Error(err))
		causes = append(causes, fmt.Errorf("%s: %w", src.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}

	dsErr := &types.DataSourceError{Causes: causes}
	var se *StatusError
	if errors.As(causes[0], &se) {
		dsErr.Status = se.Status
	}
	return Result{}, dsErr
}

func normalize(rows []types.TrendQuery, limit int) []types.TrendQuery {
	out := make([]types.TrendQuery, 0, len(rows))
	for _, r := range rows {
		if r.Q == "" {
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b types.TrendQuery) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Run extracts trending queries, writes them atomically to cfg.OutPath and
// prints a one-line summary to w.
func Run(ctx context.Context, ex *Extractor, cfg types.TrendsConfig, w io.Writer) (Result, error) {
	res, err := ex.Extract(ctx, NewRequest(cfg))
	if err != nil {
		return Result{}, err
	}
	if err := jsonl.WriteFileAtomic(cfg.OutPath, res.Rows); err != nil {
		return Result{}, err
	}
	metrics.RowsWrittenTotal.WithLabelValues("trends").Add(float64(len(res.Rows)))

	fmt.Fprintf(w, "Wrote %d queries to %s (source: %s)\n", len(res.Rows), cfg.OutPath, res.Source)
	return res, nil
}
