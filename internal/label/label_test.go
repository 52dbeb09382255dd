// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package label

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/weaklabel/internal/httputil"
	"github.com/pdiddy/weaklabel/internal/jsonl"
	"github.com/pdiddy/weaklabel/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = 0
}

func TestResolveAlias(t *testing.T) {
	tests := []struct {
		module string
		want   string
	}{
		{"food", AliasFood},
		{"ecom", AliasEcom},
		{"grocery", AliasEcom},
		{"ecommerce", AliasEcom},
		{"", AliasFood},
		{"FOOD", AliasEcom},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveAlias(tt.module))
		})
	}
	assert.NotEqual(t, ResolveAlias("food"), ResolveAlias("ecom"))
}

func TestBuildSearchBody(t *testing.T) {
	body, err := BuildSearchBody("piza", 20)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"size": 20,
		"query": {"multi_match": {
			"query": "piza",
			"fields": ["name^3", "description", "category_name^2"],
			"type": "best_fields",
			"fuzziness": "AUTO"
		}},
		"_source": ["name", "category_name", "price", "avg_rating"]
	}`, string(body))
}

// --- OpenSearch backend ---

const twoHits = `{"hits":{"total":{"value":2},"hits":[
	{"_id":"p1","_score":8.5,"_source":{"name":"Pizza Margherita","category_name":"Pizza","price":9.5}},
	{"_id":"p2","_score":4.25,"_source":{"name":"Pizza Bianca","avg_rating":4.2}}
]}}`

func newSearchServer(t *testing.T, handler func(alias string, body map[string]any, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		alias := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/_search")
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		handler(alias, body, w)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestOpenSearchSearch(t *testing.T) {
	var gotAlias string
	var gotSize float64
	ts := newSearchServer(t, func(alias string, body map[string]any, w http.ResponseWriter) {
		gotAlias = alias
		gotSize = body["size"].(float64)
		fmt.Fprint(w, twoHits)
	})

	b := &OpenSearchBackend{Client: ts.Client(), BaseURL: ts.URL}
	got, err := b.Search(context.Background(), AliasFood, "pizza", 7)
	require.NoError(t, err)

	assert.Equal(t, AliasFood, gotAlias)
	assert.Equal(t, float64(7), gotSize)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, 8.5, got[0].Score)
	assert.Equal(t, "Pizza Margherita", got[0].Name)
	assert.JSONEq(t, `{"name":"Pizza Margherita","category_name":"Pizza","price":9.5}`, string(got[0].Source))
	assert.Equal(t, "p2", got[1].ID)
	assert.Equal(t, "Pizza Bianca", got[1].Name)
}

func TestOpenSearchSearchNullScoreAndMissingSource(t *testing.T) {
	ts := newSearchServer(t, func(_ string, _ map[string]any, w http.ResponseWriter) {
		fmt.Fprint(w, `{"hits":{"hits":[{"_id":"x","_score":null}]}}`)
	})

	got, err := (&OpenSearchBackend{Client: ts.Client(), BaseURL: ts.URL}).Search(context.Background(), AliasEcom, "x", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Score)
	assert.Empty(t, got[0].Name)
}

func TestOpenSearchSearchErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		ts := newSearchServer(t, func(_ string, _ map[string]any, w http.ResponseWriter) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"type":"index_not_found_exception"}}`)
		})
		_, err := (&OpenSearchBackend{Client: ts.Client(), BaseURL: ts.URL}).Search(context.Background(), AliasFood, "q", 5)

		var le *types.CandidateLookupError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, http.StatusNotFound, le.Status)
		assert.Equal(t, AliasFood, le.Alias)
	})

	t.Run("bad json", func(t *testing.T) {
		ts := newSearchServer(t, func(_ string, _ map[string]any, w http.ResponseWriter) {
			fmt.Fprint(w, `{"hits":`)
		})
		_, err := (&OpenSearchBackend{Client: ts.Client(), BaseURL: ts.URL}).Search(context.Background(), AliasFood, "q", 5)
		var le *types.CandidateLookupError
		require.ErrorAs(t, err, &le)
	})

	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()
		_, err := (&OpenSearchBackend{Client: http.DefaultClient, BaseURL: url}).Search(context.Background(), AliasFood, "q", 5)
		var le *types.CandidateLookupError
		require.ErrorAs(t, err, &le)
		assert.Zero(t, le.Status)
	})
}

// --- Labeler ---

type call struct {
	alias string
	q     string
	k     int
}

type fakeSearcher struct {
	calls   []call
	results map[string][]types.Candidate
	fail    map[string]bool
}

func (f *fakeSearcher) Search(_ context.Context, alias, q string, k int) ([]types.Candidate, error) {
	f.calls = append(f.calls, call{alias, q, k})
	if f.fail[q] {
		return nil, &types.CandidateLookupError{Alias: alias, Query: q, Status: 500}
	}
	return f.results[q], nil
}

func trendLines(qs ...types.TrendQuery) string {
	var b strings.Builder
	for _, q := range qs {
		data, _ := json.Marshal(q)
		b.Write(data)
		b.WriteByte('\n')
	}
	return b.String()
}

func readRows(t *testing.T, r io.Reader) []types.WeakLabelRow {
	t.Helper()
	var rows []types.WeakLabelRow
	for row := range jsonl.NewReader[types.WeakLabelRow](r).All() {
		rows = append(rows, row)
	}
	return rows
}

func TestRunPreservesOrderAndCount(t *testing.T) {
	input := trendLines(
		types.TrendQuery{Module: "food", Q: "pizza", Count: 12},
		types.TrendQuery{Module: "ecom", Q: "usb cable", Count: 9},
	) + "\n   \n" + `{"module":"food","q":` + "\n" + trendLines(
		types.TrendQuery{Module: "", Q: "sushi", Count: 4},
		types.TrendQuery{Module: "books", Q: "novel", Count: 1},
	)

	fs := &fakeSearcher{results: map[string][]types.Candidate{
		"pizza": {{ID: "1", Score: 2, Name: "Pizza"}},
		"novel": {{ID: "9", Score: 1, Name: "Novel"}, {ID: "8", Score: 0.5, Name: "Novella"}},
	}}
	l := &Labeler{Searcher: fs, K: 20}

	var out bytes.Buffer
	summary, err := l.Run(context.Background(), strings.NewReader(input), &out)
	require.NoError(t, err)

	assert.Equal(t, Summary{Rows: 4, Covered: 2, Failed: 0, Skipped: 1}, summary)
	assert.Equal(t, []call{
		{AliasFood, "pizza", 20},
		{AliasEcom, "usb cable", 20},
		{AliasFood, "sushi", 20},
		{AliasEcom, "novel", 20},
	}, fs.calls)

	rows := readRows(t, &out)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"pizza", "usb cable", "sushi", "novel"}, []string{rows[0].Q, rows[1].Q, rows[2].Q, rows[3].Q})
	assert.Equal(t, "food", rows[2].Module, "missing module defaults to food")
	assert.Equal(t, "books", rows[3].Module)
	assert.Equal(t, []string{"9", "8"}, []string{rows[3].Candidates[0].ID, rows[3].Candidates[1].ID})
	assert.Contains(t, out.String(), `"q":"usb cable","candidates":[]`)
}

func TestRunDegradesFailedLookups(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	fs := &fakeSearcher{
		fail: map[string]bool{"broken": true},
		results: map[string][]types.Candidate{
			"after": {{ID: "a", Score: 1}},
		},
	}
	l := &Labeler{Searcher: fs, K: 5, Logger: zap.New(core)}

	input := trendLines(
		types.TrendQuery{Module: "food", Q: "before"},
		types.TrendQuery{Module: "ecom", Q: "broken"},
		types.TrendQuery{Module: "food", Q: "after"},
	)

	var out bytes.Buffer
	summary, err := l.Run(context.Background(), strings.NewReader(input), &out)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Covered)

	rows := readRows(t, &out)
	require.Len(t, rows, 3)
	assert.Empty(t, rows[1].Candidates)
	assert.NotNil(t, rows[1].Candidates)
	assert.Len(t, rows[2].Candidates, 1)

	entries := logs.FilterMessage("candidate lookup failed, writing empty candidates").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "broken", fields["q"])
	assert.Equal(t, AliasEcom, fields["alias"])
	assert.Equal(t, "ecom", fields["module"])
}

func TestRunLookupTimeoutDegrades(t *testing.T) {
	release := make(chan struct{})
	ts := newSearchServer(t, func(_ string, body map[string]any, w http.ResponseWriter) {
		q := body["query"].(map[string]any)["multi_match"].(map[string]any)["query"]
		if q == "slow" {
			<-release
		}
		fmt.Fprint(w, twoHits)
	})
	defer close(release)

	l := &Labeler{
		Searcher:      &OpenSearchBackend{Client: ts.Client(), BaseURL: ts.URL, MaxRetries: -1},
		K:             2,
		LookupTimeout: 50 * time.Millisecond,
	}
	input := trendLines(types.TrendQuery{Module: "food", Q: "slow"}, types.TrendQuery{Module: "food", Q: "fast"})

	var out bytes.Buffer
	summary, err := l.Run(context.Background(), strings.NewReader(input), &out)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, 1, summary.Failed)

	rows := readRows(t, &out)
	assert.Empty(t, rows[0].Candidates)
	assert.Len(t, rows[1].Candidates, 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := &Labeler{Searcher: &fakeSearcher{}, K: 1}
	_, err := l.Run(ctx, strings.NewReader(trendLines(types.TrendQuery{Q: "a"})), io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

// cancellingSearcher cancels the run while the named query is in flight.
type cancellingSearcher struct {
	cancelOn string
	cancel   context.CancelFunc
}

func (c *cancellingSearcher) Search(ctx context.Context, alias, q string, k int) ([]types.Candidate, error) {
	if q == c.cancelOn {
		c.cancel()
		return nil, &types.CandidateLookupError{Alias: alias, Query: q, Err: ctx.Err()}
	}
	return []types.Candidate{{ID: q, Score: 1}}, nil
}

func TestRunCancelDuringLookupWritesNoRow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := &Labeler{Searcher: &cancellingSearcher{cancelOn: "second", cancel: cancel}, K: 1}
	input := trendLines(
		types.TrendQuery{Module: "food", Q: "first"},
		types.TrendQuery{Module: "food", Q: "second"},
		types.TrendQuery{Module: "food", Q: "third"},
	)

	var out bytes.Buffer
	summary, err := l.Run(ctx, strings.NewReader(input), &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Rows)
	assert.Zero(t, summary.Failed)

	rows := readRows(t, &out)
	require.Len(t, rows, 1)
	assert.Equal(t, "first", rows[0].Q)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRunWriteFailureIsFatal(t *testing.T) {
	l := &Labeler{Searcher: &fakeSearcher{}, K: 1}
	_, err := l.Run(context.Background(), strings.NewReader(trendLines(types.TrendQuery{Q: "a"})), failingWriter{})
	assert.ErrorContains(t, err, "disk full")
}

// --- File-level run ---

func TestRunFilesEndToEnd(t *testing.T) {
	ts := newSearchServer(t, func(alias string, body map[string]any, w http.ResponseWriter) {
		if alias != AliasFood {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, twoHits)
	})

	dir := t.TempDir()
	cfg := types.LabelConfig{
		InPath:  filepath.Join(dir, "trending-queries.jsonl"),
		OutPath: filepath.Join(dir, "out", "weaklabel.jsonl"),
		K:       20,
	}
	require.NoError(t, os.WriteFile(cfg.InPath, []byte(`{"module":"food","time_of_day":"evening","q":"pizza","count":12}`+"\n"), 0o644))

	l := &Labeler{Searcher: &OpenSearchBackend{Client: ts.Client(), BaseURL: ts.URL}, K: cfg.K}
	var msg bytes.Buffer
	summary, err := Run(context.Background(), l, cfg, &msg)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rows)
	assert.Equal(t, "Wrote 1 rows to "+cfg.OutPath+"\n", msg.String())

	f, err := os.Open(cfg.OutPath)
	require.NoError(t, err)
	defer f.Close()
	rows := readRows(t, f)
	require.Len(t, rows, 1)
	assert.Equal(t, "food", rows[0].Module)
	assert.Equal(t, "pizza", rows[0].Q)
	require.Len(t, rows[0].Candidates, 2)
	assert.Equal(t, "p1", rows[0].Candidates[0].ID)
	assert.Equal(t, "p2", rows[0].Candidates[1].ID)
}

func TestRunFilesReportsFailuresOnSummaryLine(t *testing.T) {
	ts := newSearchServer(t, func(alias string, body map[string]any, w http.ResponseWriter) {
		if alias != AliasFood {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, twoHits)
	})

	dir := t.TempDir()
	cfg := types.LabelConfig{
		InPath:  filepath.Join(dir, "trending-queries.jsonl"),
		OutPath: filepath.Join(dir, "weaklabel.jsonl"),
		K:       20,
	}
	input := trendLines(
		types.TrendQuery{Module: "food", Q: "pizza"},
		types.TrendQuery{Module: "grocery", Q: "milk"},
	)
	require.NoError(t, os.WriteFile(cfg.InPath, []byte(input), 0o644))

	l := &Labeler{Searcher: &OpenSearchBackend{Client: ts.Client(), BaseURL: ts.URL}, K: cfg.K}
	var msg bytes.Buffer
	summary, err := Run(context.Background(), l, cfg, &msg)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "Wrote 2 rows to "+cfg.OutPath+" (1 lookups failed)\n", msg.String())
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	cfg := types.LabelConfig{InPath: filepath.Join(dir, "nope.jsonl"), OutPath: filepath.Join(dir, "out.jsonl"), K: 1}

	_, err := Run(context.Background(), &Labeler{Searcher: &fakeSearcher{}}, cfg, io.Discard)
	var ioErr *types.IOError
	require.ErrorAs(t, err, &ioErr)

	_, statErr := os.Stat(cfg.OutPath)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "output must not be created when input is missing")
}
