// Package metrics holds the Prometheus instruments recorded by pipeline
// stages. Batch runs have no scrape endpoint, so the registry is written to a
// node_exporter textfile at exit when requested.
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry collects weaklabel metrics. It is separate from the default
// registry so textfile output contains only pipeline series.
var Registry = prometheus.NewRegistry()

var (
	TrendSourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weaklabel",
			Name:      "trend_source_requests_total",
			Help:      "Analytics source attempts by source and outcome",
		},
		[]string{"source", "status"}, // status: "ok" / "error"
	)

	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weaklabel",
			Name:      "candidate_lookups_total",
			Help:      "Search index lookups by alias and outcome",
		},
		[]string{"alias", "status"}, // status: "hit" / "empty" / "error"
	)

	LookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "weaklabel",
			Name:      "candidate_lookup_duration_seconds",
			Help:      "Search index lookup duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"alias"},
	)

	RowsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weaklabel",
			Name:      "rows_written_total",
			Help:      "Records written by each stage",
		},
		[]string{"stage"},
	)

	LinesSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weaklabel",
			Name:      "lines_skipped_total",
			Help:      "Malformed input lines skipped by each stage",
		},
		[]string{"stage"},
	)
)

var registerOnce sync.Once

// Register adds all pipeline metrics to Registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		Registry.MustRegister(
			TrendSourceRequestsTotal,
			LookupsTotal,
			LookupDuration,
			RowsWrittenTotal,
			LinesSkippedTotal,
		)
	})
}

// WriteTextfile writes the current metric values to path in the Prometheus
// text exposition format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
