// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate computes candidate coverage statistics over a weak-label
// dataset.
package evaluate

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/weaklabel/internal/jsonl"
	"github.com/pdiddy/weaklabel/internal/metrics"
	"github.com/pdiddy/weaklabel/pkg/types"
)

// tally accumulates counts for one report.
type tally struct {
	total, covered, candidates int
}

func (t *tally) add(n int) {
	t.total++
	if n > 0 {
		t.covered++
		t.candidates += n
	}
}

func (t tally) report() types.EvaluationReport {
	r := types.EvaluationReport{Total: t.total, Covered: t.covered}
	if t.total > 0 {
		r.Coverage = float64(t.covered) / float64(t.total)
		r.AvgCandidates = float64(t.candidates) / float64(t.total)
	}
	return r
}

// Evaluate consumes rows and returns the coverage report. When byModule is
// set the report also carries per-module statistics.
func Evaluate(rows iter.Seq[types.WeakLabelRow], byModule bool) types.EvaluationReport {
	var all tally
	modules := map[string]*tally{}

	for row := range rows {
		n := len(row.Candidates)
		all.add(n)
		if byModule {
			m, ok := modules[row.Module]
			if !ok {
				m = &tally{}
				modules[row.Module] = m
			}
			m.add(n)
		}
	}

	report := all.report()
	if byModule && len(modules) > 0 {
		report.Modules = make(map[string]types.EvaluationReport, len(modules))
		for name, m := range modules {
			report.Modules[name] = m.report()
		}
	}
	return report
}

// Write prints the report to w as indented JSON or YAML.
func Write(report types.EvaluationReport, format string, w io.Writer) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding YAML report: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q: use json or yaml", format)
	}
}

// Run evaluates cfg.InPath and prints the report to w. The report is not
// persisted.
func Run(cfg types.EvaluateConfig, w io.Writer) (types.EvaluationReport, error) {
	f, err := jsonl.Open(cfg.InPath)
	if err != nil {
		return types.EvaluationReport{}, err
	}
	defer f.Close()

	reader := jsonl.NewReader[types.WeakLabelRow](f)
	report := Evaluate(reader.All(), cfg.ByModule)
	if err := reader.Err(); err != nil {
		return types.EvaluationReport{}, &types.IOError{Op: "read", Path: cfg.InPath, Err: err}
	}
	metrics.LinesSkippedTotal.WithLabelValues("evaluate").Add(float64(reader.Skipped()))

	if err := Write(report, cfg.Format, w); err != nil {
		return report, err
	}
	return report, nil
}
