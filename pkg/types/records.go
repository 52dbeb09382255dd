// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the records exchanged between weaklabel pipeline stages
// and the configuration shared by every stage.
//
// Each stage owns the file it writes; downstream stages read it and never
// modify it. All interchange files are line-delimited JSON except the model
// artifact, which is a single JSON object.
package types

import (
	"encoding/json"
	"time"
)

// TrendQuery is one (module, time bucket, query text) tuple with its observed
// frequency over the trending window.
type TrendQuery struct {
	// Module is the product vertical the query was issued in (e.g. "food", "ecom").
	Module string `json:"module" yaml:"module"`

	// TimeOfDay is the analytics time bucket (e.g. "morning", "evening").
	TimeOfDay string `json:"time_of_day" yaml:"time_of_day"`

	// Q is the raw query text. Never empty in extractor output.
	Q string `json:"q" yaml:"q"`

	// Count is the number of search events in the window.
	Count int `json:"count" yaml:"count"`
}

// Candidate is one ranked search result returned for a query.
type Candidate struct {
	// ID is the search index document ID.
	ID string `json:"id" yaml:"id"`

	// Score is the relevance score reported by the search index.
	Score float64 `json:"score" yaml:"score"`

	// Name is the document's name field, copied out of Source for convenience.
	Name string `json:"name" yaml:"name"`

	// Source is the document body as returned by the index. It is carried
	// through untouched.
	Source json.RawMessage `json:"source" yaml:"-"`
}

// WeakLabelRow pairs a query with the candidates the search index returned
// for it, in the index's rank order. Candidates is empty for zero-coverage
// queries.
type WeakLabelRow struct {
	Module     string      `json:"module" yaml:"module"`
	Q          string      `json:"q" yaml:"q"`
	Candidates []Candidate `json:"candidates" yaml:"candidates"`
}

// MarshalJSON encodes a nil candidate list as [] so downstream readers always
// see an array.
func (r WeakLabelRow) MarshalJSON() ([]byte, error) {
	type plain WeakLabelRow
	if r.Candidates == nil {
		r.Candidates = []Candidate{}
	}
	return json.Marshal(plain(r))
}

// EvaluationReport summarises candidate coverage over a weak-label dataset.
// Covered never exceeds Total; ratios are 0 when Total is 0.
type EvaluationReport struct {
	Total         int     `json:"total" yaml:"total"`
	Covered       int     `json:"covered" yaml:"covered"`
	Coverage      float64 `json:"coverage" yaml:"coverage"`
	AvgCandidates float64 `json:"avg_candidates" yaml:"avg_candidates"`

	// Modules holds the same statistics per module when a breakdown was requested.
	Modules map[string]EvaluationReport `json:"modules,omitempty" yaml:"modules,omitempty"`
}

// ArtifactTypeStub is the type recorded by the placeholder trainer.
const ArtifactTypeStub = "stub"

// ModelArtifact is the manifest written by the training stage. Consumers only
// rely on it to learn that a model exists and what data it was built from.
type ModelArtifact struct {
	Type       string    `json:"type" yaml:"type"`
	Queries    int       `json:"queries" yaml:"queries"`
	Candidates int       `json:"candidates" yaml:"candidates"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}
