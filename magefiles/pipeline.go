//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Trends extracts trending queries into data/ai/trending-queries.jsonl.
func Trends() error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath, "trends")
}

// Label attaches search candidates, writing data/ai/weaklabel.jsonl.
func Label() error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath, "label")
}

// Evaluate prints the coverage report for data/ai/weaklabel.jsonl.
func Evaluate() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "evaluate", "--by-module")
}

// Train writes the model artifact to data/ai/model.json.
func Train() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "train")
}

// Pipeline runs every stage in order, then indexes the weak-label file.
func Pipeline() error {
	mg.SerialDeps(Trends, Label, Evaluate, Train)
	return sh.RunV(binPath, "dataset", "ingest")
}
