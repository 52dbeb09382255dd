// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/weaklabel/internal/dataset"
	"github.com/pdiddy/weaklabel/internal/jsonl"
	"github.com/pdiddy/weaklabel/pkg/types"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Index weak-label files and cut reproducible slices",
	Long: `Dataset keeps a SQLite index of weak-label rows under data/ai/index/.
Use ingest to load files and slice to write filtered subsets back as JSONL.`,
}

// --- ingest subcommand ---

var datasetIngestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Load weak-label JSONL files into the dataset index",
	Long: `Ingest loads each file into the index. Files unchanged since their last
ingest are skipped; changed files replace their previous rows.`,
	RunE: runDatasetIngest,
}

func runDatasetIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{pipeline.Label.OutPath}
	}

	store, err := dataset.NewStore(pipeline.Dataset)
	if err != nil {
		return err
	}
	defer store.Close()

	var total dataset.IngestSummary
	for _, path := range args {
		summary, err := store.Ingest(cmd.Context(), path, os.Stdout)
		if err != nil {
			return err
		}
		total.Rows += summary.Rows
		total.Candidates += summary.Candidates
	}
	fmt.Fprintf(os.Stdout, "\n%d file(s), %d rows, %d candidates in %s\n",
		len(args), total.Rows, total.Candidates, store.Path())
	return nil
}

// --- slice subcommand ---

var datasetSliceCmd = &cobra.Command{
	Use:   "slice",
	Short: "Write a filtered subset of the index as weak-label JSONL",
	Long: `Slice selects rows by module and minimum candidate count, in ingest
order, and writes them to --out (stdout when empty). With --manifest a YAML
record of the options and counts is written alongside.`,
	RunE: runDatasetSlice,
}

func runDatasetSlice(cmd *cobra.Command, args []string) error {
	module, _ := cmd.Flags().GetString("module")
	minCandidates, _ := cmd.Flags().GetInt("min-candidates")
	limit, _ := cmd.Flags().GetInt("limit")
	outPath, _ := cmd.Flags().GetString("out")
	manifestPath, _ := cmd.Flags().GetString("manifest")

	opts := dataset.SliceOptions{Module: module, MinCandidates: minCandidates, Limit: limit}

	store, err := dataset.NewStore(pipeline.Dataset)
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := jsonl.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	summary, err := store.Slice(cmd.Context(), opts, w)
	if err != nil {
		return err
	}

	if outPath != "" {
		fmt.Fprintf(os.Stdout, "Wrote %d rows to %s\n", summary.Rows, outPath)
	}
	if manifestPath != "" {
		return dataset.WriteManifest(manifestPath, dataset.Manifest{
			Database:  store.Path(),
			Options:   opts,
			Output:    outPath,
			Summary:   summary,
			CreatedAt: time.Now().UTC(),
		})
	}
	return nil
}

func init() {
	datasetCmd.PersistentFlags().String("dir", types.DefaultDatasetDir, "directory holding weaklabel.db")
	bindFlags(datasetCmd, map[string]string{"dir": "dataset.dir"})

	datasetSliceCmd.Flags().String("module", "", "keep only rows for this module")
	datasetSliceCmd.Flags().Int("min-candidates", 0, "keep only rows with at least this many candidates")
	datasetSliceCmd.Flags().Int("limit", 0, "maximum rows to write (0 for all)")
	datasetSliceCmd.Flags().String("out", "", "output JSONL path (default stdout)")
	datasetSliceCmd.Flags().String("manifest", "", "write a YAML manifest to this path")

	datasetCmd.AddCommand(datasetIngestCmd)
	datasetCmd.AddCommand(datasetSliceCmd)
	rootCmd.AddCommand(datasetCmd)
}
