// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/weaklabel/internal/httputil"
	"github.com/pdiddy/weaklabel/internal/label"
	"github.com/pdiddy/weaklabel/internal/logger"
	"github.com/pdiddy/weaklabel/pkg/types"
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Attach search candidates to trending queries",
	Long: `Label reads trending queries and runs each one against the search index
alias for its module (food_items for food, ecom_items otherwise). Every
query produces exactly one output row; failed lookups are logged and
written with no candidates.`,
	RunE: runLabel,
}

func init() {
	labelCmd.Flags().String("in", types.DefaultTrendsPath, "trending queries JSONL")
	labelCmd.Flags().String("out", types.DefaultWeakLabelPath, "output weak-label JSONL")
	labelCmd.Flags().Int("k", types.DefaultK, "candidates requested per query")
	labelCmd.Flags().Duration("timeout", types.DefaultLookupTimeout, "timeout for each candidate lookup")

	bindFlags(labelCmd, map[string]string{
		"in":      "label.in_path",
		"out":     "label.out_path",
		"k":       "label.k",
		"timeout": "label.lookup_timeout",
	})
	rootCmd.AddCommand(labelCmd)
}

func runLabel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	backend := &label.OpenSearchBackend{
		Client:     httputil.NewClient(pipeline.HTTP),
		BaseURL:    pipeline.SearchIndex.URL,
		UserAgent:  pipeline.HTTP.UserAgent,
		MaxRetries: pipeline.HTTP.MaxRetries,
	}
	l := &label.Labeler{
		Searcher:      backend,
		K:             pipeline.Label.K,
		LookupTimeout: pipeline.Label.LookupTimeout,
		Logger:        logger.FromContext(ctx),
	}

	_, err := label.Run(ctx, l, pipeline.Label, os.Stdout)
	return err
}
