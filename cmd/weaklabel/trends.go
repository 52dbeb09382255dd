// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/weaklabel/internal/httputil"
	"github.com/pdiddy/weaklabel/internal/logger"
	"github.com/pdiddy/weaklabel/internal/trends"
	"github.com/pdiddy/weaklabel/pkg/types"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Extract trending queries from analytics",
	Long: `Trends aggregates search events over a trailing window and writes the most
frequent (module, time of day, query) groups as JSONL. ClickHouse is queried
first; when it is unreachable the search API's /analytics/trending endpoint
is used instead.`,
	RunE: runTrends,
}

func init() {
	trendsCmd.Flags().String("window", types.DefaultWindow, `trailing window as "<N>d"; anything else means 7d`)
	trendsCmd.Flags().Int("limit", types.DefaultLimit, "maximum number of queries to keep")
	trendsCmd.Flags().String("out", types.DefaultTrendsPath, "output JSONL path")

	bindFlags(trendsCmd, map[string]string{
		"window": "trends.window",
		"limit":  "trends.limit",
		"out":    "trends.out_path",
	})
	rootCmd.AddCommand(trendsCmd)
}

func runTrends(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client := httputil.NewClient(pipeline.HTTP)

	ex := &trends.Extractor{
		Sources: trends.NewSources(client, pipeline),
		Logger:  logger.FromContext(ctx),
	}
	_, err := trends.Run(ctx, ex, pipeline.Trends, os.Stdout)
	return err
}
