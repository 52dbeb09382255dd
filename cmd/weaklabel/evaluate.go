// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/weaklabel/internal/evaluate"
	"github.com/pdiddy/weaklabel/pkg/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Report candidate coverage of a weak-label file",
	Long: `Evaluate reads weak-label rows and prints how many queries received at
least one candidate and the mean number of candidates per query.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := evaluate.Run(pipeline.Evaluate, os.Stdout)
		return err
	},
}

func init() {
	evaluateCmd.Flags().String("in", types.DefaultWeakLabelPath, "weak-label JSONL")
	evaluateCmd.Flags().String("format", "json", "report format: json or yaml")
	evaluateCmd.Flags().Bool("by-module", false, "add a per-module breakdown")

	bindFlags(evaluateCmd, map[string]string{
		"in":        "evaluate.in_path",
		"format":    "evaluate.format",
		"by-module": "evaluate.by_module",
	})
	rootCmd.AddCommand(evaluateCmd)
}
