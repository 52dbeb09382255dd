// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/weaklabel/internal/train"
	"github.com/pdiddy/weaklabel/pkg/types"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Build the model artifact from weak-label rows",
	Long: `Train consumes weak-label rows and writes a model manifest. The current
trainer is a stub that records how many queries and candidates it saw.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := train.Run(cmd.Context(), train.StubTrainer{}, pipeline.Train, os.Stdout)
		return err
	},
}

func init() {
	trainCmd.Flags().String("in", types.DefaultWeakLabelPath, "weak-label JSONL")
	trainCmd.Flags().String("out", types.DefaultModelPath, "model artifact path")

	bindFlags(trainCmd, map[string]string{
		"in":  "train.in_path",
		"out": "train.out_path",
	})
	rootCmd.AddCommand(trainCmd)
}
