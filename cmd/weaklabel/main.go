// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the weaklabel CLI.
//
// Each pipeline stage is a subcommand: trends, label, evaluate and train,
// plus dataset for the SQLite index. Stages communicate only through JSONL
// files, so any stage can be rerun on its own.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/weaklabel/internal/logger"
	"github.com/pdiddy/weaklabel/internal/metrics"
	"github.com/pdiddy/weaklabel/internal/secrets"
	"github.com/pdiddy/weaklabel/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// pipeline is the configuration shared by every stage. It is built once in
// the root command's PersistentPreRunE.
var pipeline types.PipelineConfig

// rootCmd is the base command for the weaklabel CLI.
var rootCmd = &cobra.Command{
	Use:   "weaklabel",
	Short: "Weak-label generation for search ranking",
	Long: `weaklabel mines popular search queries from analytics, pairs each one with
candidate results from the search index, and summarises the resulting
weak-label dataset.

Stages run in order: trends, label, then evaluate and train. Each stage reads
and writes JSONL files under data/ai/ so it can be rerun independently.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./weaklabel.yaml or ~/.config/weaklabel/config.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")
	pf.String("metrics-file", "", "write Prometheus metrics to this textfile on exit")
	pf.Duration("http-timeout", types.DefaultHTTPTimeout, "timeout for each outbound HTTP request")
	pf.String("secrets-dir", secrets.DefaultDir, "directory holding credential files")

	bindFlags(rootCmd, map[string]string{
		"log-level":    "log.level",
		"log-format":   "log.format",
		"metrics-file": "metrics_file",
		"http-timeout": "http.timeout",
		"secrets-dir":  "secrets_dir",
	})
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("weaklabel")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "weaklabel"))
		}
	}

	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setup builds the logger and the shared pipeline configuration.
func setup(cmd *cobra.Command, args []string) error {
	log, err := logger.NewLogger(viper.GetString("log.level"), viper.GetString("log.format"))
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(log)
	cmd.SetContext(logger.ContextWithLogger(cmd.Context(), log))

	metrics.Register()

	cfg := loadPipelineConfig(viper.GetViper())
	s, err := secrets.Load(viper.GetString("secrets_dir"), log)
	if err != nil {
		return err
	}
	s.Apply(&cfg.Analytics)

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	pipeline = cfg

	log.Debug("configuration loaded",
		zap.String("clickhouse", cfg.Analytics.URL),
		zap.String("search_api", cfg.Analytics.ProxyURL),
		zap.String("opensearch", cfg.SearchIndex.URL),
		zap.Bool("clickhouse_auth", cfg.Analytics.User != "" && cfg.Analytics.Password != ""),
	)
	return nil
}

// bindFlags binds each named flag of cmd to its viper key so flags override
// environment and config file values.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for name, key := range keys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			f = cmd.PersistentFlags().Lookup(name)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if path := viper.GetString("metrics_file"); path != "" {
		if werr := metrics.WriteTextfile(path); werr != nil {
			fmt.Fprintln(os.Stderr, "warning:", werr)
		}
	}
	zap.L().Sync()

	if err != nil {
		os.Exit(1)
	}
}
