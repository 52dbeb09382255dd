// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/weaklabel/pkg/types"
)

// envBindings maps config keys to the unprefixed environment variables the
// deployment already exports.
var envBindings = map[string]string{
	"analytics.url":       "CLICKHOUSE_URL",
	"analytics.user":      "CLICKHOUSE_USER",
	"analytics.password":  "CLICKHOUSE_PASSWORD",
	"analytics.proxy_url": "SEARCH_API_URL",
	"search_index.url":    "OPENSEARCH_HOST",
}

// bindEnv wires the legacy variable names and WEAKLABEL_* for every other
// key (WEAKLABEL_LABEL_K, WEAKLABEL_HTTP_TIMEOUT, ...).
func bindEnv(v *viper.Viper) {
	for key, env := range envBindings {
		// Only fails when no key is given.
		_ = v.BindEnv(key, env)
	}
	v.SetEnvPrefix("WEAKLABEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadPipelineConfig reads every stage setting from v. Unset values stay
// zero and are filled by ApplyDefaults.
func loadPipelineConfig(v *viper.Viper) types.PipelineConfig {
	return types.PipelineConfig{
		HTTP: types.HTTPConfig{
			Timeout:    v.GetDuration("http.timeout"),
			UserAgent:  v.GetString("http.user_agent"),
			MaxRetries: v.GetInt("http.max_retries"),
		},
		Analytics: types.AnalyticsConfig{
			URL:      v.GetString("analytics.url"),
			User:     v.GetString("analytics.user"),
			Password: v.GetString("analytics.password"),
			ProxyURL: v.GetString("analytics.proxy_url"),
		},
		SearchIndex: types.SearchIndexConfig{
			URL: v.GetString("search_index.url"),
		},
		Trends: types.TrendsConfig{
			Window:  v.GetString("trends.window"),
			Limit:   v.GetInt("trends.limit"),
			OutPath: v.GetString("trends.out_path"),
		},
		Label: types.LabelConfig{
			InPath:        v.GetString("label.in_path"),
			OutPath:       v.GetString("label.out_path"),
			K:             v.GetInt("label.k"),
			LookupTimeout: v.GetDuration("label.lookup_timeout"),
		},
		Evaluate: types.EvaluateConfig{
			InPath:   v.GetString("evaluate.in_path"),
			Format:   v.GetString("evaluate.format"),
			ByModule: v.GetBool("evaluate.by_module"),
		},
		Train: types.TrainConfig{
			InPath:  v.GetString("train.in_path"),
			OutPath: v.GetString("train.out_path"),
		},
		Dataset: types.DatasetConfig{
			Dir: v.GetString("dataset.dir"),
		},
	}
}
