// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/weaklabel/pkg/types"
)

func TestLoadPipelineConfigDefaults(t *testing.T) {
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
	v := viper.New()
	bindEnv(v)

	cfg := loadPipelineConfig(v)
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, types.DefaultClickHouseURL, cfg.Analytics.URL)
	assert.Equal(t, types.DefaultSearchAPIURL, cfg.Analytics.ProxyURL)
	assert.Equal(t, types.DefaultOpenSearchHost, cfg.SearchIndex.URL)
	assert.Equal(t, "7d", cfg.Trends.Window)
	assert.Equal(t, 200, cfg.Trends.Limit)
	assert.Equal(t, 20, cfg.Label.K)
	assert.Equal(t, types.DefaultWeakLabelPath, cfg.Train.InPath)
	assert.Equal(t, types.DefaultModelPath, cfg.Train.OutPath)
}

func TestLoadPipelineConfigEnvironment(t *testing.T) {
	t.Setenv("CLICKHOUSE_URL", "http://ch.internal:8123")
	t.Setenv("CLICKHOUSE_USER", "reader")
	t.Setenv("CLICKHOUSE_PASSWORD", "pw")
	t.Setenv("SEARCH_API_URL", "http://search-api:3100")
	t.Setenv("OPENSEARCH_HOST", "https://os.internal:9200")
	t.Setenv("WEAKLABEL_LABEL_K", "5")

	v := viper.New()
	bindEnv(v)
	cfg := loadPipelineConfig(v)

	assert.Equal(t, types.AnalyticsConfig{
		URL:      "http://ch.internal:8123",
		User:     "reader",
		Password: "pw",
		ProxyURL: "http://search-api:3100",
	}, cfg.Analytics)
	assert.Equal(t, "https://os.internal:9200", cfg.SearchIndex.URL)
	assert.Equal(t, 5, cfg.Label.K)
}

func TestLoadPipelineConfigFileWithEnvOverride(t *testing.T) {
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
	path := filepath.Join(t.TempDir(), "weaklabel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
analytics:
  url: http://from-file:8123
search_index:
  url: http://os-from-file:9200
trends:
  window: 30d
  limit: 50
label:
  lookup_timeout: 3s
evaluate:
  format: yaml
  by_module: true
dataset:
  dir: /tmp/index
`), 0o644))
	t.Setenv("OPENSEARCH_HOST", "http://os-from-env:9200")

	v := viper.New()
	v.SetConfigFile(path)
	bindEnv(v)
	require.NoError(t, v.ReadInConfig())

	cfg := loadPipelineConfig(v)
	assert.Equal(t, "http://from-file:8123", cfg.Analytics.URL)
	assert.Equal(t, "http://os-from-env:9200", cfg.SearchIndex.URL, "environment wins over file")
	assert.Equal(t, "30d", cfg.Trends.Window)
	assert.Equal(t, 50, cfg.Trends.Limit)
	assert.Equal(t, 3*time.Second, cfg.Label.LookupTimeout)
	assert.Equal(t, "yaml", cfg.Evaluate.Format)
	assert.True(t, cfg.Evaluate.ByModule)
	assert.Equal(t, "/tmp/index", cfg.Dataset.Dir)
}
