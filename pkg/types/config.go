package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults applied by PipelineConfig.ApplyDefaults.
const (
	DefaultClickHouseURL  = "http://localhost:8123"
	DefaultOpenSearchHost = "http://localhost:9200"
	DefaultSearchAPIURL   = "http://localhost:3100"

	DefaultWindow        = "7d"
	DefaultLimit         = 200
	DefaultK             = 20
	DefaultLookupTimeout = 10 * time.Second
	DefaultHTTPTimeout   = 60 * time.Second
	DefaultUserAgent     = "weaklabel/0.1"

	DefaultTrendsPath    = "data/ai/trending-queries.jsonl"
	DefaultWeakLabelPath = "data/ai/weaklabel.jsonl"
	DefaultModelPath     = "data/ai/model.json"
	DefaultDatasetDir    = "data/ai/index"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds every outbound request, including retries' individual attempts.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries is the retry budget for throttled or unavailable upstreams (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" validate:"gte=0"`
}

// AnalyticsConfig locates the analytics store and its fallback proxy.
type AnalyticsConfig struct {
	// URL is the ClickHouse HTTP interface base URL (CLICKHOUSE_URL).
	URL string `json:"url" yaml:"url" validate:"required,url"`

	// User and Password enable basic auth when both are set.
	User     string `json:"user,omitempty" yaml:"user,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// ProxyURL is the search API base URL serving /analytics/trending (SEARCH_API_URL).
	ProxyURL string `json:"proxy_url" yaml:"proxy_url" validate:"required,url"`
}

// SearchIndexConfig locates the search index (OPENSEARCH_HOST).
type SearchIndexConfig struct {
	URL string `json:"url" yaml:"url" validate:"required,url"`
}

// TrendsConfig holds settings for the trend extraction stage.
type TrendsConfig struct {
	// Window is the trailing window token, "<N>d". Invalid tokens mean 7 days.
	Window string `json:"window" yaml:"window"`

	// Limit caps the number of trending queries written (default 200).
	Limit int `json:"limit" yaml:"limit" validate:"gte=1"`

	// OutPath is the trending-queries JSONL destination.
	OutPath string `json:"out_path" yaml:"out_path" validate:"required"`
}

// LabelConfig holds settings for the candidate labeling stage.
type LabelConfig struct {
	InPath  string `json:"in_path" yaml:"in_path" validate:"required"`
	OutPath string `json:"out_path" yaml:"out_path" validate:"required"`

	// K is the number of candidates requested per query (default 20).
	K int `json:"k" yaml:"k" validate:"gte=1"`

	// LookupTimeout bounds one search call. Expiry degrades to empty candidates.
	LookupTimeout time.Duration `json:"lookup_timeout" yaml:"lookup_timeout" validate:"gt=0"`
}

// EvaluateConfig holds settings for the coverage evaluation stage.
type EvaluateConfig struct {
	InPath   string `json:"in_path" yaml:"in_path" validate:"required"`
	Format   string `json:"format" yaml:"format" validate:"oneof=json yaml"`
	ByModule bool   `json:"by_module" yaml:"by_module"`
}

// TrainConfig holds settings for the artifact building stage.
type TrainConfig struct {
	InPath  string `json:"in_path" yaml:"in_path" validate:"required"`
	OutPath string `json:"out_path" yaml:"out_path" validate:"required"`
}

// DatasetConfig holds settings for the SQLite dataset index.
type DatasetConfig struct {
	// Dir contains weaklabel.db.
	Dir string `json:"dir" yaml:"dir" validate:"required"`
}

// PipelineConfig groups all stage configurations. It is built once at process
// start and passed to each stage.
type PipelineConfig struct {
	HTTP        HTTPConfig        `json:"http" yaml:"http"`
	Analytics   AnalyticsConfig   `json:"analytics" yaml:"analytics"`
	SearchIndex SearchIndexConfig `json:"search_index" yaml:"search_index"`
	Trends      TrendsConfig      `json:"trends" yaml:"trends"`
	Label       LabelConfig       `json:"label" yaml:"label"`
	Evaluate    EvaluateConfig    `json:"evaluate" yaml:"evaluate"`
	Train       TrainConfig       `json:"train" yaml:"train"`
	Dataset     DatasetConfig     `json:"dataset" yaml:"dataset"`
}

// ApplyDefaults fills empty fields with default values.
func (c *PipelineConfig) ApplyDefaults() {
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = DefaultHTTPTimeout
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = DefaultUserAgent
	}
	if c.Analytics.URL == "" {
		c.Analytics.URL = DefaultClickHouseURL
	}
	if c.Analytics.ProxyURL == "" {
		c.Analytics.ProxyURL = DefaultSearchAPIURL
	}
	if c.SearchIndex.URL == "" {
		c.SearchIndex.URL = DefaultOpenSearchHost
	}
	if c.Trends.Window == "" {
		c.Trends.Window = DefaultWindow
	}
	if c.Trends.Limit <= 0 {
		c.Trends.Limit = DefaultLimit
	}
	if c.Trends.OutPath == "" {
		c.Trends.OutPath = DefaultTrendsPath
	}
	if c.Label.InPath == "" {
		c.Label.InPath = DefaultTrendsPath
	}
	if c.Label.OutPath == "" {
		c.Label.OutPath = DefaultWeakLabelPath
	}
	if c.Label.K <= 0 {
		c.Label.K = DefaultK
	}
	if c.Label.LookupTimeout <= 0 {
		c.Label.LookupTimeout = DefaultLookupTimeout
	}
	if c.Evaluate.InPath == "" {
		c.Evaluate.InPath = DefaultWeakLabelPath
	}
	if c.Evaluate.Format == "" {
		c.Evaluate.Format = "json"
	}
	if c.Train.InPath == "" {
		c.Train.InPath = DefaultWeakLabelPath
	}
	if c.Train.OutPath == "" {
		c.Train.OutPath = DefaultModelPath
	}
	if c.Dataset.Dir == "" {
		c.Dataset.Dir = DefaultDatasetDir
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for correctness.
func (c *PipelineConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
