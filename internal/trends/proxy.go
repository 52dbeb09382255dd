// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/weaklabel/internal/httputil"
	"github.com/pdiddy/weaklabel/pkg/types"
)

// ProxySource reads the search API's trending endpoint, which serves the
// same aggregation from its own analytics connection.
type ProxySource struct {
	Client     *http.Client
	BaseURL    string
	UserAgent  string
	MaxRetries int
}

// Name returns the source identifier.
func (s *ProxySource) Name() string { return "proxy" }

// Fetch requests /analytics/trending for the window token. The endpoint
// ignores the row limit; the Extractor applies it.
func (s *ProxySource) Fetch(ctx context.Context, req Request) ([]types.TrendQuery, error) {
	reqURL := strings.TrimRight(s.BaseURL, "/") + "/analytics/trending?" +
		url.Values{"window": {req.Window}}.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if s.UserAgent != "" {
		httpReq.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, httpReq, s.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("trending API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Source: s.Name(), Status: resp.StatusCode}
	}

	var body proxyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing trending API response: %w", err)
	}

	// A missing or non-array rows field means no data, not an error.
	var rows []proxyRow
	if trimmed := bytes.TrimSpace(body.Rows); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("parsing trending rows: %w", err)
		}
	}

	out := make([]types.TrendQuery, 0, len(rows))
	for _, r := range rows {
		count := r.Count
		if count == 0 {
			count = r.N
		}
		out = append(out, types.TrendQuery{
			Module:    r.Module,
			TimeOfDay: r.TimeOfDay,
			Q:         r.Q,
			Count:     int(count),
		})
	}
	return out, nil
}

type proxyResponse struct {
	Rows json.RawMessage `json:"rows"`
}

type proxyRow struct {
	Module    string    `json:"module"`
	TimeOfDay string    `json:"time_of_day"`
	Q         string    `json:"q"`
	Count     flexCount `json:"count"`
	N         flexCount `json:"n"`
}

// flexCount accepts a JSON number or a numeric string; ClickHouse's JSON
// formats quote 64-bit integers. Unparseable values decode as 0.
type flexCount int64

func (c *flexCount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 {
		*c = 0
		return nil
	}
	*c = flexCount(f)
	return nil
}
