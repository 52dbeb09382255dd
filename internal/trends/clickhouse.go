// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package trends

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pdiddy/weaklabel/internal/httputil"
	"github.com/pdiddy/weaklabel/pkg/types"
)

// ClickHouseSource aggregates search events through the ClickHouse HTTP
// interface.
type ClickHouseSource struct {
	Client    *http.Client
	BaseURL   string
	User      string
	Password  string
	UserAgent string

	// MaxRetries follows httputil.DoWithRetry semantics.
	MaxRetries int
}

// Name returns the source identifier.
func (s *ClickHouseSource) Name() string { return "clickhouse" }

// BuildQuery returns the aggregation SQL for a window of days and a row limit.
func BuildQuery(days, limit int) string {
	where := strings.Join([]string{
		fmt.Sprintf("day >= today() - %d", days),
		"length(q) > 0",
	}, " AND ")
	return "SELECT module, time_of_day, q, count() AS n" +
		" FROM analytics.search_events WHERE " + where +
		" GROUP BY module, time_of_day, q" +
		" ORDER BY n DESC" +
		fmt.Sprintf(" LIMIT %d", limit)
}

// Fetch runs the aggregation query and parses the TabSeparated response.
func (s *ClickHouseSource) Fetch(ctx context.Context, req Request) ([]types.TrendQuery, error) {
	sql := BuildQuery(req.Days, req.Limit)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(s.BaseURL, "/")+"/?default_format=TabSeparated", strings.NewReader(sql))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/plain")
	if s.UserAgent != "" {
		httpReq.Header.Set("User-Agent", s.UserAgent)
	}
	if s.User != "" && s.Password != "" {
		httpReq.SetBasicAuth(s.User, s.Password)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, httpReq, s.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("ClickHouse request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Source: s.Name(), Status: resp.StatusCode}
	}

	rows, err := parseTabSeparated(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ClickHouse response: %w", err)
	}
	return rows, nil
}

// parseTabSeparated decodes module, time_of_day, q, n rows. Lines without
// exactly four fields or with a non-integer count are dropped.
func parseTabSeparated(r io.Reader) ([]types.TrendQuery, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var rows []types.TrendQuery
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(fields[3]))
		if err != nil || n < 0 {
			continue
		}
		rows = append(rows, types.TrendQuery{
			Module:    unescapeTSV(fields[0]),
			TimeOfDay: unescapeTSV(fields[1]),
			Q:         unescapeTSV(fields[2]),
			Count:     n,
		})
	}
	return rows, sc.Err()
}

var tsvUnescaper = strings.NewReplacer(
	`\\`, `\`,
	`\t`, "\t",
	`\n`, "\n",
	`\r`, "\r",
	`\0`, "\x00",
	`\'`, "'",
)

// unescapeTSV reverses ClickHouse's TabSeparated escaping.
func unescapeTSV(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return tsvUnescaper.Replace(s)
}
