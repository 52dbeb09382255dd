// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package label

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/weaklabel/internal/httputil"
	"github.com/pdiddy/weaklabel/pkg/types"
)

// Fields searched, with boosts: name weighs most, category next.
var searchFields = []string{"name^3", "description", "category_name^2"}

// Fields returned per hit; everything else is dropped to bound payload size.
var sourceFields = []string{"name", "category_name", "price", "avg_rating"}

// OpenSearchBackend runs multi_match queries against an OpenSearch cluster
// through its REST API.
type OpenSearchBackend struct {
	Client     *http.Client
	BaseURL    string
	UserAgent  string
	MaxRetries int
}

type searchRequest struct {
	Size   int         `json:"size"`
	Query  searchQuery `json:"query"`
	Source []string    `json:"_source"`
}

type searchQuery struct {
	MultiMatch multiMatch `json:"multi_match"`
}

type multiMatch struct {
	Query     string   `json:"query"`
	Fields    []string `json:"fields"`
	Type      string   `json:"type"`
	Fuzziness string   `json:"fuzziness"`
}

// BuildSearchBody returns the _search request body for query q and top k.
func BuildSearchBody(q string, k int) ([]byte, error) {
	return json.Marshal(searchRequest{
		Size: k,
		Query: searchQuery{MultiMatch: multiMatch{
			Query:     q,
			Fields:    searchFields,
			Type:      "best_fields",
			Fuzziness: "AUTO",
		}},
		Source: sourceFields,
	})
}

// Search returns the top k hits for q in alias, in the order OpenSearch
// ranked them. Any failure is a *types.CandidateLookupError.
func (b *OpenSearchBackend) Search(ctx context.Context, alias, q string, k int) ([]types.Candidate, error) {
	body, err := BuildSearchBody(q, k)
	if err != nil {
		return nil, &types.CandidateLookupError{Alias: alias, Query: q, Err: err}
	}

	reqURL := strings.TrimRight(b.BaseURL, "/") + "/" + url.PathEscape(alias) + "/_search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, &types.CandidateLookupError{Alias: alias, Query: q, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, b.MaxRetries)
	if err != nil {
		return nil, &types.CandidateLookupError{Alias: alias, Query: q, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &types.CandidateLookupError{Alias: alias, Query: q, Status: resp.StatusCode}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &types.CandidateLookupError{Alias: alias, Query: q, Err: fmt.Errorf("parsing response: %w", err)}
	}

	candidates := make([]types.Candidate, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		c := types.Candidate{ID: h.ID, Source: h.Source}
		if h.Score != nil {
			c.Score = *h.Score
		}
		var src struct {
			Name string `json:"name"`
		}
		if len(h.Source) > 0 && json.Unmarshal(h.Source, &src) == nil {
			c.Name = src.Name
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// OpenSearch _search response structures.
type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

type searchHit struct {
	ID     string          `json:"_id"`
	Score  *float64        `json:"_score"`
	Source json.RawMessage `json:"_source"`
}
