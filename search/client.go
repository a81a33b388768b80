// Package search talks to the remote search backend that serves the alert
// listing and the filter-vocabulary lookups. The backend accepts a
// pipeline-style query string plus a time range and returns a results table;
// both the query language and its execution are opaque to this service.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"alertdesk/core"
	"alertdesk/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Searcher is the interface the view controller programs against.
type Searcher interface {
	// Search runs a query over the given time range and returns the raw
	// result rows.
	Search(ctx context.Context, query, earliest, latest string) ([]json.RawMessage, error)
}

const lookupCacheSize = 64

// Client is the HTTP implementation of Searcher. Lookup-style queries
// (earliest "0", latest "now") are cached behind an LRU so per-session
// bootstrap does not hammer the backend.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	lookupCache *lru.Cache[string, []json.RawMessage]
	logger      *zap.SugaredLogger
}

// NewClient creates a search backend client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) (*Client, error) {
	cache, err := lru.New[string, []json.RawMessage](lookupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup cache: %w", err)
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		lookupCache: cache,
		logger:      logger,
	}, nil
}

type searchRequest struct {
	Search       string `json:"search"`
	EarliestTime string `json:"earliest_time"`
	LatestTime   string `json:"latest_time"`
}

type searchResponse struct {
	Results []json.RawMessage `json:"results"`
}

// Search runs a query against the backend.
func (c *Client) Search(ctx context.Context, query, earliest, latest string) ([]json.RawMessage, error) {
	body, err := json.Marshal(searchRequest{Search: query, EarliestTime: earliest, LatestTime: latest})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/services/search/jobs/export", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.SearchQueryErrors.Inc()
		return nil, fmt.Errorf("search backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.SearchQueryErrors.Inc()
		return nil, fmt.Errorf("search backend returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		metrics.SearchQueryErrors.Inc()
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return decoded.Results, nil
}

// Lookup runs an all-time lookup query, serving repeated calls from the LRU.
func (c *Client) Lookup(ctx context.Context, query string) ([]json.RawMessage, error) {
	if cached, ok := c.lookupCache.Get(query); ok {
		metrics.LookupCacheHits.Inc()
		return cached, nil
	}
	metrics.LookupCacheMisses.Inc()

	metrics.SearchQueries.WithLabelValues("lookup").Inc()
	results, err := c.Search(ctx, query, "0", "now")
	if err != nil {
		return nil, err
	}
	c.lookupCache.Add(query, results)
	return results, nil
}

// ListAlerts runs the main listing query and decodes the rows.
func (c *Client) ListAlerts(ctx context.Context, vs *core.ViewState) ([]core.AlertRow, error) {
	metrics.SearchQueries.WithLabelValues("list").Inc()
	results, err := c.Search(ctx, ComposeListQuery(vs), vs.Earliest, vs.Latest)
	if err != nil {
		return nil, err
	}
	return DecodeRows(results)
}

// DecodeRows turns raw search results into alert rows. Rows that fail to
// decode are skipped rather than failing the whole listing.
func DecodeRows(results []json.RawMessage) ([]core.AlertRow, error) {
	rows := make([]core.AlertRow, 0, len(results))
	for _, raw := range results {
		var row core.AlertRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
