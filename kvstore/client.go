// Package kvstore talks to the remote key-value collection that persists
// alert records. The store exposes a REST interface: GET returns the current
// document, POST replaces it whole. There is no partial-update primitive;
// concurrency control is the caller's problem (the mutation protocol guards
// writes with the observed work log length).
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"alertdesk/core"

	"go.uber.org/zap"
)

// RecordStore is the interface the rest of the service programs against.
type RecordStore interface {
	Get(ctx context.Context, key string) (*core.AlertRecord, error)
	Put(ctx context.Context, key string, record *core.AlertRecord) error
	Insert(ctx context.Context, record *core.AlertRecord) (string, error)
	Delete(ctx context.Context, key string) error
}

// Client is the HTTP implementation of RecordStore.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewClient creates a record store client for one collection.
func NewClient(baseURL, collection string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL:    baseURL,
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// recordURL builds the document URL for a key, or the collection URL when
// key is empty.
func (c *Client) recordURL(key string) string {
	u := fmt.Sprintf("%s/storage/collections/data/%s", c.baseURL, url.PathEscape(c.collection))
	if key != "" {
		u += "/" + url.PathEscape(key)
	}
	return u
}

// Get fetches the current stored record for a key.
func (c *Client) Get(ctx context.Context, key string) (*core.AlertRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.recordURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build record fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, key)
	default:
		return nil, fmt.Errorf("record fetch for %s returned status %d", key, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", key, err)
	}
	return core.ParseAlertRecord(body)
}

// Put replaces the full stored document for a key.
func (c *Client) Put(ctx context.Context, key string, record *core.AlertRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.recordURL(key), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build record write request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrRecordNotFound, key)
	default:
		return fmt.Errorf("record write for %s returned status %d", key, resp.StatusCode)
	}
}

// Insert creates a new record in the collection and returns its generated key.
func (c *Client) Insert(ctx context.Context, record *core.AlertRecord) (string, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode new record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.recordURL(""), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build record insert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("record insert returned status %d", resp.StatusCode)
	}

	var created struct {
		Key string `json:"_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode insert response: %w", err)
	}
	return created.Key, nil
}

// Delete removes a record from the collection.
func (c *Client) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.recordURL(key), nil)
	if err != nil {
		return fmt.Errorf("failed to build record delete request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrRecordNotFound, key)
	default:
		return fmt.Errorf("record delete for %s returned status %d", key, resp.StatusCode)
	}
}
