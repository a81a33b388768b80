package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"alertdesk/config"
	"alertdesk/core"
	"alertdesk/drafts"
	"alertdesk/kvstore"
	"alertdesk/mutate"
	"alertdesk/search"
	"alertdesk/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// tableBackend serves a fixed vocabulary and whatever rows the record store
// currently holds, so mutations show up on the next refresh like they would
// against a real backend.
type tableBackend struct {
	mu      sync.Mutex
	store   *kvstore.MemoryStore
	keys    []string
	listErr error
}

func (b *tableBackend) Lookup(ctx context.Context, query string) ([]json.RawMessage, error) {
	switch query {
	case search.QueryFilterOptions:
		return []json.RawMessage{json.RawMessage(`{"analyst": ["alice"], "type": ["beaconing"], "severity": ["low", "high"]}`)}, nil
	case search.QueryAnalystsLookup:
		return []json.RawMessage{json.RawMessage(`{"analyst": "alice"}`), json.RawMessage(`{"analyst": "bob"}`)}, nil
	case search.QuerySeveritiesLookup:
		return []json.RawMessage{json.RawMessage(`{"severity": "low"}`), json.RawMessage(`{"severity": "high"}`)}, nil
	case search.QueryCannedQueries:
		return []json.RawMessage{json.RawMessage(`{"type": "beaconing", "label": "Connections", "href": "https://head-1:8000/s?e=<%- alert.entity %>"}`)}, nil
	case search.QueryThreatsToActions:
		return []json.RawMessage{json.RawMessage(`{"Threat": "Malware", "Actions": "Reimaged host"}`)}, nil
	}
	return nil, errors.New("lookup not scripted")
}

func (b *tableBackend) ListAlerts(ctx context.Context, vs *core.ViewState) ([]core.AlertRow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	var rows []core.AlertRow
	for _, key := range b.keys {
		record := b.store.Stored(key)
		if record == nil {
			continue
		}
		payload, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, core.AlertRow{
			Time:     record.Time,
			Type:     record.Type,
			Severity: record.Severity,
			Entity:   record.Entity,
			Status:   string(record.Status),
			Analyst:  record.AnalystName(),
			Data:     string(payload),
			Key:      key,
		})
	}
	return rows, nil
}

type testEnv struct {
	api     *API
	store   *kvstore.MemoryStore
	backend *tableBackend
	session string
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = 0
	cfg.API.AllowedOrigins = []string{"*"}
	cfg.API.RateLimit.RequestsPerSecond = 1000
	cfg.API.RateLimit.Burst = 1000
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := kvstore.NewMemoryStore()
	seedRecord := func(key string, record *core.AlertRecord) {
		store.Seed(key, record)
	}

	analyst := "alice"
	seedRecord("k1", &core.AlertRecord{
		Time: 100, Type: "beaconing", Entity: "host-a", Status: core.AlertStatusOpen,
		Severity: "low", Data: map[string]interface{}{"src_ip": "203.0.113.7"},
		WorkLog: []core.WorkLogEntry{{Action: core.WorkLogActionCreate}},
	})
	seedRecord("k2", &core.AlertRecord{
		Time: 200, Type: "beaconing", Entity: "host-b", Status: core.AlertStatusAssigned,
		Severity: "high", Analyst: &analyst, Data: map[string]interface{}{},
		WorkLog: []core.WorkLogEntry{
			{Action: core.WorkLogActionAssign, Analyst: "alice"},
			{Action: core.WorkLogActionCreate},
		},
	})

	backend := &tableBackend{store: store, keys: []string{"k1", "k2"}}
	logger := zap.NewNop().Sugar()
	a := NewAPI(backend, mutate.NewMutator(store, logger), drafts.NewMemoryStore(), testConfig(), logger)
	t.Cleanup(func() { a.Stop(context.Background()) })

	return &testEnv{api: a, store: store, backend: backend}
}

// do issues a request, carrying the session header across calls.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if e.session != "" {
		req.Header.Set(sessionHeader, e.session)
	}
	rec := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rec, req)
	if s := rec.Header().Get(sessionHeader); s != "" {
		e.session = s
	}
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

// TestGetAlerts tests the table load: bootstrap, rows, session header
func TestGetAlerts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, env.session, "session assigned on first contact")

	var resp struct {
		Page     view.Page      `json:"page"`
		State    core.ViewState `json:"state"`
		ShareURL string         `json:"share_url"`
	}
	decodeInto(t, rec, &resp)

	assert.Equal(t, 2, resp.Page.Total)
	assert.Equal(t, []string{"open", "assigned"}, resp.State.SelectedStatuses)
	assert.Contains(t, resp.ShareURL, "status=open")
}

// TestGetAlerts_SharedLink tests that URL parameters shape a fresh session
func TestGetAlerts_SharedLink(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/alerts?status=assigned&earliest=-24h", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State core.ViewState `json:"state"`
	}
	decodeInto(t, rec, &resp)
	assert.Equal(t, []string{"assigned"}, resp.State.SelectedStatuses)
	assert.Equal(t, "-24h", resp.State.Earliest)
}

// TestGetOptions tests the vocabulary payload
func TestGetOptions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/alerts/options", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var opts struct {
		search.Vocabulary
		Statuses []core.AlertStatus `json:"statuses"`
	}
	decodeInto(t, rec, &opts)
	assert.Equal(t, []string{"beaconing"}, opts.Types)
	assert.Equal(t, []string{"alice", "bob"}, opts.AllAnalysts)
	assert.Equal(t, []string{"Reimaged host"}, opts.ThreatsToActions["Malware"])
	assert.Equal(t, core.AllStatuses, opts.Statuses)
}

// TestViewOperations tests filter, display filter, sort and pagination round
// trips through the handlers
func TestViewOperations(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/alerts", nil)

	rec := env.do(t, http.MethodPost, "/api/view/display-filter", map[string]string{"filter": "host-b"})
	require.Equal(t, http.StatusOK, rec.Code)
	var page view.Page
	decodeInto(t, rec, &page)
	assert.Equal(t, 1, page.FilteredTotal)
	assert.Equal(t, 2, page.Total)

	rec = env.do(t, http.MethodPost, "/api/view/sort", map[string]string{"key": "entity"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/view/page-size", map[string]int{"size": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &page)
	assert.Equal(t, 1, page.PageNum)

	rec = env.do(t, http.MethodPost, "/api/view/filters", map[string]interface{}{
		"dimension": "status", "values": []string{"assigned"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/view/filters", map[string]interface{}{
		"dimension": "owner", "values": []string{"x"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestApplyAction_SingleRow tests the mutation flow end to end: store write,
// refresh, draft discard
func TestApplyAction_SingleRow(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/alerts", nil)

	rec := env.do(t, http.MethodPut, "/api/alerts/k1/draft", drafts.Draft{Notes: "wip"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/alerts/actions", map[string]interface{}{
		"action":      "assign",
		"key":         "k1",
		"acting_user": "bob",
		"assignee":    "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Applied int               `json:"applied"`
		Failed  map[string]string `json:"failed"`
	}
	decodeInto(t, rec, &resp)
	assert.Equal(t, 1, resp.Applied)
	assert.Empty(t, resp.Failed)

	stored := env.store.Stored("k1")
	assert.Equal(t, core.AlertStatusAssigned, stored.Status)
	assert.Equal(t, "alice", stored.AnalystName())

	// Draft spent by the successful update.
	rec = env.do(t, http.MethodGet, "/api/alerts/k1/draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var draft drafts.Draft
	decodeInto(t, rec, &draft)
	assert.Empty(t, draft.Notes)

	// The refreshed view reflects the new status.
	rec = env.do(t, http.MethodGet, "/api/alerts", nil)
	var alerts struct {
		Page view.Page `json:"page"`
	}
	decodeInto(t, rec, &alerts)
	for _, row := range alerts.Page.Rows {
		if row.Key == "k1" {
			assert.Equal(t, "assigned", row.Status)
		}
	}
}

// TestApplyAction_Batch tests batch application over the filtered set
func TestApplyAction_Batch(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/alerts", nil)

	rec := env.do(t, http.MethodPost, "/api/alerts/actions", map[string]interface{}{
		"action":      "comment",
		"batch":       true,
		"notes":       "sweep triage",
		"acting_user": "bob",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Applied int `json:"applied"`
	}
	decodeInto(t, rec, &resp)
	assert.Equal(t, 2, resp.Applied)

	for _, key := range []string{"k1", "k2"} {
		notes := env.store.Stored(key).WorkLog[0].Notes
		assert.Contains(t, notes, "sweep triage\n[batch update code: ")
	}
}

// TestApplyAction_Conflict tests that a concurrent update surfaces as a 409
// with the per-row error
func TestApplyAction_Conflict(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/alerts", nil)

	// Another user updates k1 behind the loaded view.
	record := env.store.Stored("k1")
	record.PrependWorkLog(core.WorkLogEntry{Action: core.WorkLogActionComment, Analyst: "mallory"})
	env.store.Seed("k1", record)

	rec := env.do(t, http.MethodPost, "/api/alerts/actions", map[string]interface{}{
		"action":      "assign",
		"key":         "k1",
		"acting_user": "bob",
		"assignee":    "bob",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Failed map[string]string `json:"failed"`
	}
	decodeInto(t, rec, &resp)
	assert.Contains(t, resp.Failed["k1"], "updated by another user")
}

// TestApplyAction_ValidationErrors tests request-level rejections
func TestApplyAction_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/alerts", nil)

	// Unknown row
	rec := env.do(t, http.MethodPost, "/api/alerts/actions", map[string]interface{}{
		"action": "comment", "key": "nope", "notes": "x", "acting_user": "bob",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Missing payload for close
	rec = env.do(t, http.MethodPost, "/api/alerts/actions", map[string]interface{}{
		"action": "close", "key": "k1", "acting_user": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Neither key nor batch
	rec = env.do(t, http.MethodPost, "/api/alerts/actions", map[string]interface{}{
		"action": "comment", "notes": "x", "acting_user": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestApplyAction_CloseOptionGating tests that close submissions are checked
// against the threats-to-actions table
func TestApplyAction_CloseOptionGating(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/alerts", nil)

	// Action outside the threat's allowed set
	rec := env.do(t, http.MethodPost, "/api/alerts/actions", map[string]interface{}{
		"action": "close", "key": "k1", "acting_user": "bob",
		"threat": "Malware", "actions": []string{"Paid ransom"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Threat not in the table
	rec = env.do(t, http.MethodPost, "/api/alerts/actions", map[string]interface{}{
		"action": "close", "key": "k1", "acting_user": "bob",
		"threat": "Gremlins", "actions": []string{"Reimaged host"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Allowed pair goes through
	rec = env.do(t, http.MethodPost, "/api/alerts/actions", map[string]interface{}{
		"action": "close", "key": "k1", "acting_user": "bob",
		"threat": "Malware", "actions": []string{"Reimaged host"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.AlertStatusClosed, env.store.Stored("k1").Status)
}

// TestDraftLifecycle tests save, load and discard for one row
func TestDraftLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/alerts", nil)

	in := drafts.Draft{Notes: "checking logs", Threat: "Malware", Actions: []string{"Reimaged host"}}
	rec := env.do(t, http.MethodPut, "/api/alerts/k1/draft", in)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/alerts/k1/draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out drafts.Draft
	decodeInto(t, rec, &out)
	assert.Equal(t, in, out)

	rec = env.do(t, http.MethodDelete, "/api/alerts/k1/draft", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/alerts/k1/draft", nil)
	decodeInto(t, rec, &out)
	assert.Empty(t, out.Notes)
}

// TestToggleExpand tests the detail panel payload including the interpolated
// canned link
func TestToggleExpand(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/alerts", nil)

	rec := env.do(t, http.MethodPost, "/api/alerts/k1/expand", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Expanded   bool              `json:"expanded"`
		Record     *core.AlertRecord `json:"record"`
		CannedHref string            `json:"canned_href"`
		CannedName string            `json:"canned_name"`
	}
	decodeInto(t, rec, &resp)
	assert.True(t, resp.Expanded)
	require.NotNil(t, resp.Record)
	assert.Equal(t, "host-a", resp.Record.Entity)
	assert.Equal(t, "/s?e=host-a", resp.CannedHref, "interpolated and relativized")
	assert.Equal(t, "Connections", resp.CannedName)

	rec = env.do(t, http.MethodPost, "/api/alerts/k1/expand", nil)
	// The record field is omitted when collapsed, so decode into a fresh
	// struct rather than reusing the one populated by the first toggle.
	resp = struct {
		Expanded   bool              `json:"expanded"`
		Record     *core.AlertRecord `json:"record"`
		CannedHref string            `json:"canned_href"`
		CannedName string            `json:"canned_name"`
	}{}
	decodeInto(t, rec, &resp)
	assert.False(t, resp.Expanded)
	assert.Nil(t, resp.Record)
}

// TestWarnings tests surfacing and dismissing listing warnings
func TestWarnings(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/alerts", nil)

	env.backend.mu.Lock()
	env.backend.listErr = errors.New("search backend unreachable")
	env.backend.mu.Unlock()

	rec := env.do(t, http.MethodPost, "/api/view/time-range", map[string]string{
		"earliest": "-1h", "latest": "now",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/warnings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var warnings struct {
		Warnings []string `json:"warnings"`
	}
	decodeInto(t, rec, &warnings)
	require.NotEmpty(t, warnings.Warnings)
	assert.Contains(t, warnings.Warnings[0], "unable to load alerts")

	rec = env.do(t, http.MethodDelete, "/api/warnings", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/warnings", nil)
	decodeInto(t, rec, &warnings)
	assert.Empty(t, warnings.Warnings)
}

// TestRefresh tests the manual reload path
func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/alerts", nil)

	env.do(t, http.MethodPost, "/api/view/display-filter", map[string]string{"filter": "host-a"})

	rec := env.do(t, http.MethodPost, "/api/view/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page view.Page
	decodeInto(t, rec, &page)
	assert.Equal(t, 2, page.FilteredTotal, "display filter cleared")
}

// TestHealthCheck tests liveness
func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

// TestRateLimiting tests per-client request limiting
func TestRateLimiting(t *testing.T) {
	store := kvstore.NewMemoryStore()
	backend := &tableBackend{store: store}
	cfg := testConfig()
	cfg.API.RateLimit.RequestsPerSecond = 1
	cfg.API.RateLimit.Burst = 2
	logger := zap.NewNop().Sugar()
	a := NewAPI(backend, mutate.NewMutator(store, logger), drafts.NewMemoryStore(), cfg, logger)
	t.Cleanup(func() { a.Stop(context.Background()) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

// TestCORSPreflight tests the OPTIONS short-circuit
func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/alerts", nil)
	req.Header.Set("Origin", "https://console.example.com")
	rec := httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://console.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), sessionHeader)
}
