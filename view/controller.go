// Package view implements the filter/query controller for the triage table:
// it owns the per-session view state, composes and issues the backend listing
// query, and keeps the shareable URL query string in sync with the filters.
package view

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"alertdesk/core"
	"alertdesk/metrics"
	"alertdesk/search"

	"go.uber.org/zap"
)

// Backend is the search-side surface the controller depends on.
type Backend interface {
	search.LookupSearcher
	ListAlerts(ctx context.Context, vs *core.ViewState) ([]core.AlertRow, error)
}

// Page is the visible projection of the loaded rows: display-filtered,
// sorted, windowed to the current page.
type Page struct {
	Rows          []core.AlertRow `json:"rows"`
	Total         int             `json:"total"`
	FilteredTotal int             `json:"filtered_total"`
	PageNum       int             `json:"page_num"`
	PageCount     int             `json:"page_count"`
}

// Controller synchronizes three representations of the same view: the
// in-memory filter/sort/pagination state, the URL query string, and the row
// list fetched from the search backend. All methods are safe for concurrent
// use; the listing query runs outside the lock and stale completions are
// dropped by a generation check.
type Controller struct {
	mu           sync.Mutex
	backend      Backend
	logger       *zap.SugaredLogger
	state        *core.ViewState
	vocab        *search.Vocabulary
	bootstrapped bool
	rows         []core.AlertRow
	warnings     []string
	generation   uint64
	refreshCount uint64
}

// NewController creates a controller with default view state. Bootstrap must
// complete before the first listing query runs.
func NewController(backend Backend, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		backend: backend,
		logger:  logger,
		state:   core.NewViewState(),
	}
}

// Bootstrap loads the filter vocabulary. Listing queries are gated on this
// step so the view never renders against an incomplete filter set; lookup
// failures degrade to empty options with warnings.
func (c *Controller) Bootstrap(ctx context.Context) error {
	vocab, warnings := search.BootstrapVocabulary(ctx, c.backend, c.logger)

	c.mu.Lock()
	c.vocab = vocab
	c.warnings = append(c.warnings, warnings...)
	c.bootstrapped = true
	c.mu.Unlock()

	return c.requery(ctx)
}

// Vocabulary returns the bootstrapped filter vocabulary, or nil before
// Bootstrap has run.
func (c *Controller) Vocabulary() *search.Vocabulary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vocab
}

// SetFilter replaces the selection for one filter dimension and re-issues the
// backend query.
func (c *Controller) SetFilter(ctx context.Context, dimension string, values []string) error {
	c.mu.Lock()
	if !c.state.SetSelections(dimension, values) {
		c.mu.Unlock()
		return fmt.Errorf("unknown filter dimension: %s", dimension)
	}
	c.mu.Unlock()
	return c.requery(ctx)
}

// SetTimeRange replaces the time bounds and re-issues the backend query.
func (c *Controller) SetTimeRange(ctx context.Context, earliest, latest string) error {
	c.mu.Lock()
	c.state.Earliest = earliest
	c.state.Latest = latest
	c.mu.Unlock()
	return c.requery(ctx)
}

// SetDisplayFilter sets the client-side substring filter over the already
// loaded rows. No backend query is issued; the page resets to 1.
func (c *Controller) SetDisplayFilter(filter string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.DisplaySearchFilter = filter
	c.state.PageNum = 1
}

// Sort applies a header click: flips direction on the current key, otherwise
// defaults to descending for the time column and ascending for the rest. The
// loaded row list is re-sorted in place without a backend query.
func (c *Controller) Sort(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ToggleSort(key)
	core.SortRows(c.rows, c.state.SortKey, c.state.SortDir)
}

// SetPage moves to the given page of the filtered row list.
func (c *Controller) SetPage(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 {
		n = 1
	}
	c.state.PageNum = n
}

// SetPageSize changes the page size and resets to page 1.
func (c *Controller) SetPageSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 {
		n = core.DefaultItemsPerPage
	}
	c.state.ItemsPerPage = n
	c.state.PageNum = 1
}

// ToggleExpanded flips the detail-panel expansion state for a row.
func (c *Controller) ToggleExpanded(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ToggleExpanded(key)
}

// Refresh forces a reload of the row list from the backend and resets the
// transient projection state: display filter cleared, detail panels
// collapsed. Called after every mutation batch so local state never diverges
// from the store.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.refreshCount++
	c.state.DisplaySearchFilter = ""
	c.state.CollapseAll()
	c.mu.Unlock()
	return c.requery(ctx)
}

// EncodeQuery serializes the shareable view state as URL query parameters.
func (c *Controller) EncodeQuery() url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.EncodeQuery()
}

// ApplyQuery overlays URL query parameters onto the view state and re-issues
// the backend query. Used when a shared link opens a session.
func (c *Controller) ApplyQuery(ctx context.Context, params url.Values) error {
	c.mu.Lock()
	c.state.ApplyQuery(params)
	c.mu.Unlock()
	return c.requery(ctx)
}

// State returns a copy of the current view state.
func (c *Controller) State() core.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := *c.state
	state.ExpandedInfo = make(map[string]bool, len(c.state.ExpandedInfo))
	for k, v := range c.state.ExpandedInfo {
		state.ExpandedInfo[k] = v
	}
	return state
}

// FilteredRows returns the display-filtered row set, which is also the input
// set for a batch mutation.
func (c *Controller) FilteredRows() []core.AlertRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.AlertRow(nil), core.FilterRows(c.rows, c.state.DisplaySearchFilter)...)
}

// Row returns the loaded row for a record key.
func (c *Controller) Row(key string) (core.AlertRow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range c.rows {
		if row.Key == key {
			return row, true
		}
	}
	return core.AlertRow{}, false
}

// Page computes the visible window over the filtered, sorted row list.
func (c *Controller) Page() Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	filtered := core.FilterRows(c.rows, c.state.DisplaySearchFilter)
	pageCount := core.PageCount(len(filtered), c.state.ItemsPerPage)
	return Page{
		Rows:          core.PageRows(filtered, c.state.PageNum, c.state.ItemsPerPage),
		Total:         len(c.rows),
		FilteredTotal: len(filtered),
		PageNum:       c.state.PageNum,
		PageCount:     pageCount,
	}
}

// Warnings returns the accumulated non-fatal warnings.
func (c *Controller) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.warnings...)
}

// DismissWarnings clears the warning list.
func (c *Controller) DismissWarnings() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = nil
}

// addWarning records a non-fatal warning.
func (c *Controller) addWarning(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, msg)
}

// requery re-issues the listing query for the current filter state. The
// query runs without holding the lock; each requery takes a generation token
// and a completion whose token is no longer current is discarded, so a slow
// superseded query can never clobber fresher rows.
func (c *Controller) requery(ctx context.Context) error {
	c.mu.Lock()
	if !c.bootstrapped {
		c.mu.Unlock()
		return nil
	}
	c.generation++
	token := c.generation
	state := *c.state
	c.mu.Unlock()

	rows, err := c.backend.ListAlerts(ctx, &state)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.generation {
		metrics.StaleQueryResponses.Inc()
		c.logger.Debugf("dropping stale listing response (generation %d, current %d)", token, c.generation)
		return nil
	}
	if err != nil {
		c.warnings = append(c.warnings, fmt.Sprintf("unable to load alerts: %v", err))
		return err
	}
	c.rows = rows
	c.state.DisplaySearchFilter = ""
	return nil
}
