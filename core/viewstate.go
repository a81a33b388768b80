package core

import (
	"net/url"
)

// Filter dimension names as they appear in URL query parameters and in the
// backend query composition.
const (
	DimensionStatus   = "status"
	DimensionType     = "type"
	DimensionSeverity = "severity"
	DimensionAnalyst  = "analyst"
)

// Defaults for a freshly opened view.
const (
	DefaultEarliest     = "0"
	DefaultLatest       = "now"
	DefaultSortKey      = "_time"
	DefaultSortDir      = "desc"
	DefaultItemsPerPage = 10
)

// ViewState is the transient, per-session state of the triage table. The
// filter dimensions and time range round-trip through the URL query string;
// the display filter, sort and pagination are local-only.
type ViewState struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`

	SelectedStatuses   []string `json:"selected_statuses"`
	SelectedTypes      []string `json:"selected_types"`
	SelectedSeverities []string `json:"selected_severities"`
	SelectedAnalysts   []string `json:"selected_analysts"`

	SortKey             string `json:"sort_key"`
	SortDir             string `json:"sort_dir"`
	PageNum             int    `json:"page_num"`
	ItemsPerPage        int    `json:"items_per_page"`
	DisplaySearchFilter string `json:"display_search_filter"`

	// ExpandedInfo tracks which rows have their detail panel expanded.
	ExpandedInfo map[string]bool `json:"expanded_info"`
}

// NewViewState creates a ViewState with default values: open and assigned
// alerts over all time, newest first, ten per page.
func NewViewState() *ViewState {
	return &ViewState{
		Earliest:           DefaultEarliest,
		Latest:             DefaultLatest,
		SelectedStatuses:   append([]string(nil), DefaultStatuses...),
		SelectedTypes:      []string{},
		SelectedSeverities: []string{},
		SelectedAnalysts:   []string{},
		SortKey:            DefaultSortKey,
		SortDir:            DefaultSortDir,
		PageNum:            1,
		ItemsPerPage:       DefaultItemsPerPage,
		ExpandedInfo:       make(map[string]bool),
	}
}

// EncodeQuery serializes the shareable part of the view state as URL query
// parameters. Selected sets are emitted as repeated parameters so a reload
// reproduces the identical view. Display filter and pagination are local
// state and are deliberately left out.
func (vs *ViewState) EncodeQuery() url.Values {
	params := url.Values{}
	params.Set("earliest", vs.Earliest)
	params.Set("latest", vs.Latest)
	for _, v := range vs.SelectedStatuses {
		params.Add(DimensionStatus, v)
	}
	for _, v := range vs.SelectedTypes {
		params.Add(DimensionType, v)
	}
	for _, v := range vs.SelectedSeverities {
		params.Add(DimensionSeverity, v)
	}
	for _, v := range vs.SelectedAnalysts {
		params.Add(DimensionAnalyst, v)
	}
	return params
}

// ApplyQuery overlays URL query parameters onto the view state. A missing
// parameter keeps the component default, so parsing the output of
// EncodeQuery reproduces the same selections.
func (vs *ViewState) ApplyQuery(params url.Values) {
	if v := params.Get("earliest"); v != "" {
		vs.Earliest = v
	}
	if v := params.Get("latest"); v != "" {
		vs.Latest = v
	}
	if vals, ok := params[DimensionStatus]; ok {
		vs.SelectedStatuses = append([]string(nil), vals...)
	}
	if vals, ok := params[DimensionType]; ok {
		vs.SelectedTypes = append([]string(nil), vals...)
	}
	if vals, ok := params[DimensionSeverity]; ok {
		vs.SelectedSeverities = append([]string(nil), vals...)
	}
	if vals, ok := params[DimensionAnalyst]; ok {
		vs.SelectedAnalysts = append([]string(nil), vals...)
	}
}

// Selections returns the selected value set for a filter dimension.
func (vs *ViewState) Selections(dimension string) []string {
	switch dimension {
	case DimensionStatus:
		return vs.SelectedStatuses
	case DimensionType:
		return vs.SelectedTypes
	case DimensionSeverity:
		return vs.SelectedSeverities
	case DimensionAnalyst:
		return vs.SelectedAnalysts
	}
	return nil
}

// SetSelections replaces the selected value set for a filter dimension.
// Returns false for an unknown dimension.
func (vs *ViewState) SetSelections(dimension string, values []string) bool {
	selected := append([]string(nil), values...)
	switch dimension {
	case DimensionStatus:
		vs.SelectedStatuses = selected
	case DimensionType:
		vs.SelectedTypes = selected
	case DimensionSeverity:
		vs.SelectedSeverities = selected
	case DimensionAnalyst:
		vs.SelectedAnalysts = selected
	default:
		return false
	}
	return true
}

// ToggleSort applies the sort rules for a header click: same key flips the
// direction, a new key defaults to descending for the time column and
// ascending for everything else.
func (vs *ViewState) ToggleSort(key string) {
	dir := "asc"
	if key == DefaultSortKey {
		dir = "desc"
	}
	if key == vs.SortKey {
		if vs.SortDir == "asc" {
			dir = "desc"
		} else {
			dir = "asc"
		}
	}
	vs.SortKey = key
	vs.SortDir = dir
}

// ToggleExpanded flips the expansion state of a row's detail panel.
func (vs *ViewState) ToggleExpanded(key string) {
	vs.ExpandedInfo[key] = !vs.ExpandedInfo[key]
}

// CollapseAll clears all row expansion state.
func (vs *ViewState) CollapseAll() {
	vs.ExpandedInfo = make(map[string]bool)
}
