package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"alertdesk/core"
	"alertdesk/search"

	"go.uber.org/zap"
)

// respondJSON writes a JSON response with proper error handling
func (a *API) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Errorw("Failed to encode JSON response",
			"error", err,
			"data_type", fmt.Sprintf("%T", data))
		// Response already started, can't send error to client
	}
}

// writeError writes an error response to the client and logs it
func writeError(w http.ResponseWriter, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	if err != nil && logger != nil {
		logger.Errorw(message,
			"error", err.Error(),
			"status_code", statusCode,
		)
	} else if logger != nil {
		logger.Errorw(message,
			"status_code", statusCode,
		)
	}
	http.Error(w, message, statusCode)
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// alertsResponse is the full table payload: the visible page plus the state
// needed to render the controls and the shareable link.
type alertsResponse struct {
	Page     interface{} `json:"page"`
	State    interface{} `json:"state"`
	ShareURL string      `json:"share_url"`
}

// getAlerts returns the current page of the triage table. Query parameters
// from a shared link are applied when the session is new.
func (a *API) getAlerts(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	a.respondJSON(w, alertsResponse{
		Page:     s.controller.Page(),
		State:    s.controller.State(),
		ShareURL: "/api/alerts?" + s.controller.EncodeQuery().Encode(),
	}, http.StatusOK)
}

// optionsResponse is the filter vocabulary plus the fixed status set, which
// is not lookup-driven.
type optionsResponse struct {
	*search.Vocabulary
	Statuses []core.AlertStatus `json:"statuses"`
}

// getOptions returns the filter vocabulary and mutation option sets loaded
// at session bootstrap.
func (a *API) getOptions(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	vocab := s.controller.Vocabulary()
	if vocab == nil {
		writeError(w, http.StatusServiceUnavailable, "Filter options not loaded yet", nil, a.logger)
		return
	}
	a.respondJSON(w, optionsResponse{
		Vocabulary: vocab,
		Statuses:   core.AllStatuses,
	}, http.StatusOK)
}

type setFilterRequest struct {
	Dimension string   `json:"dimension" validate:"required"`
	Values    []string `json:"values"`
}

// setFilter replaces the selection for one filter dimension and reloads the
// table.
func (a *API) setFilter(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	var req setFilterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation failed: %v", err), err, a.logger)
		return
	}
	if err := s.controller.SetFilter(r.Context(), req.Dimension, req.Values); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to apply filter: %v", err), err, a.logger)
		return
	}
	a.respondJSON(w, s.controller.Page(), http.StatusOK)
}

type timeRangeRequest struct {
	Earliest string `json:"earliest" validate:"required"`
	Latest   string `json:"latest" validate:"required"`
}

// setTimeRange replaces the time bounds and reloads the table.
func (a *API) setTimeRange(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	var req timeRangeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation failed: %v", err), err, a.logger)
		return
	}
	if err := s.controller.SetTimeRange(r.Context(), req.Earliest, req.Latest); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload alerts", err, a.logger)
		return
	}
	a.respondJSON(w, s.controller.Page(), http.StatusOK)
}

type displayFilterRequest struct {
	Filter string `json:"filter"`
}

// setDisplayFilter narrows the loaded rows by substring match without a
// backend query.
func (a *API) setDisplayFilter(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	var req displayFilterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	s.controller.SetDisplayFilter(req.Filter)
	a.respondJSON(w, s.controller.Page(), http.StatusOK)
}

type sortRequest struct {
	Key string `json:"key" validate:"required"`
}

// sortRows applies a column header click to the loaded rows.
func (a *API) sortRows(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	var req sortRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation failed: %v", err), err, a.logger)
		return
	}
	s.controller.Sort(req.Key)
	a.respondJSON(w, s.controller.Page(), http.StatusOK)
}

type pageRequest struct {
	Page int `json:"page" validate:"min=1"`
}

// setPage moves to another page of the filtered row list.
func (a *API) setPage(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	var req pageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation failed: %v", err), err, a.logger)
		return
	}
	s.controller.SetPage(req.Page)
	a.respondJSON(w, s.controller.Page(), http.StatusOK)
}

type pageSizeRequest struct {
	Size int `json:"size" validate:"min=1,max=1000"`
}

// setPageSize changes the page size and resets to the first page.
func (a *API) setPageSize(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	var req pageSizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation failed: %v", err), err, a.logger)
		return
	}
	s.controller.SetPageSize(req.Size)
	a.respondJSON(w, s.controller.Page(), http.StatusOK)
}

// refresh reloads the table from the backend, clearing the display filter
// and collapsing all detail panels.
func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	if err := s.controller.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload alerts", err, a.logger)
		return
	}
	a.respondJSON(w, s.controller.Page(), http.StatusOK)
}

// getWarnings returns the accumulated non-fatal warnings for the session.
func (a *API) getWarnings(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	a.respondJSON(w, map[string][]string{"warnings": s.controller.Warnings()}, http.StatusOK)
}

// dismissWarnings clears the session's warning list.
func (a *API) dismissWarnings(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	s.controller.DismissWarnings()
	w.WriteHeader(http.StatusNoContent)
}

// healthCheck reports service liveness.
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
