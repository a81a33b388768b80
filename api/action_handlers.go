package api

import (
	"errors"
	"fmt"
	"net/http"

	"alertdesk/core"
	"alertdesk/mutate"

	"github.com/gorilla/mux"
)

// actionRequest is the mutation submission. With Batch set the action
// applies to every row matching the current display filter; otherwise Key
// names the single target row.
type actionRequest struct {
	Action      string   `json:"action" validate:"required"`
	Key         string   `json:"key"`
	Batch       bool     `json:"batch"`
	Notes       string   `json:"notes"`
	ActingUser  string   `json:"acting_user" validate:"required"`
	Assignee    string   `json:"assignee"`
	NewSeverity string   `json:"new_severity"`
	Threat      string   `json:"threat"`
	Actions     []string `json:"actions"`
}

// actionResponse reports the per-row outcome of a mutation batch.
type actionResponse struct {
	Applied int               `json:"applied"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// applyAction applies a work-log mutation to one row or to the filtered set,
// then refreshes the table and discards drafts for the rows that changed.
func (a *API) applyAction(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err, a.logger)
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation failed: %v", err), err, a.logger)
		return
	}

	if mutate.Action(req.Action) == mutate.ActionClose {
		if err := a.checkCloseOptions(s, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), err, a.logger)
			return
		}
	}

	var rows []core.AlertRow
	if req.Batch {
		rows = s.controller.FilteredRows()
	} else {
		if req.Key == "" {
			writeError(w, http.StatusBadRequest, "Either key or batch is required", nil, a.logger)
			return
		}
		row, ok := s.controller.Row(req.Key)
		if !ok {
			writeError(w, http.StatusNotFound, "Alert not found in current view", nil, a.logger)
			return
		}
		rows = []core.AlertRow{row}
	}

	result, err := a.mutator.ApplyAction(r.Context(), &mutate.Request{
		Rows:        rows,
		Action:      mutate.Action(req.Action),
		Notes:       req.Notes,
		ActingUser:  req.ActingUser,
		Assignee:    req.Assignee,
		NewSeverity: req.NewSeverity,
		Threat:      req.Threat,
		Actions:     req.Actions,
	})
	if err != nil {
		writeError(w, actionErrorStatus(err), err.Error(), err, a.logger)
		return
	}

	// Drafts for successfully updated rows are spent; failed rows keep
	// theirs so the user can retry.
	var updated []string
	failed := make(map[string]string)
	for key, rowErr := range result {
		if rowErr != nil {
			failed[key] = rowErr.Error()
			continue
		}
		updated = append(updated, key)
	}
	if len(updated) > 0 {
		if err := a.draftStore.Delete(r.Context(), s.id, updated...); err != nil {
			a.logger.Warnf("failed to discard drafts after action: %v", err)
		}
	}

	if err := s.controller.Refresh(r.Context()); err != nil {
		a.logger.Warnf("refresh after action: %v", err)
	}

	status := http.StatusOK
	if len(failed) > 0 {
		status = http.StatusConflict
	}
	if len(failed) == 0 {
		failed = nil
	}
	a.respondJSON(w, actionResponse{Applied: len(updated), Failed: failed}, status)
}

// checkCloseOptions rejects a close whose threat or remediation actions fall
// outside the session's threats-to-actions table, the same gating the
// selection controls enforce. Sessions without the table (degraded
// bootstrap) accept any values.
func (a *API) checkCloseOptions(s *session, req *actionRequest) error {
	vocab := s.controller.Vocabulary()
	if vocab == nil || len(vocab.ThreatsToActions) == 0 {
		return nil
	}
	allowed := vocab.ActionsForThreat(req.Threat)
	if allowed == nil {
		return fmt.Errorf("unknown threat %q", req.Threat)
	}
	for _, action := range req.Actions {
		found := false
		for _, candidate := range allowed {
			if action == candidate {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("action %q is not allowed for threat %q", action, req.Threat)
		}
	}
	return nil
}

// actionErrorStatus maps a mutation validation error to an HTTP status.
func actionErrorStatus(err error) int {
	switch {
	case errors.Is(err, mutate.ErrNoRows),
		errors.Is(err, mutate.ErrUnknownAction),
		errors.Is(err, mutate.ErrMixedStatuses),
		errors.Is(err, mutate.ErrMissingAssignee),
		errors.Is(err, mutate.ErrMissingSeverity),
		errors.Is(err, mutate.ErrMissingThreat),
		errors.Is(err, mutate.ErrMissingActions),
		errors.Is(err, mutate.ErrMissingNotes):
		return http.StatusBadRequest
	case errors.Is(err, mutate.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// expandResponse carries the detail-panel payload for a row: the parsed
// record and the interpolated follow-up search link for its alert type.
type expandResponse struct {
	Expanded   bool              `json:"expanded"`
	Record     *core.AlertRecord `json:"record,omitempty"`
	CannedHref string            `json:"canned_href,omitempty"`
	CannedName string            `json:"canned_name,omitempty"`
}

// toggleExpand flips a row's detail panel. Expanding returns the full parsed
// record plus the canned query link with alert fields substituted in.
func (a *API) toggleExpand(w http.ResponseWriter, r *http.Request) {
	s := a.getSession(w, r)
	key := mux.Vars(r)["key"]
	row, ok := s.controller.Row(key)
	if !ok {
		writeError(w, http.StatusNotFound, "Alert not found in current view", nil, a.logger)
		return
	}

	s.controller.ToggleExpanded(key)
	state := s.controller.State()
	resp := expandResponse{Expanded: state.ExpandedInfo[key]}
	if resp.Expanded {
		record, err := row.Record()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to parse alert record", err, a.logger)
			return
		}
		resp.Record = record
		if vocab := s.controller.Vocabulary(); vocab != nil {
			if canned, ok := vocab.CannedQueries[row.Type]; ok {
				resp.CannedHref = core.RelativizeLink(canned.InterpolateHref(record))
				resp.CannedName = canned.Label
			}
		}
	}
	a.respondJSON(w, resp, http.StatusOK)
}
