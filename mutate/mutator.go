// Package mutate implements the record mutation protocol: a user intent
// (assign, unassign, close, reopen, comment, change-severity) becomes one
// work log entry plus a partial field update, applied to one or many records
// as independent read-modify-write round trips against the record store.
//
// There is no server-side locking. Each write is guarded by an optimistic
// check: the record is re-fetched immediately before the write and rejected
// if its work log length differs from the length observed when the row was
// loaded into the view. The check is best-effort — two writers that both
// pass it before either writes can still lose an update.
package mutate

import (
	"context"
	"fmt"
	"time"

	"alertdesk/core"
	"alertdesk/kvstore"
	"alertdesk/metrics"

	"go.uber.org/zap"
)

// Action is a user-initiated mutation intent.
type Action string

const (
	ActionAssign         Action = "assign"
	ActionUnassign       Action = "unassign"
	ActionClose          Action = "close"
	ActionReopen         Action = "reopen"
	ActionComment        Action = "comment"
	ActionChangeSeverity Action = "change-severity"
)

// IsValid checks if the action is a known intent.
func (a Action) IsValid() bool {
	switch a {
	case ActionAssign, ActionUnassign, ActionClose, ActionReopen, ActionComment, ActionChangeSeverity:
		return true
	}
	return false
}

// Request describes one mutation applied to one row or to the whole filtered
// set (batch mode).
type Request struct {
	Rows       []core.AlertRow
	Action     Action
	Notes      string
	ActingUser string

	// Per-action payload.
	Assignee    string   // assign
	NewSeverity string   // change-severity
	Threat      string   // close
	Actions     []string // close
}

// BatchResult maps each record key to its outcome: nil on success, otherwise
// the specific error that dropped that record's update.
type BatchResult map[string]error

// Failed returns the keys whose update was dropped.
func (r BatchResult) Failed() []string {
	var failed []string
	for key, err := range r {
		if err != nil {
			failed = append(failed, key)
		}
	}
	return failed
}

// fieldChanges is the partial update derived from an action. Nil pointers
// leave the field untouched; clearAnalyst explicitly nulls the assignment.
type fieldChanges struct {
	status       *core.AlertStatus
	analyst      *string
	clearAnalyst bool
	severity     *string
}

// Mutator applies mutation requests against the record store.
type Mutator struct {
	store  kvstore.RecordStore
	logger *zap.SugaredLogger
}

// NewMutator creates a mutator backed by the given record store.
func NewMutator(store kvstore.RecordStore, logger *zap.SugaredLogger) *Mutator {
	return &Mutator{store: store, logger: logger}
}

// Validate checks a request without touching the store, mirroring the
// control gating the interface performs (disabled buttons).
func (m *Mutator) Validate(req *Request) error {
	if len(req.Rows) == 0 {
		return ErrNoRows
	}
	if !req.Action.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownAction, req.Action)
	}
	if len(req.Rows) > 1 && core.MixedClosedStatuses(req.Rows) {
		return ErrMixedStatuses
	}
	switch req.Action {
	case ActionAssign:
		if req.Assignee == "" {
			return ErrMissingAssignee
		}
	case ActionChangeSeverity:
		if req.NewSeverity == "" {
			return ErrMissingSeverity
		}
	case ActionClose:
		if req.Threat == "" {
			return ErrMissingThreat
		}
		if len(req.Actions) == 0 {
			return ErrMissingActions
		}
	case ActionComment:
		if req.Notes == "" {
			return ErrMissingNotes
		}
	}
	return nil
}

// ApplyAction validates the request and applies it to each row in turn.
// Processing is sequential; one record's failure never blocks its siblings.
// The returned BatchResult has one entry per row. After a batch the caller
// must force a view refresh and clear the affected rows' draft state.
func (m *Mutator) ApplyAction(ctx context.Context, req *Request) (BatchResult, error) {
	if err := m.Validate(req); err != nil {
		return nil, err
	}

	// Batch correlation token, shared by all entries from one batch action so
	// they can be traced across records. Suffixed after plan so empty user
	// notes still produce the auto-generated note text.
	var batchToken string
	if len(req.Rows) > 1 {
		batchToken = time.Now().UTC().Format(time.RFC3339)
	}

	result := make(BatchResult, len(req.Rows))
	for i := range req.Rows {
		row := &req.Rows[i]
		entry, changes := m.plan(req, row)
		if batchToken != "" {
			entry.Notes = fmt.Sprintf("%s\n[batch update code: %s]", entry.Notes, batchToken)
		}
		err := m.updateRecord(ctx, row, entry, changes)
		result[row.Key] = err
		if err != nil {
			m.logger.Warnf("error updating %s: %v", row.Key, err)
		}
	}
	return result, nil
}

// plan derives the work log entry and the partial field update for one row
// from the action table.
func (m *Mutator) plan(req *Request, row *core.AlertRow) (core.WorkLogEntry, fieldChanges) {
	entry := core.WorkLogEntry{
		Time:    float64(time.Now().UnixMilli()) / 1000,
		Analyst: req.ActingUser,
		Notes:   req.Notes,
		Data:    map[string]interface{}{},
	}
	var changes fieldChanges

	assigned := core.AlertStatusAssigned
	open := core.AlertStatusOpen
	closed := core.AlertStatusClosed

	switch req.Action {
	case ActionAssign:
		entry.Action = core.WorkLogActionAssign
		if req.Notes == "" {
			entry.Notes = fmt.Sprintf("%s assigned to %s", req.ActingUser, req.Assignee)
		}
		assignee := req.Assignee
		changes.status = &assigned
		changes.analyst = &assignee
	case ActionUnassign:
		entry.Action = core.WorkLogActionOpen
		if req.Notes == "" {
			entry.Notes = fmt.Sprintf("%s unassigned alert", req.ActingUser)
		}
		changes.status = &open
		changes.clearAnalyst = true
	case ActionClose:
		entry.Action = core.WorkLogActionClose
		entry.Data = map[string]interface{}{
			"threat":  req.Threat,
			"actions": req.Actions,
		}
		acting := req.ActingUser
		changes.status = &closed
		changes.analyst = &acting
	case ActionReopen:
		entry.Action = core.WorkLogActionReopen
		acting := req.ActingUser
		changes.status = &open
		changes.analyst = &acting
	case ActionChangeSeverity:
		entry.Action = core.WorkLogActionChangeSeverity
		if req.Notes == "" {
			entry.Notes = fmt.Sprintf("%s changed severity from %s to %s", req.ActingUser, row.Severity, req.NewSeverity)
		}
		severity := req.NewSeverity
		changes.severity = &severity
	case ActionComment:
		// Comment changes no fields; the record's analyst is preserved.
		entry.Action = core.WorkLogActionComment
	}
	return entry, changes
}

// updateRecord performs one record's read-modify-write round trip: fetch,
// conflict check against the observed work log length, prepend the entry,
// apply the partial update, write the full document back.
func (m *Mutator) updateRecord(ctx context.Context, row *core.AlertRow, entry core.WorkLogEntry, changes fieldChanges) error {
	start := time.Now()
	defer func() {
		metrics.MutationDuration.Observe(time.Since(start).Seconds())
	}()

	record, err := m.store.Get(ctx, row.Key)
	if err != nil {
		metrics.MutationFailures.Inc()
		return fmt.Errorf("failed to fetch record: %w", err)
	}

	if len(record.WorkLog) != row.ObservedLogLength() {
		metrics.MutationConflicts.Inc()
		return ErrConflict
	}

	record.PrependWorkLog(entry)
	if changes.status != nil {
		record.Status = *changes.status
	}
	if changes.clearAnalyst {
		record.Analyst = nil
	} else if changes.analyst != nil {
		record.Analyst = changes.analyst
	}
	if changes.severity != nil {
		record.Severity = *changes.severity
	}

	if err := m.store.Put(ctx, row.Key, record); err != nil {
		metrics.MutationFailures.Inc()
		return fmt.Errorf("failed to write record: %w", err)
	}

	metrics.MutationsApplied.WithLabelValues(string(entry.Action)).Inc()
	return nil
}
