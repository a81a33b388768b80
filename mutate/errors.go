package mutate

import "errors"

// Mutation protocol error constants
var (
	// ErrConflict is returned when the stored work log length no longer
	// matches the length observed when the row was loaded
	ErrConflict = errors.New("alert has been updated by another user")

	// ErrMixedStatuses is returned when a batch mixes closed and non-closed
	// alerts, since the available actions depend on the status
	ErrMixedStatuses = errors.New("batch update is not allowed if alerts have closed and non-closed status")

	// ErrNoRows is returned when a request names no rows
	ErrNoRows = errors.New("no alerts to update")

	// ErrUnknownAction is returned for an unrecognized action
	ErrUnknownAction = errors.New("unknown action")

	// ErrMissingAssignee is returned when assign has no target analyst
	ErrMissingAssignee = errors.New("assign requires an analyst")

	// ErrMissingSeverity is returned when change-severity has no new value
	ErrMissingSeverity = errors.New("change-severity requires a severity")

	// ErrMissingThreat is returned when close has no threat selection
	ErrMissingThreat = errors.New("close requires a threat selection")

	// ErrMissingActions is returned when close has no remediation actions
	ErrMissingActions = errors.New("close requires at least one action")

	// ErrMissingNotes is returned when comment has empty notes
	ErrMissingNotes = errors.New("comment requires notes")
)
