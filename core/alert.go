package core

import (
	"encoding/json"
	"fmt"
)

// AlertStatus represents the status of an alert record
type AlertStatus string

const (
	// AlertStatusOpen indicates an alert that no analyst has picked up yet
	AlertStatusOpen AlertStatus = "open"
	// AlertStatusAssigned indicates an alert being worked by an analyst
	AlertStatusAssigned AlertStatus = "assigned"
	// AlertStatusClosed indicates an alert that has been resolved
	AlertStatusClosed AlertStatus = "closed"
)

// AllStatuses lists every status in display order.
var AllStatuses = []AlertStatus{AlertStatusOpen, AlertStatusAssigned, AlertStatusClosed}

// DefaultStatuses is the initial status selection for the table view.
var DefaultStatuses = []string{string(AlertStatusOpen), string(AlertStatusAssigned)}

func (s AlertStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known value
func (s AlertStatus) IsValid() bool {
	switch s {
	case AlertStatusOpen, AlertStatusAssigned, AlertStatusClosed:
		return true
	}
	return false
}

// WorkLogAction is the action tag recorded in a work log entry
type WorkLogAction string

const (
	// WorkLogActionCreate is written when an alert record is first inserted
	WorkLogActionCreate WorkLogAction = "create"
	// WorkLogActionCombine is written when a new occurrence is folded into an existing record
	WorkLogActionCombine WorkLogAction = "combine"
	// WorkLogActionAssign is written when an alert is assigned to an analyst
	WorkLogActionAssign WorkLogAction = "assign"
	// WorkLogActionOpen is written when an alert is unassigned back to open
	WorkLogActionOpen WorkLogAction = "open"
	// WorkLogActionClose is written when an alert is closed
	WorkLogActionClose WorkLogAction = "close"
	// WorkLogActionReopen is written when a closed alert is reopened
	WorkLogActionReopen WorkLogAction = "re-open"
	// WorkLogActionComment is written when notes are added without a state change
	WorkLogActionComment WorkLogAction = "comment"
	// WorkLogActionChangeSeverity is written when the severity is changed
	WorkLogActionChangeSeverity WorkLogAction = "change-severity"
	// WorkLogActionUpdate is written by bulk import/replace tooling
	WorkLogActionUpdate WorkLogAction = "update"
)

// WorkLogEntry is one immutable entry in an alert's history.
// Entries are ordered most-recent-first in AlertRecord.WorkLog.
type WorkLogEntry struct {
	Time    float64                `json:"time"` // epoch seconds
	Action  WorkLogAction          `json:"action"`
	Analyst string                 `json:"analyst"`
	Notes   string                 `json:"notes"`
	Data    map[string]interface{} `json:"data"`
}

// AlertRecord is the full alert document as persisted in the record store,
// keyed externally by an opaque kv_key.
type AlertRecord struct {
	Time     float64                `json:"time"` // event time, epoch seconds
	Type     string                 `json:"type"`
	Entity   string                 `json:"entity"`
	Status   AlertStatus            `json:"status"`
	Severity string                 `json:"severity,omitempty"`
	Analyst  *string                `json:"analyst"` // nil when open
	Data     map[string]interface{} `json:"data"`
	WorkLog  []WorkLogEntry         `json:"work_log"`
	SID      string                 `json:"sid,omitempty"`

	// Display-linking fields carried through from the originating search.
	SearchQuery    string `json:"search_query,omitempty"`
	SearchEarliest string `json:"search_earliest,omitempty"`
	SearchLatest   string `json:"search_latest,omitempty"`
	SearchName     string `json:"search_name,omitempty"`
	SearchOwner    string `json:"search_owner,omitempty"`
	SearchApp      string `json:"search_app,omitempty"`
	ResultsLink    string `json:"results_link,omitempty"`
}

// AnalystName returns the owning analyst or "" when the alert is unassigned.
func (a *AlertRecord) AnalystName() string {
	if a.Analyst == nil {
		return ""
	}
	return *a.Analyst
}

// PrependWorkLog adds an entry at the head of the work log.
// The work log only ever grows; its length is the record's version.
func (a *AlertRecord) PrependWorkLog(entry WorkLogEntry) {
	a.WorkLog = append([]WorkLogEntry{entry}, a.WorkLog...)
}

// ParseAlertRecord decodes a stored alert document.
func ParseAlertRecord(raw []byte) (*AlertRecord, error) {
	var record AlertRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode alert record: %w", err)
	}
	return &record, nil
}
