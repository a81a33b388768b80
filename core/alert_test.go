package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAlertStatus_IsValid tests status validation
func TestAlertStatus_IsValid(t *testing.T) {
	assert.True(t, AlertStatusOpen.IsValid())
	assert.True(t, AlertStatusAssigned.IsValid())
	assert.True(t, AlertStatusClosed.IsValid())
	assert.False(t, AlertStatus("resolved").IsValid())
	assert.False(t, AlertStatus("").IsValid())
}

// TestAlertRecord_AnalystName tests the nil-safe analyst accessor
func TestAlertRecord_AnalystName(t *testing.T) {
	record := &AlertRecord{}
	assert.Equal(t, "", record.AnalystName())

	name := "alice"
	record.Analyst = &name
	assert.Equal(t, "alice", record.AnalystName())
}

// TestAlertRecord_PrependWorkLog tests that new entries land at the head and
// the log only grows
func TestAlertRecord_PrependWorkLog(t *testing.T) {
	record := &AlertRecord{
		WorkLog: []WorkLogEntry{{Action: WorkLogActionCreate}},
	}

	record.PrependWorkLog(WorkLogEntry{Action: WorkLogActionAssign})
	record.PrependWorkLog(WorkLogEntry{Action: WorkLogActionClose})

	require.Len(t, record.WorkLog, 3)
	assert.Equal(t, WorkLogActionClose, record.WorkLog[0].Action)
	assert.Equal(t, WorkLogActionAssign, record.WorkLog[1].Action)
	assert.Equal(t, WorkLogActionCreate, record.WorkLog[2].Action)
}

// TestParseAlertRecord tests decoding a stored document
func TestParseAlertRecord(t *testing.T) {
	raw := `{
		"time": 1700000000.5,
		"type": "beaconing",
		"entity": "host-a",
		"status": "assigned",
		"severity": "high",
		"analyst": "alice",
		"data": {"src_ip": "203.0.113.7"},
		"work_log": [
			{"time": 1700000100, "action": "assign", "analyst": "alice", "notes": "bob assigned to alice"},
			{"time": 1700000000, "action": "create", "analyst": "scheduler"}
		],
		"sid": "sid-42"
	}`

	record, err := ParseAlertRecord([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, 1700000000.5, record.Time)
	assert.Equal(t, "beaconing", record.Type)
	assert.Equal(t, AlertStatusAssigned, record.Status)
	assert.Equal(t, "alice", record.AnalystName())
	assert.Len(t, record.WorkLog, 2)
	assert.Equal(t, WorkLogActionAssign, record.WorkLog[0].Action)
	assert.Equal(t, "203.0.113.7", record.Data["src_ip"])
}

// TestParseAlertRecord_NullAnalyst tests that the JSON null analyst of an
// open alert round-trips as nil
func TestParseAlertRecord_NullAnalyst(t *testing.T) {
	record, err := ParseAlertRecord([]byte(`{"type":"x","status":"open","analyst":null}`))
	require.NoError(t, err)
	assert.Nil(t, record.Analyst)
}

// TestParseAlertRecord_Invalid tests the decode error path
func TestParseAlertRecord_Invalid(t *testing.T) {
	_, err := ParseAlertRecord([]byte("not json"))
	assert.Error(t, err)
}
