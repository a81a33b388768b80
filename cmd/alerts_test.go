package cmd

import (
	"strings"
	"testing"

	"alertdesk/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseAlertCSV tests record construction from a CSV export
func TestParseAlertCSV(t *testing.T) {
	csv := strings.Join([]string{
		`time,type,entity,severity,src_ip`,
		`1700000000.5,beaconing,host-a,high,203.0.113.7`,
		`1700000100,exfil,host-b,,198.51.100.9`,
	}, "\n")

	records, parseErrors, err := parseAlertCSV(strings.NewReader(csv), "importer")
	require.NoError(t, err)
	assert.Empty(t, parseErrors)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, 1700000000.5, first.Time)
	assert.Equal(t, "beaconing", first.Type)
	assert.Equal(t, "host-a", first.Entity)
	assert.Equal(t, "high", first.Severity)
	assert.Equal(t, core.AlertStatusOpen, first.Status)
	assert.Nil(t, first.Analyst)
	assert.Equal(t, "203.0.113.7", first.Data["src_ip"])

	require.Len(t, first.WorkLog, 1)
	assert.Equal(t, core.WorkLogActionCreate, first.WorkLog[0].Action)
	assert.Equal(t, "importer", first.WorkLog[0].Analyst)

	assert.Empty(t, records[1].Severity)
}

// TestParseAlertCSV_DataColumn tests that a JSON data column merges with the
// extra columns
func TestParseAlertCSV_DataColumn(t *testing.T) {
	csv := strings.Join([]string{
		`time,type,entity,data,dest_port`,
		`1700000000,beaconing,host-a,"{""src_ip"": ""203.0.113.7""}",443`,
	}, "\n")

	records, parseErrors, err := parseAlertCSV(strings.NewReader(csv), "importer")
	require.NoError(t, err)
	assert.Empty(t, parseErrors)
	require.Len(t, records, 1)

	assert.Equal(t, "203.0.113.7", records[0].Data["src_ip"])
	assert.Equal(t, "443", records[0].Data["dest_port"])
}

// TestParseAlertCSV_BadRowsReported tests that invalid rows are skipped and
// reported without failing the import
func TestParseAlertCSV_BadRowsReported(t *testing.T) {
	csv := strings.Join([]string{
		`time,type,entity`,
		`not-a-number,beaconing,host-a`,
		`1700000000,,host-b`,
		`1700000100,exfil,host-c`,
	}, "\n")

	records, parseErrors, err := parseAlertCSV(strings.NewReader(csv), "importer")
	require.NoError(t, err)
	assert.Len(t, parseErrors, 2)
	require.Len(t, records, 1)
	assert.Equal(t, "exfil", records[0].Type)
}

// TestParseAlertCSV_MissingRequiredColumn tests header validation
func TestParseAlertCSV_MissingRequiredColumn(t *testing.T) {
	_, _, err := parseAlertCSV(strings.NewReader("time,type\n1,x"), "importer")
	assert.ErrorContains(t, err, `missing required column "entity"`)
}

// TestValidateFilePath tests traversal rejection
func TestValidateFilePath(t *testing.T) {
	assert.Error(t, validateFilePath("../outside.csv"))
	assert.Error(t, validateFilePath("dir/../../outside.csv"))
	assert.NoError(t, validateFilePath("export.csv"))
	assert.NoError(t, validateFilePath("data/export.csv"))
}
