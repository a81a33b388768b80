package core

import (
	"sort"
	"strings"
)

// AlertRow is one row of the table listing as returned by the search backend.
// Data carries the full record serialized as JSON; the work log length
// observed here is what the mutation protocol checks against before writing.
type AlertRow struct {
	Time     float64 `json:"_time"`
	Type     string  `json:"type"`
	Severity string  `json:"severity"`
	Entity   string  `json:"entity"`
	Status   string  `json:"status"`
	Analyst  string  `json:"analyst"`
	Data     string  `json:"data"`
	Key      string  `json:"kv_key"`
}

// Record decodes the serialized alert document carried by the row.
func (r *AlertRow) Record() (*AlertRecord, error) {
	return ParseAlertRecord([]byte(r.Data))
}

// ObservedLogLength returns the work log length as loaded into this row,
// or 0 if the payload cannot be decoded.
func (r *AlertRow) ObservedLogLength() int {
	record, err := r.Record()
	if err != nil {
		return 0
	}
	return len(record.WorkLog)
}

// FilterRows keeps rows whose serialized payload contains the display filter,
// case-insensitively. An empty filter keeps everything.
func FilterRows(rows []AlertRow, displayFilter string) []AlertRow {
	if displayFilter == "" {
		return rows
	}
	needle := strings.ToLower(displayFilter)
	filtered := make([]AlertRow, 0, len(rows))
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Data), needle) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// SortRows sorts rows in place by the given column key and direction.
// The time column compares numerically, everything else as strings.
func SortRows(rows []AlertRow, key, dir string) {
	asc := dir != "desc"
	sort.SliceStable(rows, func(i, j int) bool {
		var less bool
		switch key {
		case "_time":
			less = rows[i].Time < rows[j].Time
		case "type":
			less = rows[i].Type < rows[j].Type
		case "severity":
			less = rows[i].Severity < rows[j].Severity
		case "entity":
			less = rows[i].Entity < rows[j].Entity
		case "status":
			less = rows[i].Status < rows[j].Status
		case "analyst":
			less = rows[i].Analyst < rows[j].Analyst
		default:
			less = rows[i].Key < rows[j].Key
		}
		if asc {
			return less
		}
		return !less
	})
}

// PageRows returns the window of rows for the given 1-based page number.
func PageRows(rows []AlertRow, pageNum, pageSize int) []AlertRow {
	if pageSize <= 0 {
		return nil
	}
	maxPage := PageCount(len(rows), pageSize)
	if pageNum < 1 {
		pageNum = 1
	}
	if maxPage > 0 && pageNum > maxPage {
		pageNum = maxPage
	}
	start := (pageNum - 1) * pageSize
	if start >= len(rows) {
		return nil
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// PageCount returns the number of pages needed for total rows.
func PageCount(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// MixedClosedStatuses reports whether the rows contain both closed and
// non-closed alerts. Batch updates are refused in that case since the
// available actions depend on the status.
func MixedClosedStatuses(rows []AlertRow) bool {
	var closed, open bool
	for _, row := range rows {
		if row.Status == string(AlertStatusClosed) {
			closed = true
		} else {
			open = true
		}
		if closed && open {
			return true
		}
	}
	return false
}
