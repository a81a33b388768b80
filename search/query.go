package search

import (
	"strings"

	"alertdesk/core"
)

// Lookup queries used to bootstrap the filter vocabulary before the first
// table load.
const (
	QueryFilterOptions    = `| listalerts | fields analyst, type, severity | stats values(*) as "*"`
	QueryAnalystsLookup   = `| inputlookup analysts`
	QuerySeveritiesLookup = `| inputlookup severities`
	QueryCannedQueries    = `| inputlookup canned_queries`
	QueryThreatsToActions = `| inputlookup threats_to_actions | table Threat, Actions`
)

// formatChoices joins a selection set into the comma-separated, quote-escaped
// form embedded in the listing query. An empty selection produces an empty
// string, which the backend treats as "all values".
func formatChoices(selections []string) string {
	return strings.ReplaceAll(strings.Join(selections, ","), `"`, `\"`)
}

// ComposeListQuery builds the pipeline query for the main alert listing from
// the view's current filter selections.
func ComposeListQuery(vs *core.ViewState) string {
	var b strings.Builder
	b.WriteString(`| listalerts json=data`)
	b.WriteString(` status="` + formatChoices(vs.Selections(core.DimensionStatus)) + `"`)
	b.WriteString(` type="` + formatChoices(vs.Selections(core.DimensionType)) + `"`)
	b.WriteString(` analyst="` + formatChoices(vs.Selections(core.DimensionAnalyst)) + `"`)
	b.WriteString(` severity="` + formatChoices(vs.Selections(core.DimensionSeverity)) + `"`)
	b.WriteString(` | table _time, type, severity, entity, status, analyst, data, kv_key`)
	return b.String()
}
