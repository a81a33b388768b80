package search

import (
	"context"
	"encoding/json"
	"strings"

	"alertdesk/core"

	"go.uber.org/zap"
)

// LookupSearcher is the subset of the client used by the vocabulary bootstrap.
type LookupSearcher interface {
	Lookup(ctx context.Context, query string) ([]json.RawMessage, error)
}

// Vocabulary holds the filter options and mutation inputs loaded before the
// first table query. The listing is gated on this bootstrap so the view never
// renders with an incomplete filter set.
type Vocabulary struct {
	// Distinct values present on stored alerts, for the filter dropdowns.
	Types      []string `json:"types"`
	Severities []string `json:"severities"`
	Analysts   []string `json:"analysts"`

	// Configured value sets, for the mutation controls.
	AllAnalysts   []string `json:"all_analysts"`
	AllSeverities []string `json:"all_severities"`

	// CannedQueries maps alert type to its follow-up search link.
	CannedQueries map[string]core.CannedQuery `json:"canned_queries"`

	// ThreatsToActions maps a threat classification to the remediation
	// actions allowed when closing with that threat.
	ThreatsToActions map[string][]string `json:"threats_to_actions"`
}

// BootstrapVocabulary loads every lookup the view depends on. Failures and
// empty results degrade to empty option sets; each is reported as a warning
// rather than blocking the view.
func BootstrapVocabulary(ctx context.Context, searcher LookupSearcher, logger *zap.SugaredLogger) (*Vocabulary, []string) {
	vocab := &Vocabulary{
		CannedQueries:    make(map[string]core.CannedQuery),
		ThreatsToActions: make(map[string][]string),
	}
	var warnings []string
	warn := func(msg string) {
		logger.Warnf("vocabulary bootstrap: %s", msg)
		warnings = append(warnings, msg)
	}

	if results, err := searcher.Lookup(ctx, QueryFilterOptions); err != nil || len(results) == 0 {
		warn("unable to retrieve filter options")
	} else {
		var options struct {
			Analyst  stringSet `json:"analyst"`
			Type     stringSet `json:"type"`
			Severity stringSet `json:"severity"`
		}
		if err := json.Unmarshal(results[0], &options); err != nil {
			warn("unable to decode filter options")
		} else {
			vocab.Analysts = options.Analyst
			vocab.Types = options.Type
			vocab.Severities = options.Severity
		}
	}

	if results, err := searcher.Lookup(ctx, QueryAnalystsLookup); err != nil || len(results) == 0 {
		warn("no analysts found")
	} else {
		for _, raw := range results {
			var row struct {
				Analyst string `json:"analyst"`
			}
			if json.Unmarshal(raw, &row) == nil && row.Analyst != "" {
				vocab.AllAnalysts = append(vocab.AllAnalysts, row.Analyst)
			}
		}
	}

	if results, err := searcher.Lookup(ctx, QuerySeveritiesLookup); err != nil || len(results) == 0 {
		warn("no severities found")
	} else {
		for _, raw := range results {
			var row struct {
				Severity string `json:"severity"`
			}
			if json.Unmarshal(raw, &row) == nil && row.Severity != "" {
				vocab.AllSeverities = append(vocab.AllSeverities, row.Severity)
			}
		}
	}

	if results, err := searcher.Lookup(ctx, QueryCannedQueries); err != nil || len(results) == 0 {
		warn("no canned queries found")
	} else {
		for _, raw := range results {
			var canned core.CannedQuery
			if json.Unmarshal(raw, &canned) == nil && canned.Type != "" {
				vocab.CannedQueries[canned.Type] = canned
			}
		}
	}

	if results, err := searcher.Lookup(ctx, QueryThreatsToActions); err != nil || len(results) == 0 {
		warn("no threats_to_actions found")
	} else {
		for _, raw := range results {
			var row struct {
				Threat  string `json:"Threat"`
				Actions string `json:"Actions"`
			}
			if json.Unmarshal(raw, &row) == nil && row.Threat != "" {
				vocab.ThreatsToActions[row.Threat] = splitActions(row.Actions)
			}
		}
	}

	return vocab, warnings
}

// ActionsForThreat returns the allowed remediation actions for a threat.
func (v *Vocabulary) ActionsForThreat(threat string) []string {
	return v.ThreatsToActions[threat]
}

func splitActions(actions string) []string {
	parts := strings.Split(actions, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stringSet accepts either a single string or an array of strings, since the
// stats lookup collapses single values.
type stringSet []string

func (s *stringSet) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*s = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*s = []string{one}
	return nil
}
