package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertdesk_search_queries_total",
			Help: "Total number of queries issued to the search backend",
		},
		[]string{"kind"},
	)

	SearchQueryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertdesk_search_query_errors_total",
			Help: "Total number of failed search backend queries",
		},
	)

	StaleQueryResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertdesk_stale_query_responses_total",
			Help: "Total number of superseded query responses dropped",
		},
	)

	MutationsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertdesk_mutations_applied_total",
			Help: "Total number of alert record mutations applied",
		},
		[]string{"action"},
	)

	MutationConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertdesk_mutation_conflicts_total",
			Help: "Total number of mutations rejected by the work log length check",
		},
	)

	MutationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertdesk_mutation_failures_total",
			Help: "Total number of mutations dropped by fetch or write errors",
		},
	)

	MutationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alertdesk_mutation_duration_seconds",
			Help:    "Time taken for one record's read-modify-write round trip",
			Buckets: prometheus.DefBuckets,
		},
	)

	LookupCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertdesk_lookup_cache_hits_total",
			Help: "Total number of vocabulary lookup cache hits",
		},
	)

	LookupCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertdesk_lookup_cache_misses_total",
			Help: "Total number of vocabulary lookup cache misses",
		},
	)

	DraftStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertdesk_draft_store_errors_total",
			Help: "Total number of draft store failures",
		},
		[]string{"op"},
	)
)
