// Package api exposes the triage view over HTTP: the paginated alert table,
// the filter/sort/pagination operations, the record mutation actions, and
// the per-row draft state.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"alertdesk/config"
	"alertdesk/drafts"
	"alertdesk/mutate"
	"alertdesk/view"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// API holds the HTTP server and the per-session view controllers.
type API struct {
	router         *mux.Router
	server         *http.Server
	backend        view.Backend
	mutator        *mutate.Mutator
	draftStore     drafts.Store
	config         *config.Config
	logger         *zap.SugaredLogger
	validate       *validator.Validate
	sessions       map[string]*session
	sessionsMu     sync.Mutex
	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
}

// NewAPI creates the API server.
func NewAPI(backend view.Backend, mutator *mutate.Mutator, draftStore drafts.Store, cfg *config.Config, logger *zap.SugaredLogger) *API {
	a := &API{
		router:       mux.NewRouter(),
		backend:      backend,
		mutator:      mutator,
		draftStore:   draftStore,
		config:       cfg,
		logger:       logger,
		validate:     validator.New(),
		sessions:     make(map[string]*session),
		rateLimiters: make(map[string]*rateLimiterEntry),
		stopCh:       make(chan struct{}),
	}
	a.setupRoutes()
	go a.cleanupLoop()
	return a
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.rateLimitMiddleware)

	a.router.HandleFunc("/api/alerts", a.getAlerts).Methods("GET")
	a.router.HandleFunc("/api/alerts/options", a.getOptions).Methods("GET")
	a.router.HandleFunc("/api/alerts/actions", a.applyAction).Methods("POST")
	a.router.HandleFunc("/api/alerts/{key}/draft", a.getDraft).Methods("GET")
	a.router.HandleFunc("/api/alerts/{key}/draft", a.putDraft).Methods("PUT")
	a.router.HandleFunc("/api/alerts/{key}/draft", a.deleteDraft).Methods("DELETE")
	a.router.HandleFunc("/api/alerts/{key}/expand", a.toggleExpand).Methods("POST")

	a.router.HandleFunc("/api/view/filters", a.setFilter).Methods("POST")
	a.router.HandleFunc("/api/view/time-range", a.setTimeRange).Methods("POST")
	a.router.HandleFunc("/api/view/display-filter", a.setDisplayFilter).Methods("POST")
	a.router.HandleFunc("/api/view/sort", a.sortRows).Methods("POST")
	a.router.HandleFunc("/api/view/page", a.setPage).Methods("POST")
	a.router.HandleFunc("/api/view/page-size", a.setPageSize).Methods("POST")
	a.router.HandleFunc("/api/view/refresh", a.refresh).Methods("POST")

	a.router.HandleFunc("/api/warnings", a.getWarnings).Methods("GET")
	a.router.HandleFunc("/api/warnings", a.dismissWarnings).Methods("DELETE")

	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler())

	// Preflight requests are answered by the CORS middleware; this route
	// only exists so they reach the middleware chain at all.
	a.router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// Start starts the API server.
func (a *API) Start() error {
	a.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.config.API.Host, a.config.API.Port),
		Handler: a.router,
	}
	return a.server.ListenAndServe()
}

// Stop stops the API server.
func (a *API) Stop(ctx context.Context) error {
	close(a.stopCh)
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}

// Handler returns the router, for tests.
func (a *API) Handler() http.Handler {
	return a.router
}

// clientIP extracts the remote address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
