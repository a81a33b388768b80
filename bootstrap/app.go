package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alertdesk/api"
	"alertdesk/config"
	"alertdesk/drafts"
	"alertdesk/kvstore"
	"alertdesk/mutate"
	"alertdesk/search"

	"go.uber.org/zap"
)

// App represents the alertdesk service with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	SearchClient *search.Client
	RecordStore  *kvstore.Client
	DraftStore   drafts.Store
	Mutator      *mutate.Mutator
	APIServer    *api.API

	shutdownCh chan struct{}
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{
		shutdownCh: make(chan struct{}),
	}

	cfg, err := InitConfig()
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	logger, sugar, err := InitLogger(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("alertdesk starting...")
	sugar.Infow("Config loaded",
		"search_backend", cfg.SearchBackend.BaseURL,
		"record_store", cfg.RecordStore.BaseURL,
		"collection", cfg.RecordStore.Collection,
		"drafts_backend", cfg.Drafts.Backend)

	searchClient, err := search.NewClient(cfg.SearchBackend.BaseURL, time.Duration(cfg.SearchBackend.Timeout)*time.Second, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search client: %w", err)
	}
	app.SearchClient = searchClient

	app.RecordStore = kvstore.NewClient(
		cfg.RecordStore.BaseURL,
		cfg.RecordStore.Collection,
		time.Duration(cfg.RecordStore.Timeout)*time.Second,
		sugar,
	)

	draftStore, err := initDraftStore(ctx, cfg, sugar)
	if err != nil {
		return nil, err
	}
	app.DraftStore = draftStore

	app.Mutator = mutate.NewMutator(app.RecordStore, sugar)

	return app, nil
}

// initDraftStore builds the configured draft backend. Redis failures fall
// back to the in-memory store so the view stays usable; drafts just stop
// surviving restarts.
func initDraftStore(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (drafts.Store, error) {
	if cfg.Drafts.Backend != "redis" {
		sugar.Info("Using in-memory draft store")
		return drafts.NewMemoryStore(), nil
	}

	store := drafts.NewRedisStore(
		cfg.Drafts.Redis.Addr,
		cfg.Drafts.Redis.Password,
		cfg.Drafts.Redis.DB,
		time.Duration(cfg.Drafts.TTL)*time.Minute,
		sugar,
	)
	if err := store.Ping(ctx); err != nil {
		sugar.Warnf("Redis draft store unreachable, falling back to memory: %v", err)
		return drafts.NewMemoryStore(), nil
	}
	sugar.Infow("Using redis draft store", "addr", cfg.Drafts.Redis.Addr)
	return store, nil
}

// Start starts the API server.
func (a *App) Start(ctx context.Context) error {
	a.APIServer = api.NewAPI(a.SearchClient, a.Mutator, a.DraftStore, a.Config, a.Sugar)

	go func() {
		a.Sugar.Infof("API server listening on %s:%d", a.Config.API.Host, a.Config.API.Port)
		if err := a.APIServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Sugar.Errorf("API server error: %v", err)
		}
	}()
	return nil
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")
	close(a.shutdownCh)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.APIServer != nil {
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorf("API server shutdown error: %v", err)
		}
	}

	if closer, ok := a.DraftStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.Sugar.Errorf("Draft store close error: %v", err)
		}
	}

	_ = a.Logger.Sync()
	a.Sugar.Info("Shutdown complete")
}
