package server

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/civicnav/config"
	"github.com/mohammad-safakhou/civicnav/internal/agent/core"
	"github.com/mohammad-safakhou/civicnav/internal/agent/telemetry"
	"github.com/mohammad-safakhou/civicnav/internal/store"
	"github.com/mohammad-safakhou/civicnav/provider"
	"github.com/mohammad-safakhou/civicnav/session"
	"github.com/mohammad-safakhou/civicnav/tools/web_search"
)

// App holds everything built from a Config. Close releases the external
// connections it opened.
type App struct {
	Config       *config.Config
	Orchestrator *core.Orchestrator
	Archive      *store.Store
	Registry     *prometheus.Registry
	Sessions     session.Store

	redis  *goredis.Client
	logger *log.Logger
}

// Build wires the orchestrator and its backends. The archive is only opened
// when storage.postgres is configured.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		logger:   log.New(log.Writer(), "[APP] ", log.LstdFlags),
	}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	reasoning, err := provider.NewReasoningClient(provider.Client(cfg.LLM.Provider), provider.Options{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning client: %w", err)
	}
	search, err := web_search.NewSearchClient(web_search.Provider(cfg.Search.Provider), web_search.Options{
		APIKey:   cfg.Search.APIKey,
		Endpoint: cfg.Search.Endpoint,
		Timeout:  cfg.Search.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}

	tel, err := telemetry.NewTelemetry(app.Registry)
	if err != nil {
		return nil, err
	}

	opts := session.Options{Capacity: cfg.Session.Capacity, TTL: cfg.Session.TTL, Prefix: cfg.Session.Prefix}
	if cfg.Session.Backend == string(session.RedisStore) {
		app.redis = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Storage.Redis.Addr(),
			Password:     cfg.Storage.Redis.Password,
			DB:           cfg.Storage.Redis.DB,
			DialTimeout:  cfg.Storage.Redis.Timeout,
			ReadTimeout:  cfg.Storage.Redis.Timeout,
			WriteTimeout: cfg.Storage.Redis.Timeout,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		opts.Redis = app.redis
	} else {
		opts.OnEvict = func(id string) { app.logger.Printf("session %s evicted", id) }
	}
	app.Sessions, err = session.NewStore(session.StoreType(cfg.Session.Backend), opts)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	deps := core.Dependencies{
		Reasoning: reasoning,
		Search:    search,
		Sessions:  app.Sessions,
		Telemetry: tel,
	}
	if cfg.Storage.Postgres.Enabled() {
		openCtx := ctx
		if cfg.Storage.Postgres.Timeout > 0 {
			var cancel context.CancelFunc
			openCtx, cancel = context.WithTimeout(ctx, cfg.Storage.Postgres.Timeout)
			defer cancel()
		}
		app.Archive, err = store.NewWithDSN(openCtx, cfg.Storage.Postgres.DSN())
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("archive: %w", err)
		}
		deps.Archive = app.Archive
	}

	app.Orchestrator, err = core.NewOrchestrator(cfg.Pipeline, deps)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases the archive and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Archive != nil {
		errs = append(errs, a.Archive.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
