package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/saferoute/internal/db"
	"github.com/sells-group/saferoute/internal/explain"
	"github.com/sells-group/saferoute/internal/monitoring"
	"github.com/sells-group/saferoute/internal/scoring"
	"github.com/sells-group/saferoute/internal/store"
	anthropicpkg "github.com/sells-group/saferoute/pkg/anthropic"
)

// appEnv holds the initialized store, explanation client and scoring engine
// shared by the serve and CLI commands.
type appEnv struct {
	Store     store.Store
	Routes    *store.Catalogue
	Explainer *explain.Client
	Engine    *scoring.Engine
	Metrics   *monitoring.Metrics // nil outside serve
}

// Close releases resources held by the environment.
func (a *appEnv) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
}

// initApp validates config for mode, opens and migrates the store, loads the
// route catalogue and builds the engine. Callers should defer env.Close().
func initApp(ctx context.Context, mode string, metrics *monitoring.Metrics) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	routes, err := initCatalogue()
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Scoring.Location()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	ex := initExplainer(metrics)

	opts := []scoring.Option{
		scoring.WithLocation(loc),
		scoring.WithConcurrency(cfg.Scoring.Concurrency),
	}
	if ttl := cfg.Cache.ExplanationTTL(); ttl > 0 {
		opts = append(opts, scoring.WithExplanationCache(st, ttl))
	}
	if metrics != nil {
		opts = append(opts, scoring.WithCacheObserver(metrics))
	}

	return &appEnv{
		Store:     st,
		Routes:    routes,
		Explainer: ex,
		Engine:    scoring.New(routes, st, ex, opts...),
		Metrics:   metrics,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initCatalogue() (*store.Catalogue, error) {
	if cfg.Routes.File == "" {
		return store.DefaultCatalogue()
	}
	return store.LoadCatalogue(cfg.Routes.File)
}

// initExplainer builds the quota-managed client. Without an API key the
// client never calls out and serves templated explanations only.
func initExplainer(metrics *monitoring.Metrics) *explain.Client {
	opts := explain.Options{
		Model:       cfg.AI.Model,
		MaxCalls:    cfg.AI.MaxCalls,
		MinInterval: cfg.AI.MinInterval(),
		Timeout:     cfg.AI.Timeout(),
		UseMock:     cfg.AI.UseMock,
	}
	if metrics != nil {
		opts.Recorder = metrics
	}

	var transport explain.Transport
	if cfg.AI.Key != "" {
		temperature := cfg.AI.Temperature
		client := anthropicpkg.NewClient(cfg.AI.Key, anthropicpkg.Options{
			BaseURL: cfg.AI.BaseURL,
			Timeout: cfg.AI.Timeout(),
		})
		transport = explain.NewAnthropicTransport(client, explain.AnthropicConfig{
			Model:       cfg.AI.Model,
			MaxTokens:   int64(cfg.AI.MaxTokens),
			Temperature: &temperature,
		})
	} else {
		zap.L().Info("no AI key configured, using templated explanations")
	}

	return explain.New(transport, opts)
}
