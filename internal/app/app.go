// Package app wires configuration into a ready data source, cache, metrics
// registry and loader. The server, MCP and report binaries share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/dashboard"
	"github.com/claude/freecoach/internal/metrics"
	"github.com/claude/freecoach/internal/snapshot"
	"github.com/claude/freecoach/internal/source"
	"github.com/claude/freecoach/internal/storage"
)

// App holds the process-wide collaborators built from a Config.
type App struct {
	Config   *config.Config
	Log      *slog.Logger
	Source   source.DataSource
	Cache    *source.Cache
	Loader   *dashboard.Loader
	Metrics  *metrics.Manager
	Registry *prometheus.Registry

	closers []func() error
}

// Options adjusts Open.
type Options struct {
	// MigrationsPath, when set, applies migrations before connecting to
	// Postgres.
	MigrationsPath string
	// NoCache reads the source directly.
	NoCache bool
}

// Open connects the configured source and builds the loader on top of it.
// Callers must Close the App.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Metrics:  metrics.NewManager("freecoach", "engine", reg),
	}

	src, err := a.openSource(ctx, opts)
	if err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	a.Source = src

	if !opts.NoCache && cfg.Cache.SizeMB > 0 {
		a.Cache = source.NewCache(src, cfg.Cache.SizeMB, cfg.Cache.TTL, log)
		a.Metrics.RegisterCache(a.Cache)
		a.Source = a.Cache
	}

	a.Loader = dashboard.NewLoader(a.Source, dashboard.Settings{
		WindowDays:             cfg.Analytics.VolumeWindowDays,
		DefaultWeeklyFrequency: cfg.Analytics.DefaultWeeklyFrequency,
		Policy:                 cfg.MakeupPolicy(),
		Prorate:                cfg.Analytics.ProrateExpected,
		HistoryMonths:          dashboard.DefaultHistoryMonths,
	}, a.Metrics, log)
	return a, nil
}

func (a *App) openSource(ctx context.Context, opts Options) (source.DataSource, error) {
	cfg := a.Config
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		dsn := cfg.Database.DSN()
		if opts.MigrationsPath != "" {
			if err := storage.RunMigrations(dsn, opts.MigrationsPath); err != nil {
				return nil, fmt.Errorf("migrating: %w", err)
			}
			a.Log.Info("migrations applied")
		}
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connecting database: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		a.Log.Info("database connected", "host", cfg.Database.Host, "name", cfg.Database.Name)
		return db, nil
	case config.SourceHTTP:
		a.Log.Info("using remote API", "base_url", cfg.Source.BaseURL)
		return source.NewHTTPClient(cfg.Source.BaseURL, cfg.Source.Timeout), nil
	case config.SourceSQLite:
		store, err := snapshot.Open(cfg.Source.SnapshotPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.Log.Info("using snapshot", "path", cfg.Source.SnapshotPath)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// Close releases the source connections.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
