package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"tailscale.com/tsnet"

	"github.com/claude/freecoach/internal/app"
	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/dashboard"
	"github.com/claude/freecoach/internal/logging"
	"github.com/claude/freecoach/internal/mcp"
	"github.com/claude/freecoach/internal/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	migrations := flag.String("migrations", "migrations", "migrations directory (postgres source only)")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()
	log.Info("FreeCoach starting", "version", Version, "source", cfg.Source.Kind)

	if err := cfg.ValidateServer(); err != nil && !*migrateOnly {
		log.Error("invalid server config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts app.Options
	if cfg.Source.Kind == config.SourcePostgres {
		opts.MigrationsPath = *migrations
	}
	a, err := app.Open(ctx, cfg, log, opts)
	if err != nil {
		log.Error("failed to open data source", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("close error", "error", err)
		}
	}()

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	if err := run(ctx, cfg, a); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, a *app.App) error {
	log := a.Log

	tracker := dashboard.NewTracker(a.Metrics)
	var inv dashboard.Invalidator
	if a.Cache != nil {
		inv = a.Cache
	}
	refresher := dashboard.NewRefresher(a.Loader, tracker, cfg.Refresh.Interval, inv, a.Metrics, log)

	deps := server.Deps{
		Loader:    a.Loader,
		Tracker:   tracker,
		Refresher: refresher,
		Metrics:   a.Metrics,
		Gatherer:  a.Registry,
		APIKey:    cfg.Auth.APIKey,
		Log:       log,
	}
	if a.Cache != nil {
		deps.Cache = a.Cache
	}

	// Start server on tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			return fmt.Errorf("tsnet start: %w", err)
		}

		lc, err := tsServer.LocalClient()
		if err != nil {
			return multierr.Append(fmt.Errorf("tsnet local client: %w", err), tsServer.Close())
		}
		deps.WhoIs = lc

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			return multierr.Append(fmt.Errorf("tsnet listen: %w", err), tsServer.Close())
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		var err error
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	api := server.New(deps)
	mux := http.NewServeMux()
	var mcpHandler http.Handler = mcpserver.NewStreamableHTTPServer(mcp.New(a.Loader, Version, log))
	if deps.WhoIs != nil {
		mcpHandler = server.TailscaleIdentity(deps.WhoIs, log)(mcpHandler)
	}
	mux.Handle("/mcp", mcpHandler)
	mux.Handle("/", api)

	httpSrv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := refresher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		if tsServer != nil {
			err = multierr.Append(err, tsServer.Close())
		}
		return err
	})
	return g.Wait()
}
