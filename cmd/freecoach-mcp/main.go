package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/claude/freecoach/internal/app"
	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/logging"
	"github.com/claude/freecoach/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (environment only when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	serverURL := flag.String("server", "", "FreeCoach data API URL; overrides the configured source")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("freecoach-mcp", Version)
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *serverURL != "" {
		os.Setenv("FREECOACH_SOURCE_KIND", config.SourceHTTP)
		os.Setenv("FREECOACH_SOURCE_BASE_URL", *serverURL)
	}
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// stdout carries the protocol, so logs go to stderr or the log file.
	log := logging.NewWriter(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if cfg.Log.File != "" {
		lc := cfg.Log
		lc.Stdout = false
		var closer io.Closer
		log, closer = logging.New(lc)
		defer closer.Close()
	}

	a, err := app.Open(context.Background(), cfg, log, app.Options{})
	if err != nil {
		log.Error("failed to open data source", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	log.Info("FreeCoach MCP starting", "version", Version, "source", cfg.Source.Kind)
	if err := mcpserver.ServeStdio(mcp.New(a.Loader, Version, log)); err != nil {
		log.Error("mcp server error", "error", err)
		a.Close()
		os.Exit(1)
	}
}
