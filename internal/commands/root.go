// Package commands implements the freecoach-report command line.
package commands

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/claude/freecoach/internal/app"
	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	envFile    string
	json       bool
	noCache    bool
	verbose    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "freecoach-report",
		Short: "Training load and adherence reports for personal trainers",
		Long: `freecoach-report computes training volume, monthly adherence, lesson-package
credits and billing status from the configured data source (Postgres, the
REST API or a local SQLite snapshot) and prints them as tables or JSON.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (default config.yaml when present)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output as JSON")
	root.PersistentFlags().BoolVar(&opts.noCache, "no-cache", false, "read the source directly")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at the configured level instead of warnings only")

	root.AddCommand(
		newStudentsCmd(opts),
		newVolumeCmd(opts),
		newAdherenceCmd(opts),
		newCreditsCmd(opts),
		newSessionsCmd(opts),
		newReportCmd(opts),
		newFinanceCmd(opts),
		newSnapshotCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the explicit config file, else config.yaml when it
// exists, else the environment alone.
func (o *options) loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, err
	}
	if o.configPath != "" {
		return config.Load(o.configPath)
	}
	cfg, err := config.Load("config.yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return config.FromEnv()
	}
	return cfg, err
}

func (o *options) logger(cfg *config.Config, stderr io.Writer) (*slog.Logger, io.Closer) {
	lc := cfg.Log
	if !o.verbose {
		lc.Level = "warn"
	}
	if lc.File != "" {
		return logging.New(lc)
	}
	return logging.NewWriter(stderr, lc.Level, lc.Format), io.NopCloser(nil)
}

// withApp opens the configured source around fn.
func (o *options) withApp(fn func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := o.loadConfig()
		if err != nil {
			return err
		}
		log, closer := o.logger(cfg, cmd.ErrOrStderr())
		defer closer.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := app.Open(ctx, cfg, log, app.Options{NoCache: o.noCache})
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil {
				log.Warn("closing source", "error", cerr)
			}
		}()
		return fn(ctx, cmd, args, a)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("freecoach-report %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

