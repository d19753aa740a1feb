package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/claude/freecoach/internal/app"
	"github.com/claude/freecoach/internal/config"
	"github.com/claude/freecoach/internal/snapshot"
)

func newSnapshotCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Copy every record from the source into a SQLite file",
		Long: `snapshot exports students, plans, sessions and payments from the configured
source into a local SQLite file. Point source.kind at sqlite to run reports
from it offline. A failed export leaves the previous snapshot untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.noCache = true
			return opts.withApp(func(ctx context.Context, cmd *cobra.Command, _ []string, a *app.App) error {
				path := out
				if path == "" {
					path = a.Config.Source.SnapshotPath
				}
				if a.Config.Source.Kind == config.SourceSQLite && samePath(path, a.Config.Source.SnapshotPath) {
					return fmt.Errorf("snapshot source and destination are both %s", path)
				}

				store, err := snapshot.Open(path)
				if err != nil {
					return err
				}
				defer store.Close()

				rec, err := snapshot.Export(ctx, a.Source, store, a.Config.Source.Kind, a.Log)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), rec)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, titleStyle.Render("Snapshot written to "+path))
				field(w, "export id", rec.ID)
				field(w, "students", rec.Students)
				field(w, "plans", rec.Plans)
				field(w, "sessions", rec.Sessions)
				field(w, "payments", rec.Payments)
				field(w, "took", rec.FinishedAt.Sub(rec.StartedAt).Round(1e6))
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "destination file (default source.snapshot_path)")
	return cmd
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return aa == bb
}
