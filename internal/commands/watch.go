package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude/freecoach/internal/app"
	"github.com/claude/freecoach/internal/dashboard"
)

var timeNow = time.Now

func newWatchCmd(opts *options) *cobra.Command {
	var (
		interval time.Duration
		month    string
	)
	cmd := &cobra.Command{
		Use:   "watch <student-id>",
		Short: "Reprint a student's report whenever it is refreshed",
		Long: `watch loads the student's report, then reloads it on every interval and on
SIGUSR1, printing each new result. Stop it with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
			id, err := parseStudentID(args[0])
			if err != nil {
				return err
			}
			period, err := parseMonth(month)
			if err != nil {
				return err
			}
			if interval == 0 {
				interval = a.Config.Refresh.Interval
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			tracker := dashboard.NewTracker(a.Metrics)
			var inv dashboard.Invalidator
			if a.Cache != nil {
				inv = a.Cache
			}
			r := dashboard.NewRefresher(a.Loader, tracker, interval, inv, a.Metrics, a.Log)
			r.SetOptions(func() dashboard.LoadOptions { return dashboard.LoadOptions{Period: period} })

			w := cmd.OutOrStdout()
			r.OnUpdate = func(s *dashboard.Snapshot) {
				report := a.Loader.Report(s, s.Period)
				if opts.json {
					printJSON(w, report)
					return
				}
				fmt.Fprintln(w, labelStyle.Render(fmt.Sprintf("--- %s (generation %d)", s.LoadedAt.Format(time.DateTime), s.Generation)))
				renderReport(w, report)
				fmt.Fprintln(w)
			}

			usr1 := make(chan os.Signal, 1)
			signal.Notify(usr1, syscall.SIGUSR1)
			defer signal.Stop(usr1)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-usr1:
						r.Trigger()
					}
				}
			}()

			tracker.Select(id)
			r.Trigger()
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}),
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "refresh interval (default refresh.interval)")
	cmd.Flags().StringVarP(&month, "month", "m", "", "month as MM/YYYY (default current month)")
	return cmd
}
