package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/app"
	"github.com/claude/freecoach/internal/dashboard"
)

func parseStudentID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid student id %q", raw)
	}
	return id, nil
}

func parseMonth(raw string) (analytics.Period, error) {
	if raw == "" {
		return analytics.Period{}, nil
	}
	return analytics.ParsePeriod(raw)
}

func newStudentsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "students",
		Short: "List students",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, _ []string, a *app.App) error {
			students, err := a.Source.ListStudents(ctx)
			if err != nil {
				return err
			}
			infos := make([]dashboard.StudentInfo, 0, len(students))
			for _, st := range students {
				infos = append(infos, dashboard.StudentInfo{
					ID:              st.ID,
					Name:            st.Name,
					WeeklyFrequency: a.Loader.WeeklyFrequency(st),
					DueDay:          st.DueDay,
				})
			}
			w := cmd.OutOrStdout()
			if opts.json {
				return printJSON(w, infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(w, "No students found.")
				return nil
			}
			fmt.Fprintf(w, "%-6s %-32s %-10s %s\n", "ID", "NAME", "PER WEEK", "DUE DAY")
			fmt.Fprintln(w, strings.Repeat("-", 60))
			for _, st := range infos {
				name := st.Name
				if len(name) > 30 {
					name = name[:27] + "..."
				}
				fmt.Fprintf(w, "%-6d %-32s %-10d %d\n", st.ID, name, st.WeeklyFrequency, st.DueDay)
			}
			return nil
		}),
	}
}

func newVolumeCmd(opts *options) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "volume <student-id>",
		Short: "Daily training volume over a trailing window",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
			id, err := parseStudentID(args[0])
			if err != nil {
				return err
			}
			if days < 0 {
				return fmt.Errorf("--days must be positive")
			}
			snap, err := a.Loader.Load(ctx, id, dashboard.LoadOptions{WindowDays: days})
			if err != nil {
				return err
			}
			series := a.Loader.Volume(snap, days)
			if opts.json {
				return printJSON(cmd.OutOrStdout(), series)
			}
			renderVolume(cmd.OutOrStdout(), series)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&days, "days", "d", 0, "window length in days (default from config)")
	return cmd
}

func newAdherenceCmd(opts *options) *cobra.Command {
	var (
		month   string
		history int
	)
	cmd := &cobra.Command{
		Use:   "adherence <student-id>",
		Short: "Expected vs realized sessions for a month",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
			id, err := parseStudentID(args[0])
			if err != nil {
				return err
			}
			period, err := parseMonth(month)
			if err != nil {
				return err
			}
			if history < 0 {
				return fmt.Errorf("--history must be positive")
			}
			snap, err := a.Loader.Load(ctx, id, dashboard.LoadOptions{Period: period, HistoryMonths: max(history, 1)})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if history > 0 {
				hist := a.Loader.AdherenceHistory(snap, snap.Period, history)
				if opts.json {
					return printJSON(w, hist)
				}
				renderHistory(w, hist)
				return nil
			}
			sum := a.Loader.Adherence(snap, snap.Period)
			if opts.json {
				return printJSON(w, sum)
			}
			renderAdherence(w, sum)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "month as MM/YYYY (default current month)")
	cmd.Flags().IntVar(&history, "history", 0, "show this many months ending at --month")
	return cmd
}

func newCreditsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "credits <student-id>",
		Short: "Lesson-package balance",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
			id, err := parseStudentID(args[0])
			if err != nil {
				return err
			}
			snap, err := a.Loader.Load(ctx, id, dashboard.LoadOptions{})
			if err != nil {
				return err
			}
			credits := a.Loader.Credits(snap)
			if opts.json {
				return printJSON(cmd.OutOrStdout(), credits)
			}
			renderCredits(cmd.OutOrStdout(), credits)
			return nil
		}),
	}
}

func newReportCmd(opts *options) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "report <student-id>",
		Short: "Full report for one student and month",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
			id, err := parseStudentID(args[0])
			if err != nil {
				return err
			}
			period, err := parseMonth(month)
			if err != nil {
				return err
			}
			snap, err := a.Loader.Load(ctx, id, dashboard.LoadOptions{Period: period})
			if err != nil {
				return err
			}
			report := a.Loader.Report(snap, snap.Period)
			if opts.json {
				return printJSON(cmd.OutOrStdout(), report)
			}
			renderReport(cmd.OutOrStdout(), report)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "month as MM/YYYY (default current month)")
	return cmd
}

func newSessionsCmd(opts *options) *cobra.Command {
	var (
		month  string
		status string
	)
	cmd := &cobra.Command{
		Use:   "sessions <student-id>",
		Short: "Classified sessions for a month",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
			id, err := parseStudentID(args[0])
			if err != nil {
				return err
			}
			period, err := parseMonth(month)
			if err != nil {
				return err
			}
			var kind analytics.OutcomeKind
			if status != "" {
				k, ok := analytics.ParseOutcomeKind(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				kind = k
			}
			snap, err := a.Loader.Load(ctx, id, dashboard.LoadOptions{Period: period, HistoryMonths: 1})
			if err != nil {
				return err
			}
			entries := snap.Ledger.Between(snap.Period.Start(), snap.Period.End())
			if kind != 0 {
				filtered := entries[:0]
				for _, e := range entries {
					if e.Kind == kind {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}

			w := cmd.OutOrStdout()
			if opts.json {
				return printJSON(w, entries)
			}
			fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Sessions %s", snap.Period)))
			fmt.Fprintf(w, "  %-6s %-17s %-22s %s\n", "ID", "WHEN", "OUTCOME", "NOTE")
			fmt.Fprintln(w, "  "+strings.Repeat("-", 70))
			for _, e := range entries {
				fmt.Fprintf(w, "  %-6d %-17s %-22s %s\n", e.Session.ID, e.Session.Time.Format("2006-01-02 15:04"), e.Kind, e.Session.Note())
			}
			renderViolations(w, snap.Ledger.Violations)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "month as MM/YYYY (default current month)")
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by outcome (realized, missed_with_makeup, missed_without_makeup)")
	return cmd
}

func newFinanceCmd(opts *options) *cobra.Command {
	var (
		month  string
		months int
	)
	cmd := &cobra.Command{
		Use:   "finance",
		Short: "Studio-wide billing summary",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, _ []string, a *app.App) error {
			period, err := parseMonth(month)
			if err != nil {
				return err
			}
			if period == (analytics.Period{}) {
				period = analytics.PeriodOf(timeNow())
			}
			if months <= 0 {
				return fmt.Errorf("--months must be positive")
			}
			report, err := a.Loader.Finance(ctx, period, months)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), report)
			}
			renderFinance(cmd.OutOrStdout(), report)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "month as MM/YYYY (default current month)")
	cmd.Flags().IntVar(&months, "months", analytics.DefaultRevenueMonths, "revenue history length")
	return cmd
}
