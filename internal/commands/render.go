package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/dashboard"
)

const (
	colorAccent = "#7D56F4"
	colorGood   = "#04B575"
	colorWarn   = "#FFB86C"
	colorBad    = "#FF5F87"
	colorMuted  = "#6C6C6C"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGood))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarn))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorBad)).Bold(true)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %v\n", labelStyle.Render(fmt.Sprintf("%-22s", label+":")), value)
}

// ratioStyle colors an adherence rate: green from 80%, amber from 50%.
func ratioStyle(r float64) lipgloss.Style {
	switch {
	case r >= 0.8:
		return goodStyle
	case r >= 0.5:
		return warnStyle
	default:
		return badStyle
	}
}

func percent(r float64) string {
	return fmt.Sprintf("%.1f%%", r*100)
}

func renderVolume(w io.Writer, v analytics.VolumeSeries) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Volume %s to %s", v.From.Format("2006-01-02"), v.To.Format("2006-01-02"))))
	if v.Empty {
		fmt.Fprintln(w, labelStyle.Render("  no realized sessions in the window"))
	} else {
		fmt.Fprintf(w, "  %-12s %12s\n", "DATE", "VOLUME (kg)")
		fmt.Fprintln(w, "  "+strings.Repeat("-", 25))
		var total float64
		for _, p := range v.Points {
			fmt.Fprintf(w, "  %-12s %12.1f\n", p.Date, p.Volume)
			total += p.Volume
		}
		fmt.Fprintln(w, "  "+strings.Repeat("-", 25))
		fmt.Fprintf(w, "  %-12s %12.1f\n", "TOTAL", total)
	}
	if len(v.Unresolved) > 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("  %d session(s) reference a deleted plan: %v", len(v.Unresolved), v.Unresolved)))
	}
	renderViolations(w, v.Violations)
}

func renderAdherence(w io.Writer, a analytics.AdherenceSummary) {
	fmt.Fprintln(w, titleStyle.Render("Adherence "+a.Period.String()))
	field(w, "expected", a.Expected)
	field(w, "realized", a.Realized)
	field(w, "missed", a.Missed)
	if a.Pending > 0 {
		field(w, "pending makeup", a.Pending)
	}
	field(w, "rate", ratioStyle(a.Ratio).Render(percent(a.Ratio)))
}

func renderHistory(w io.Writer, history []analytics.AdherenceSummary) {
	fmt.Fprintln(w, titleStyle.Render("Adherence history"))
	fmt.Fprintf(w, "  %-8s %8s %8s %8s %8s\n", "MONTH", "EXPECTED", "DONE", "MISSED", "RATE")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 44))
	for _, a := range history {
		fmt.Fprintf(w, "  %-8s %8d %8d %8d %8s\n", a.Period, a.Expected, a.Realized, a.Missed,
			ratioStyle(a.Ratio).Render(fmt.Sprintf("%7.1f%%", a.Ratio*100)))
	}
}

func renderCredits(w io.Writer, c analytics.CreditSummary) {
	fmt.Fprintln(w, titleStyle.Render("Lesson package"))
	if c.Granted == 0 {
		fmt.Fprintln(w, labelStyle.Render("  no package payments"))
		return
	}
	if c.WindowStart != nil {
		field(w, "since", c.WindowStart.Format("2006-01-02"))
	}
	field(w, "granted", c.Granted)
	field(w, "consumed", c.Consumed)
	remaining := goodStyle.Render(fmt.Sprint(c.Remaining))
	if c.Overdrawn {
		remaining = badStyle.Render(fmt.Sprintf("0 (overdrawn by %d)", c.Deficit))
	}
	field(w, "remaining", remaining)
}

func renderStatus(w io.Writer, s analytics.PaymentState) {
	style := goodStyle
	if s == analytics.PaymentLate {
		style = badStyle
	}
	field(w, "payment status", style.Render(string(s)))
}

func renderViolations(w io.Writer, vs []*analytics.IntegrityError) {
	if len(vs) == 0 {
		return
	}
	fmt.Fprintln(w, badStyle.Render(fmt.Sprintf("  %d session(s) skipped as inconsistent:", len(vs))))
	for _, v := range vs {
		fmt.Fprintf(w, "    #%d %s: %s\n", v.SessionID, v.At.Format("2006-01-02 15:04"), v.Reason)
	}
}

func renderReport(w io.Writer, r dashboard.Report) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (#%d) %s", r.Student.Name, r.Student.ID, r.Period)))
	field(w, "weekly frequency", r.Student.WeeklyFrequency)
	renderStatus(w, r.PaymentStatus)
	fmt.Fprintln(w)
	renderVolume(w, r.Volume)
	fmt.Fprintln(w)
	renderAdherence(w, r.Adherence)
	fmt.Fprintln(w)
	renderHistory(w, r.History)
	fmt.Fprintln(w)
	renderCredits(w, r.Credits)
	if len(r.Violations) > 0 && len(r.Volume.Violations) == 0 {
		fmt.Fprintln(w)
		renderViolations(w, r.Violations)
	}
}

func renderFinance(w io.Writer, f analytics.FinanceReport) {
	fmt.Fprintln(w, titleStyle.Render("Finance "+f.Period.String()))
	field(w, "revenue", fmt.Sprintf("%.2f", f.Revenue))
	field(w, "average ticket", fmt.Sprintf("%.2f", f.AverageTicket))
	field(w, "students", f.TotalStudents)
	field(w, "paid", f.PaidStudents)
	late := fmt.Sprint(f.LateStudents)
	if f.LateStudents > 0 {
		late = badStyle.Render(late)
	}
	field(w, "late", late)
	field(w, "delinquency", percent(f.Delinquency))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-8s %12s\n", "MONTH", "REVENUE")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 21))
	for _, m := range f.History {
		fmt.Fprintf(w, "  %-8s %12.2f\n", m.Period, m.Revenue)
	}
}
