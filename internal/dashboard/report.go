package dashboard

import (
	"time"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/models"
)

// StudentInfo is the subset of the student record shown next to a report.
type StudentInfo struct {
	ID              int64  `json:"id"`
	Name            string `json:"nome"`
	WeeklyFrequency int    `json:"frequencia_semanal_plano"`
	DueDay          int    `json:"dia_vencimento"`
}

// Report is every engine result for one student and month.
type Report struct {
	Student       StudentInfo                  `json:"aluno"`
	Period        analytics.Period             `json:"referencia_mes"`
	GeneratedAt   time.Time                    `json:"generated_at"`
	Volume        analytics.VolumeSeries       `json:"volume"`
	Adherence     analytics.AdherenceSummary   `json:"adesao"`
	History       []analytics.AdherenceSummary `json:"historico_adesao"`
	Credits       analytics.CreditSummary      `json:"creditos"`
	PaymentStatus analytics.PaymentState       `json:"status_financeiro"`
	Violations    []*analytics.IntegrityError  `json:"violations,omitempty"`
}

// WeeklyFrequency is the student's planned sessions per week, or the
// configured default when the record has none.
func (l *Loader) WeeklyFrequency(st models.Student) int {
	if st.WeeklyFrequency > 0 {
		return st.WeeklyFrequency
	}
	return l.settings.DefaultWeeklyFrequency
}

// Volume runs the volume aggregator over the snapshot. days <= 0 uses the
// configured window.
func (l *Loader) Volume(s *Snapshot, days int) analytics.VolumeSeries {
	if days <= 0 {
		days = l.settings.WindowDays
	}
	return analytics.AggregateLedgerVolume(s.Plans, s.Ledger, analytics.VolumeOptions{WindowDays: days, Now: s.LoadedAt})
}

// Adherence computes the adherence summary for period.
func (l *Loader) Adherence(s *Snapshot, period analytics.Period) analytics.AdherenceSummary {
	extra := analytics.PackageCreditsFor(s.Payments, period)
	expected := analytics.ExpectedSessions(period, l.WeeklyFrequency(s.Student), extra, s.LoadedAt, l.settings.Prorate)
	return analytics.Adherence(analytics.AdherenceInput{Period: period, Expected: expected, Policy: l.settings.Policy}, s.Ledger)
}

// AdherenceHistory computes months of adherence ending at period.
func (l *Loader) AdherenceHistory(s *Snapshot, period analytics.Period, months int) []analytics.AdherenceSummary {
	if months <= 0 {
		months = l.settings.HistoryMonths
	}
	return analytics.AdherenceHistory(analytics.HistoryInput{
		End:             period,
		Months:          months,
		WeeklyFrequency: l.WeeklyFrequency(s.Student),
		Payments:        s.Payments,
		Policy:          l.settings.Policy,
		AsOf:            s.LoadedAt,
		Prorate:         l.settings.Prorate,
	}, s.Ledger)
}

// Credits computes the lesson-package balance.
func (l *Loader) Credits(s *Snapshot) analytics.CreditSummary {
	return analytics.Credits(s.Payments, s.Ledger, analytics.CreditOptions{})
}

// Report runs every computation over s for period. It does no I/O, so
// calling it again on the same snapshot gives the same result.
func (l *Loader) Report(s *Snapshot, period analytics.Period) Report {
	return Report{
		Student: StudentInfo{
			ID:              s.Student.ID,
			Name:            s.Student.Name,
			WeeklyFrequency: l.WeeklyFrequency(s.Student),
			DueDay:          s.Student.DueDay,
		},
		Period:        period,
		GeneratedAt:   s.LoadedAt,
		Volume:        l.Volume(s, 0),
		Adherence:     l.Adherence(s, period),
		History:       l.AdherenceHistory(s, period, 0),
		Credits:       l.Credits(s),
		PaymentStatus: analytics.PaymentStatus(s.Payments, period),
		Violations:    s.Ledger.Violations,
	}
}
