// Package dashboard loads a student's records from a data source, runs the
// analytics engine over them and keeps the selected student's results
// current.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/metrics"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/source"
)

// DefaultHistoryMonths is how many months the adherence trend covers.
const DefaultHistoryMonths = 6

// Settings are the analytics defaults applied to every report.
type Settings struct {
	WindowDays             int
	DefaultWeeklyFrequency int
	Policy                 analytics.MakeupPolicy
	Prorate                bool
	HistoryMonths          int
}

// Loader fetches records and builds reports. It is safe for concurrent use.
type Loader struct {
	src      source.DataSource
	settings Settings
	metrics  *metrics.Manager
	log      *slog.Logger
	now      func() time.Time
}

// NewLoader creates a Loader. m may be nil.
func NewLoader(src source.DataSource, settings Settings, m *metrics.Manager, log *slog.Logger) *Loader {
	if settings.WindowDays <= 0 {
		settings.WindowDays = analytics.DefaultVolumeWindowDays
	}
	if settings.HistoryMonths <= 0 {
		settings.HistoryMonths = DefaultHistoryMonths
	}
	if settings.Policy == "" {
		settings.Policy = analytics.MakeupIgnore
	}
	return &Loader{src: src, settings: settings, metrics: m, log: log, now: time.Now}
}

// Settings returns the effective settings.
func (l *Loader) Settings() Settings { return l.settings }

// Source returns the data source the loader reads from.
func (l *Loader) Source() source.DataSource { return l.src }

// Snapshot is one student's records as fetched at LoadedAt, with the
// sessions already classified.
type Snapshot struct {
	StudentID  int64
	Generation uint64
	LoadedAt   time.Time
	Period     analytics.Period
	Student    models.Student
	Plans      []models.WorkoutPlan
	Sessions   []models.Session
	Payments   []models.Payment
	Ledger     *analytics.Ledger
}

// LoadOptions narrows what Load fetches. Zero values use the loader
// settings and the current month.
type LoadOptions struct {
	Period        analytics.Period
	WindowDays    int
	HistoryMonths int
}

func (l *Loader) resolve(opts LoadOptions, now time.Time) LoadOptions {
	if opts.Period == (analytics.Period{}) {
		opts.Period = analytics.PeriodOf(now)
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = l.settings.WindowDays
	}
	if opts.HistoryMonths <= 0 {
		opts.HistoryMonths = l.settings.HistoryMonths
	}
	return opts
}

// sessionsFrom is the earliest session time any report section needs,
// rounded down to midnight so repeated loads share cache keys.
func sessionsFrom(opts LoadOptions, now time.Time) time.Time {
	from := now.AddDate(0, 0, -opts.WindowDays)
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	if hist := opts.Period.Add(-(opts.HistoryMonths - 1)).Start(); hist.Before(from) {
		from = hist
	}
	return from
}

// Load fetches the student, plans, sessions and payments concurrently. If
// the lesson package started before the fetched session range, the older
// sessions are fetched as well so credit consumption is complete.
func (l *Loader) Load(ctx context.Context, studentID int64, opts LoadOptions) (*Snapshot, error) {
	start := time.Now()
	now := l.now()
	opts = l.resolve(opts, now)
	from := sessionsFrom(opts, now)

	snap := &Snapshot{StudentID: studentID, LoadedAt: now, Period: opts.Period}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := fetch(l, "student", func() (*models.Student, error) { return l.src.GetStudent(gctx, studentID) })
		if err != nil {
			return err
		}
		snap.Student = *st
		return nil
	})
	g.Go(func() (err error) {
		snap.Plans, err = fetch(l, "plans", func() ([]models.WorkoutPlan, error) { return l.src.ListPlans(gctx, studentID) })
		return err
	})
	g.Go(func() (err error) {
		snap.Sessions, err = fetch(l, "sessions", func() ([]models.Session, error) {
			return l.src.ListSessions(gctx, studentID, from, time.Time{})
		})
		return err
	})
	g.Go(func() (err error) {
		snap.Payments, err = fetch(l, "payments", func() ([]models.Payment, error) { return l.src.ListPayments(gctx, studentID) })
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading student %d: %w", studentID, err)
	}

	if creditStart := firstPackageDate(snap.Payments); !creditStart.IsZero() && creditStart.Before(from) {
		older, err := fetch(l, "sessions", func() ([]models.Session, error) {
			return l.src.ListSessions(ctx, studentID, creditStart, from)
		})
		if err != nil {
			return nil, fmt.Errorf("loading student %d: %w", studentID, err)
		}
		snap.Sessions = append(older, snap.Sessions...)
	}

	snap.Ledger = analytics.NewLedger(snap.Sessions)
	l.observe(snap)
	if l.metrics != nil {
		l.metrics.HistLoadDuration.Observe(time.Since(start).Seconds())
	}
	return snap, nil
}

// fetch runs one source call and records it.
func fetch[T any](l *Loader, resource string, call func() (T, error)) (T, error) {
	if l.metrics != nil {
		l.metrics.CounterFetches.WithLabelValues(resource).Inc()
	}
	v, err := call()
	if err != nil && l.metrics != nil {
		l.metrics.CounterFetchFailures.WithLabelValues(resource).Inc()
	}
	return v, err
}

func firstPackageDate(payments []models.Payment) time.Time {
	var first time.Time
	for _, p := range payments {
		if p.Credits > 0 && (first.IsZero() || p.PaidOn.Before(first)) {
			first = p.PaidOn.Time
		}
	}
	return first
}

// observe logs and counts the data problems found while classifying.
func (l *Loader) observe(snap *Snapshot) {
	for _, v := range snap.Ledger.Violations {
		l.log.Warn("session excluded", "student_id", snap.StudentID, "session_id", v.SessionID, "reason", v.Reason)
	}
	realized := snap.Ledger.OfKind(analytics.KindRealized)
	resolved := analytics.FilterRealized(realized, analytics.PlanIDs(snap.Plans))
	unresolved := len(realized) - len(resolved)
	if unresolved > 0 {
		l.log.Info("realized sessions reference missing plans", "student_id", snap.StudentID, "count", unresolved)
	}
	if l.metrics != nil {
		l.metrics.CounterViolations.Add(float64(len(snap.Ledger.Violations)))
		l.metrics.CounterUnresolved.Add(float64(unresolved))
	}
}
