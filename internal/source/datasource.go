// Package source provides the data sources the analytics engine reads from:
// the remote coaching REST service, plus a caching decorator that any
// DataSource can be wrapped in.
package source

import (
	"context"
	"time"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/storage"
)

// ErrNotFound is returned when the requested student does not exist.
var ErrNotFound = models.ErrNotFound

// DataSource abstracts where coaching records come from. The Postgres
// repository, the remote REST client and the local snapshot store all
// satisfy it. Implementations wrap connection and transport failures with
// analytics.Unavailable so callers never mistake them for empty data.
type DataSource interface {
	ListStudents(ctx context.Context) ([]models.Student, error)
	GetStudent(ctx context.Context, studentID int64) (*models.Student, error)
	// ListPlans returns every plan of the student, active or not, with
	// their prescriptions.
	ListPlans(ctx context.Context, studentID int64) ([]models.WorkoutPlan, error)
	// ListSessions returns sessions with from <= time < to. A zero bound
	// is open.
	ListSessions(ctx context.Context, studentID int64, from, to time.Time) ([]models.Session, error)
	ListPayments(ctx context.Context, studentID int64) ([]models.Payment, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)

// PaymentLister is implemented by sources that can list every payment in
// one call. Callers fall back to per-student ListPayments otherwise.
type PaymentLister interface {
	ListAllPayments(ctx context.Context) ([]models.Payment, error)
}

var _ PaymentLister = (*storage.DB)(nil)

// BulkPayments returns src as a PaymentLister when it can list every
// payment in one call. A Cache qualifies only when its wrapped source does.
func BulkPayments(src DataSource) (PaymentLister, bool) {
	if c, ok := src.(*Cache); ok {
		if _, ok := c.src.(PaymentLister); !ok {
			return nil, false
		}
		return c, true
	}
	pl, ok := src.(PaymentLister)
	return pl, ok
}

// InRange reports whether t falls in [from, to) with zero bounds open.
// All three are compared by wall clock.
func InRange(t, from, to time.Time) bool {
	t, from, to = models.WallClock(t), models.WallClock(from), models.WallClock(to)
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
