package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/source"
)

// exportConcurrency bounds how many students are fetched at once.
const exportConcurrency = 4

// Export copies every student's records from src into store, replacing what
// the store held. A failure leaves the previous snapshot in place.
func Export(ctx context.Context, src source.DataSource, store *Store, sourceLabel string, log *slog.Logger) (*ExportRecord, error) {
	rec := ExportRecord{ID: uuid.NewString(), StartedAt: time.Now(), Source: sourceLabel}
	log = log.With("export_id", rec.ID)

	students, err := src.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}
	log.Info("exporting snapshot", "students", len(students))

	var (
		mu sync.Mutex
		ds = Dataset{Students: students}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportConcurrency)
	for _, st := range students {
		g.Go(func() error {
			plans, err := src.ListPlans(gctx, st.ID)
			if err != nil {
				return fmt.Errorf("student %d plans: %w", st.ID, err)
			}
			sessions, err := src.ListSessions(gctx, st.ID, time.Time{}, time.Time{})
			if err != nil {
				return fmt.Errorf("student %d sessions: %w", st.ID, err)
			}
			payments, err := src.ListPayments(gctx, st.ID)
			if err != nil {
				return fmt.Errorf("student %d payments: %w", st.ID, err)
			}
			fillStudentID(st.ID, plans, sessions, payments)

			mu.Lock()
			ds.Plans = append(ds.Plans, plans...)
			ds.Sessions = append(ds.Sessions, sessions...)
			ds.Payments = append(ds.Payments, payments...)
			mu.Unlock()
			log.Debug("exported student", "student_id", st.ID, "plans", len(plans), "sessions", len(sessions), "payments", len(payments))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rec.Students = len(ds.Students)
	rec.Plans = len(ds.Plans)
	rec.Sessions = len(ds.Sessions)
	rec.Payments = len(ds.Payments)
	rec.FinishedAt = time.Now()
	if err := store.Replace(ctx, ds, rec); err != nil {
		return nil, err
	}
	log.Info("snapshot exported",
		"plans", rec.Plans, "sessions", rec.Sessions, "payments", rec.Payments,
		"duration", rec.FinishedAt.Sub(rec.StartedAt))
	return &rec, nil
}

func fillStudentID(id int64, plans []models.WorkoutPlan, sessions []models.Session, payments []models.Payment) {
	for i := range plans {
		if plans[i].StudentID == 0 {
			plans[i].StudentID = id
		}
	}
	for i := range sessions {
		if sessions[i].StudentID == 0 {
			sessions[i].StudentID = id
		}
	}
	for i := range payments {
		if payments[i].StudentID == 0 {
			payments[i].StudentID = id
		}
	}
}
