package dashboard

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/source"
)

const financeConcurrency = 8

// Finance builds the billing summary across all students for period.
// Sources that can list every payment at once are asked once; otherwise
// payments are fetched per student.
func (l *Loader) Finance(ctx context.Context, period analytics.Period, months int) (analytics.FinanceReport, error) {
	students, err := fetch(l, "students", func() ([]models.Student, error) { return l.src.ListStudents(ctx) })
	if err != nil {
		return analytics.FinanceReport{}, fmt.Errorf("listing students: %w", err)
	}

	payments, err := l.allPayments(ctx, students)
	if err != nil {
		return analytics.FinanceReport{}, err
	}
	return analytics.FinanceSummary(students, payments, period, months), nil
}

func (l *Loader) allPayments(ctx context.Context, students []models.Student) ([]models.Payment, error) {
	if pl, ok := source.BulkPayments(l.src); ok {
		return fetch(l, "payments", func() ([]models.Payment, error) { return pl.ListAllPayments(ctx) })
	}

	var (
		mu  sync.Mutex
		all []models.Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(financeConcurrency)
	for _, st := range students {
		g.Go(func() error {
			ps, err := fetch(l, "payments", func() ([]models.Payment, error) { return l.src.ListPayments(gctx, st.ID) })
			if err != nil {
				return fmt.Errorf("student %d payments: %w", st.ID, err)
			}
			for i := range ps {
				if ps[i].StudentID == 0 {
					ps[i].StudentID = st.ID
				}
			}
			mu.Lock()
			all = append(all, ps...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}
