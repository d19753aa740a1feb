package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/models"
)

// memSource is an in-memory DataSource for export tests.
type memSource struct {
	ds   Dataset
	fail error
}

func (m *memSource) ListStudents(context.Context) ([]models.Student, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	return m.ds.Students, nil
}

func (m *memSource) GetStudent(_ context.Context, id int64) (*models.Student, error) {
	for _, s := range m.ds.Students {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memSource) ListPlans(_ context.Context, id int64) ([]models.WorkoutPlan, error) {
	var out []models.WorkoutPlan
	for _, p := range m.ds.Plans {
		if p.StudentID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memSource) ListSessions(_ context.Context, id int64, _, _ time.Time) ([]models.Session, error) {
	var out []models.Session
	for _, s := range m.ds.Sessions {
		if s.StudentID == id {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSource) ListPayments(_ context.Context, id int64) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range m.ds.Payments {
		if p.StudentID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func at(s string) models.FlexTime {
	t, err := models.ParseFlexTime(s)
	if err != nil {
		panic(err)
	}
	return models.At(t)
}

func fixture() Dataset {
	return Dataset{
		Students: []models.Student{{ID: 1, Name: "Ana", WeeklyFrequency: 3}, {ID: 2, Name: "Bruno"}},
		Plans: []models.WorkoutPlan{{
			ID: 10, StudentID: 1, Title: "Upper A", Active: true,
			Prescriptions: []models.Prescription{{ID: 100, PlanID: 10, Exercise: "Supino", Sets: 3, Reps: "10", LoadKg: 20, RestSeconds: 90}},
		}},
		Sessions: []models.Session{
			{ID: 1, StudentID: 1, PlanID: models.Int64(10), Time: at("2026-02-05T07:00:00"), Realized: true},
			{ID: 2, StudentID: 1, Time: at("2026-02-06T07:00:00"), NeedsMakeup: true},
			{ID: 3, StudentID: 1, PlanID: models.Int64(10), Time: at("2026-03-01T07:00:00"), Realized: true},
		},
		Payments: []models.Payment{{ID: 5, StudentID: 1, Amount: 250, PaidOn: at("2026-02-01"), Reference: "02/2026", Credits: 8}},
	}
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "snap", "coach.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// TestExportRoundTrip verifies an exported snapshot answers the same
// queries as its source.
func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)

	rec, err := Export(ctx, &memSource{ds: fixture()}, store, "test", discard)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if rec.Students != 2 || rec.Sessions != 3 || rec.Plans != 1 || rec.Payments != 1 {
		t.Errorf("record = %+v", rec)
	}

	st, err := store.GetStudent(ctx, 1)
	if err != nil || st.Name != "Ana" || st.WeeklyFrequency != 3 {
		t.Fatalf("GetStudent = %+v, %v", st, err)
	}

	plans, err := store.ListPlans(ctx, 1)
	if err != nil || len(plans) != 1 {
		t.Fatalf("ListPlans = %v, %v", plans, err)
	}
	if got := analytics.PlanVolume(plans[0]); got != 600 {
		t.Errorf("plan volume = %v, want 600", got)
	}
	if plans[0].Prescriptions[0].RestSeconds != 90 {
		t.Errorf("rest = %d, want 90", plans[0].Prescriptions[0].RestSeconds)
	}

	feb, err := store.ListSessions(ctx, 1,
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(feb) != 2 || feb[0].ID != 1 || feb[1].ID != 2 {
		t.Errorf("february sessions = %+v", feb)
	}
	if feb[1].PlanID != nil || !feb[1].NeedsMakeup {
		t.Errorf("missed session = %+v", feb[1])
	}

	payments, err := store.ListAllPayments(ctx)
	if err != nil || len(payments) != 1 || payments[0].Credits != 8 {
		t.Errorf("payments = %+v, %v", payments, err)
	}

	last, err := store.LastExport(ctx)
	if err != nil || last == nil || last.ID != rec.ID {
		t.Errorf("LastExport = %+v, %v", last, err)
	}
}

func TestStoreNotFound(t *testing.T) {
	store := openTemp(t)
	_, err := store.GetStudent(context.Background(), 42)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	last, err := store.LastExport(context.Background())
	if err != nil || last != nil {
		t.Errorf("LastExport on empty store = %+v, %v", last, err)
	}
}

// TestExportFailureKeepsSnapshot verifies a failed export leaves the
// previous data untouched.
func TestExportFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	src := &memSource{ds: fixture()}
	if _, err := Export(ctx, src, store, "test", discard); err != nil {
		t.Fatalf("Export: %v", err)
	}

	src.fail = analytics.Unavailable("test", errors.New("down"))
	if _, err := Export(ctx, src, store, "test", discard); !errors.Is(err, analytics.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}

	students, err := store.ListStudents(ctx)
	if err != nil || len(students) != 2 {
		t.Errorf("students after failed export = %v, %v", students, err)
	}
}
