package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/dashboard"
	"github.com/claude/freecoach/internal/logging"
	"github.com/claude/freecoach/internal/metrics"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/source"
)

type stubSource struct {
	students []models.Student
	plans    []models.WorkoutPlan
	sessions []models.Session
	payments []models.Payment
	err      error
}

func (f *stubSource) ListStudents(context.Context) ([]models.Student, error) {
	return f.students, f.err
}

func (f *stubSource) GetStudent(_ context.Context, id int64) (*models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, st := range f.students {
		if st.ID == id {
			return &st, nil
		}
	}
	return nil, source.ErrNotFound
}

func (f *stubSource) ListPlans(_ context.Context, id int64) ([]models.WorkoutPlan, error) {
	var out []models.WorkoutPlan
	for _, p := range f.plans {
		if p.StudentID == id {
			out = append(out, p)
		}
	}
	return out, f.err
}

func (f *stubSource) ListSessions(_ context.Context, id int64, from, to time.Time) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.StudentID == id && source.InRange(s.Time.Time, from, to) {
			out = append(out, s)
		}
	}
	return out, f.err
}

func (f *stubSource) ListPayments(_ context.Context, id int64) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range f.payments {
		if p.StudentID == id {
			out = append(out, p)
		}
	}
	return out, f.err
}

func at(s string) models.FlexTime {
	t, err := models.ParseFlexTime(s)
	if err != nil {
		panic(err)
	}
	return models.At(t)
}

func stubData() *stubSource {
	return &stubSource{
		students: []models.Student{{ID: 7, Name: "Ana", WeeklyFrequency: 3, DueDay: 10}, {ID: 8, Name: "Bruno"}},
		plans: []models.WorkoutPlan{{
			ID: 1, StudentID: 7, Title: "Upper A", Active: true,
			Prescriptions: []models.Prescription{{Sets: 3, Reps: "10", LoadKg: 20}},
		}},
		sessions: []models.Session{
			{ID: 1, StudentID: 7, PlanID: models.Int64(1), Realized: true, Time: at("2026-03-02T07:00:00")},
			{ID: 2, StudentID: 7, PlanID: models.Int64(1), Realized: true, Time: at("2026-03-09T07:00:00")},
			{ID: 3, StudentID: 7, Time: at("2026-03-11T07:00:00"), NeedsMakeup: true},
			{ID: 4, StudentID: 7, Time: at("2026-03-13T07:00:00")},
			{ID: 5, StudentID: 7, Realized: true, Time: at("2026-03-16T07:00:00")},
		},
		payments: []models.Payment{
			{ID: 1, StudentID: 7, Amount: 250, PaidOn: at("2026-03-01"), Reference: "03/2026"},
		},
	}
}

type recordingCache struct {
	mu       sync.Mutex
	students []int64
	all      int
}

func (c *recordingCache) Invalidate(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.students = append(c.students, id)
}

func (c *recordingCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all++
}

func newTestServer(src source.DataSource, cache CacheControl) *Server {
	log := logging.Discard()
	m := metrics.NewTestManager()
	loader := dashboard.NewLoader(src, dashboard.Settings{WindowDays: 30, DefaultWeeklyFrequency: 2, HistoryMonths: 3}, m, log)
	return New(Deps{
		Loader:  loader,
		Metrics: m,
		Cache:   cache,
		APIKey:  "secret",
		Log:     log,
	})
}

func do(t *testing.T, s *Server, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return v
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale middleware is active.
func TestHandleMeDefault(t *testing.T) {
	s := newTestServer(stubData(), nil)
	rec := do(t, s, http.MethodGet, "/api/v1/me", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	info := decode[UserInfo](t, rec)
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
}

// TestHandleListStudents verifies the default weekly frequency is filled in
// for students whose record has none.
func TestHandleListStudents(t *testing.T) {
	s := newTestServer(stubData(), nil)
	rec := do(t, s, http.MethodGet, "/api/v1/students", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decode[[]dashboard.StudentInfo](t, rec)
	if len(got) != 2 {
		t.Fatalf("got %d students, want 2", len(got))
	}
	if got[0].WeeklyFrequency != 3 || got[1].WeeklyFrequency != 2 {
		t.Errorf("frequencies = %d, %d; want 3, 2", got[0].WeeklyFrequency, got[1].WeeklyFrequency)
	}
}

// TestHandleAdherence verifies a past month is computed over the whole month.
func TestHandleAdherence(t *testing.T) {
	s := newTestServer(stubData(), nil)
	rec := do(t, s, http.MethodGet, "/api/v1/students/7/adherence?month=03/2026", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	got := decode[analytics.AdherenceSummary](t, rec)
	if got.Period.String() != "03/2026" {
		t.Errorf("period = %s, want 03/2026", got.Period)
	}
	if got.Expected != 15 {
		t.Errorf("expected = %d, want 15", got.Expected)
	}
	if got.Realized != 2 {
		t.Errorf("realized = %d, want 2", got.Realized)
	}
	if got.Missed != 1 {
		t.Errorf("missed = %d, want 1", got.Missed)
	}
}

// TestHandleSessionsFilter verifies status filtering and that sessions
// failing classification are reported apart.
func TestHandleSessionsFilter(t *testing.T) {
	s := newTestServer(stubData(), nil)
	rec := do(t, s, http.MethodGet, "/api/v1/students/7/sessions?status=realizada&from=2026-03-01&to=2026-04-01", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var got struct {
		Sessions []struct {
			Session models.Session `json:"session"`
			Outcome string         `json:"outcome"`
		} `json:"sessions"`
		Violations []json.RawMessage `json:"violations"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(got.Sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(got.Sessions))
	}
	if got.Sessions[0].Session.ID != 1 || got.Sessions[1].Session.ID != 2 {
		t.Errorf("sessions out of order: %d, %d", got.Sessions[0].Session.ID, got.Sessions[1].Session.ID)
	}
	if len(got.Violations) != 1 {
		t.Errorf("violations = %d, want 1", len(got.Violations))
	}
}

// TestHandleBadRequests verifies parameter validation.
func TestHandleBadRequests(t *testing.T) {
	s := newTestServer(stubData(), nil)
	tests := []struct {
		name   string
		target string
	}{
		{"bad id", "/api/v1/students/abc/credits"},
		{"zero id", "/api/v1/students/0/credits"},
		{"bad month", "/api/v1/students/7/adherence?month=13/2026"},
		{"bad days", "/api/v1/students/7/volume?days=0"},
		{"bad status", "/api/v1/students/7/sessions?status=maybe"},
		{"inverted range", "/api/v1/students/7/sessions?from=2026-04-01&to=2026-03-01"},
		{"bad months", "/api/v1/finance?months=100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.target, "", nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body := decode[errorBody](t, rec); body.Kind != "bad_request" {
				t.Errorf("kind = %q, want bad_request", body.Kind)
			}
		})
	}
}

// TestHandleErrors verifies source errors map to their HTTP status.
func TestHandleErrors(t *testing.T) {
	s := newTestServer(stubData(), nil)
	rec := do(t, s, http.MethodGet, "/api/v1/students/99/credits", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown student status = %d, want 404", rec.Code)
	}

	down := &stubSource{err: analytics.Unavailable("http", context.DeadlineExceeded)}
	s = newTestServer(down, nil)
	rec = do(t, s, http.MethodGet, "/api/v1/students/7/report", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unavailable status = %d, want 503", rec.Code)
	}
	if body := decode[errorBody](t, rec); body.Kind != "source_unavailable" {
		t.Errorf("kind = %q, want source_unavailable", body.Kind)
	}
}

// TestHandleReport verifies the report endpoint returns every section.
func TestHandleReport(t *testing.T) {
	s := newTestServer(stubData(), nil)
	rec := do(t, s, http.MethodGet, "/api/v1/students/7/report?month=2026-03", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var got map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	for _, key := range []string{"aluno", "referencia_mes", "volume", "adesao", "historico_adesao", "creditos", "status_financeiro"} {
		if _, ok := got[key]; !ok {
			t.Errorf("report missing %q", key)
		}
	}
	if string(got["status_financeiro"]) != `"em_dia"` {
		t.Errorf("status_financeiro = %s, want em_dia", got["status_financeiro"])
	}
}

// TestHandleRefreshSync verifies that without a refresher the refresh route
// loads synchronously and the tracker holds the result.
func TestHandleRefreshSync(t *testing.T) {
	cache := &recordingCache{}
	s := newTestServer(stubData(), cache)

	rec := do(t, s, http.MethodPost, "/api/v1/students/7/refresh", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without key status = %d, want 401", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/students/7/refresh", "", map[string]string{"X-API-Key": "secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if len(cache.students) != 1 || cache.students[0] != 7 {
		t.Errorf("invalidated = %v, want [7]", cache.students)
	}
	if cur := s.Tracker.Current(); cur == nil || cur.StudentID != 7 {
		t.Fatalf("tracker current = %+v, want student 7", cur)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/current", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("current status = %d, want 200", rec.Code)
	}
}

// TestHandleCurrentEmpty verifies 404 before any student is selected.
func TestHandleCurrentEmpty(t *testing.T) {
	s := newTestServer(stubData(), nil)
	rec := do(t, s, http.MethodGet, "/api/v1/current", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestHandleInvalidate verifies single-student and full invalidation.
func TestHandleInvalidate(t *testing.T) {
	cache := &recordingCache{}
	s := newTestServer(stubData(), cache)
	key := map[string]string{"X-API-Key": "secret"}

	rec := do(t, s, http.MethodPost, "/api/v1/cache/invalidate", `{"student_id": 8}`, key)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	rec = do(t, s, http.MethodPost, "/api/v1/cache/invalidate", "", key)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/api/v1/cache/invalidate", `{`, key)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}

	if len(cache.students) != 1 || cache.students[0] != 8 {
		t.Errorf("invalidated = %v, want [8]", cache.students)
	}
	if cache.all != 1 {
		t.Errorf("invalidate all = %d, want 1", cache.all)
	}
}

// TestHandleFinance verifies the studio-wide report for one month.
func TestHandleFinance(t *testing.T) {
	s := newTestServer(stubData(), nil)
	rec := do(t, s, http.MethodGet, "/api/v1/finance?month=03/2026&months=3", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	got := decode[analytics.FinanceReport](t, rec)
	if got.Revenue != 250 {
		t.Errorf("revenue = %v, want 250", got.Revenue)
	}
	if got.TotalStudents != 2 || got.PaidStudents != 1 {
		t.Errorf("students = %d/%d, want 1/2", got.PaidStudents, got.TotalStudents)
	}
	if len(got.History) != 3 {
		t.Errorf("history = %d months, want 3", len(got.History))
	}
}

// TestHealthz verifies the liveness route.
func TestHealthz(t *testing.T) {
	s := newTestServer(stubData(), nil)
	rec := do(t, s, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
