package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/dashboard"
	"github.com/claude/freecoach/internal/source"
)

const maxHistoryMonths = 36

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.Loader.Source().ListStudents(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]dashboard.StudentInfo, 0, len(students))
	for _, st := range students {
		out = append(out, dashboard.StudentInfo{
			ID:              st.ID,
			Name:            st.Name,
			WeeklyFrequency: s.Loader.WeeklyFrequency(st),
			DueDay:          st.DueDay,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 0, 1, 3660)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, ok := s.load(w, r, dashboard.LoadOptions{WindowDays: days})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Loader.Volume(snap, days))
}

func (s *Server) handleAdherence(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, ok := s.load(w, r, dashboard.LoadOptions{Period: period, HistoryMonths: 1})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Loader.Adherence(snap, snap.Period))
}

func (s *Server) handleAdherenceHistory(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	months, err := intParam(r, "months", 0, 1, maxHistoryMonths)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, ok := s.load(w, r, dashboard.LoadOptions{Period: period, HistoryMonths: months})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Loader.AdherenceHistory(snap, snap.Period, months))
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.load(w, r, dashboard.LoadOptions{})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Loader.Credits(snap))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, ok := s.load(w, r, dashboard.LoadOptions{Period: period})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Loader.Report(snap, snap.Period))
}

// sessionsResponse lists classified sessions with the ones that failed
// classification alongside.
type sessionsResponse struct {
	Sessions   []analytics.Entry           `json:"sessions"`
	Violations []*analytics.IntegrityError `json:"violations,omitempty"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	id, err := studentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	from, to, err := parseTimeRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var kind analytics.OutcomeKind
	if raw := r.URL.Query().Get("status"); raw != "" {
		k, ok := analytics.ParseOutcomeKind(raw)
		if !ok {
			s.writeError(w, r, badRequest("unknown session status %q", raw))
			return
		}
		kind = k
	}

	sessions, err := s.Loader.Source().ListSessions(r.Context(), id, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ledger := analytics.NewLedger(sessions)
	entries := ledger.Entries
	if kind != 0 {
		entries = ledger.OfKind(kind)
	}
	if entries == nil {
		entries = []analytics.Entry{}
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: entries, Violations: ledger.Violations})
}

// handleRefresh selects the student for background refreshes and drops its
// cached records. With no refresher configured it loads synchronously.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, err := studentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.Cache != nil {
		s.Cache.Invalidate(id)
	}
	tk := s.Tracker.Select(id)
	if s.Refresher != nil {
		s.Refresher.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]any{"student_id": id, "generation": tk.Generation})
		return
	}
	snap, err := s.Loader.Load(r.Context(), id, dashboard.LoadOptions{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Tracker.Accept(tk, snap)
	writeJSON(w, http.StatusOK, s.Loader.Report(snap, snap.Period))
}

// handleCurrent returns the report for the snapshot held by the tracker.
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	snap := s.Tracker.Current()
	if snap == nil {
		s.writeError(w, r, source.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.Loader.Report(snap, snap.Period))
}

func (s *Server) handleFinance(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	months, err := intParam(r, "months", analytics.DefaultRevenueMonths, 1, maxHistoryMonths)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if period == (analytics.Period{}) {
		period = analytics.PeriodOf(time.Now())
	}
	report, err := s.Loader.Finance(r.Context(), period, months)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type invalidateRequest struct {
	StudentID *int64 `json:"student_id"`
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, badRequest("invalid JSON: %v", err))
			return
		}
	}
	if s.Cache == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no cache"})
		return
	}
	if req.StudentID != nil {
		s.Cache.Invalidate(*req.StudentID)
	} else {
		s.Cache.InvalidateAll()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// load fetches a snapshot for the {id} route parameter, writing the error
// response itself on failure.
func (s *Server) load(w http.ResponseWriter, r *http.Request, opts dashboard.LoadOptions) (*dashboard.Snapshot, bool) {
	id, err := studentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	snap, err := s.Loader.Load(r.Context(), id, opts)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return snap, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func studentID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid student id %q", raw)
	}
	return id, nil
}

// periodParam reads ?month=. An empty value leaves the period zero so the
// loader picks the current month.
func periodParam(r *http.Request) (analytics.Period, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return analytics.Period{}, nil
	}
	p, err := analytics.ParsePeriod(raw)
	if err != nil {
		return analytics.Period{}, badRequest("%v", err)
	}
	return p, nil
}

func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, badRequest("%s must be an integer between %d and %d", name, lo, hi)
	}
	return n, nil
}

// parseTimeRange reads ?from= and ?to= as dates or RFC 3339 timestamps.
// Missing bounds are open.
func parseTimeRange(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if from, err = parseTime(q.Get("from")); err != nil {
		return time.Time{}, time.Time{}, badRequest("invalid from: %v", err)
	}
	if to, err = parseTime(q.Get("to")); err != nil {
		return time.Time{}, time.Time{}, badRequest("invalid to: %v", err)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, badRequest("from must be before to")
	}
	return from, to, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

