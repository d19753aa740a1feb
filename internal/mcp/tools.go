package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/dashboard"
	"github.com/claude/freecoach/internal/source"
)

// parsePeriod reads an optional MM/YYYY month. Empty means the current month.
func parsePeriod(s string) (analytics.Period, error) {
	if s == "" {
		return analytics.Period{}, nil
	}
	return analytics.ParsePeriod(s)
}

// defaultTimeRange parses optional start/end dates. Missing bounds are open.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return time.Time{}, time.Time{}, errors.New("start must be before end")
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolListStudents = mcp.NewTool("list_students",
	mcp.WithDescription("List every student with ID, name, planned weekly frequency and payment due day. Use the ID with the other tools."),
)

var toolGetVolumeSeries = mcp.NewTool("get_volume_series",
	mcp.WithDescription("Daily training volume (sets x reps x load in kg, summed over the plan's prescriptions) for realized sessions in the last N days. Sessions whose plan no longer exists are listed as unresolved."),
	mcp.WithNumber("student_id", mcp.Required(), mcp.Description("Student ID")),
	mcp.WithNumber("days", mcp.Description("Window length in days. Defaults to the server setting (30).")),
)

var toolGetAdherence = mcp.NewTool("get_adherence",
	mcp.WithDescription("Expected vs realized sessions for one month. Expected is weekly frequency times the weeks in the month plus package lessons paid for that month."),
	mcp.WithNumber("student_id", mcp.Required(), mcp.Description("Student ID")),
	mcp.WithString("month", mcp.Description("Month as MM/YYYY. Defaults to the current month.")),
)

var toolGetAdherenceHistory = mcp.NewTool("get_adherence_history",
	mcp.WithDescription("Monthly adherence for several months ending at the given month, oldest first."),
	mcp.WithNumber("student_id", mcp.Required(), mcp.Description("Student ID")),
	mcp.WithString("month", mcp.Description("Last month as MM/YYYY. Defaults to the current month.")),
	mcp.WithNumber("months", mcp.Description("Number of months. Defaults to 6.")),
)

var toolGetCreditBalance = mcp.NewTool("get_credit_balance",
	mcp.WithDescription("Lesson-package balance: credits granted by payments, consumed by realized sessions and missed sessions without makeup, and remaining."),
	mcp.WithNumber("student_id", mcp.Required(), mcp.Description("Student ID")),
)

var toolGetStudentReport = mcp.NewTool("get_student_report",
	mcp.WithDescription("Everything for one student and month: volume series, adherence, adherence history, credits, payment status and any data integrity violations."),
	mcp.WithNumber("student_id", mcp.Required(), mcp.Description("Student ID")),
	mcp.WithString("month", mcp.Description("Month as MM/YYYY. Defaults to the current month.")),
)

var toolGetSessions = mcp.NewTool("get_sessions",
	mcp.WithDescription("Classified sessions for a student in a date range, optionally filtered by outcome."),
	mcp.WithNumber("student_id", mcp.Required(), mcp.Description("Student ID")),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Open when omitted.")),
	mcp.WithString("end", mcp.Description("End date, exclusive. Open when omitted.")),
	mcp.WithString("status", mcp.Description("Outcome filter."), mcp.Enum("realized", "missed_with_makeup", "missed_without_makeup")),
)

var toolGetFinanceSummary = mcp.NewTool("get_finance_summary",
	mcp.WithDescription("Studio-wide billing for one month: revenue, average ticket, delinquency rate and monthly revenue history."),
	mcp.WithString("month", mcp.Description("Month as MM/YYYY. Defaults to the current month.")),
	mcp.WithNumber("months", mcp.Description("Revenue history length in months. Defaults to 12.")),
)

// --- Tool handlers ---

func (h *handlers) listStudents(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := h.studentInfos(ctx)
	if err != nil {
		return h.failure("list_students", err), nil
	}
	return jsonResult(infos), nil
}

func (h *handlers) studentInfos(ctx context.Context) ([]dashboard.StudentInfo, error) {
	students, err := h.loader.Source().ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dashboard.StudentInfo, 0, len(students))
	for _, st := range students {
		out = append(out, dashboard.StudentInfo{
			ID:              st.ID,
			Name:            st.Name,
			WeeklyFrequency: h.loader.WeeklyFrequency(st),
			DueDay:          st.DueDay,
		})
	}
	return out, nil
}

func (h *handlers) getVolumeSeries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := req.GetInt("days", 0)
	if days < 0 {
		return mcp.NewToolResultError("days must be positive"), nil
	}
	snap, res := h.load(ctx, "get_volume_series", req, dashboard.LoadOptions{WindowDays: days})
	if res != nil {
		return res, nil
	}
	return jsonResult(h.loader.Volume(snap, days)), nil
}

func (h *handlers) getAdherence(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	period, err := parsePeriod(req.GetString("month", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, res := h.load(ctx, "get_adherence", req, dashboard.LoadOptions{Period: period, HistoryMonths: 1})
	if res != nil {
		return res, nil
	}
	return jsonResult(h.loader.Adherence(snap, snap.Period)), nil
}

func (h *handlers) getAdherenceHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	period, err := parsePeriod(req.GetString("month", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	months := req.GetInt("months", 0)
	if months < 0 || months > 36 {
		return mcp.NewToolResultError("months must be between 1 and 36"), nil
	}
	snap, res := h.load(ctx, "get_adherence_history", req, dashboard.LoadOptions{Period: period, HistoryMonths: months})
	if res != nil {
		return res, nil
	}
	return jsonResult(h.loader.AdherenceHistory(snap, snap.Period, months)), nil
}

func (h *handlers) getCreditBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, res := h.load(ctx, "get_credit_balance", req, dashboard.LoadOptions{})
	if res != nil {
		return res, nil
	}
	return jsonResult(h.loader.Credits(snap)), nil
}

func (h *handlers) getStudentReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	period, err := parsePeriod(req.GetString("month", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, res := h.load(ctx, "get_student_report", req, dashboard.LoadOptions{Period: period})
	if res != nil {
		return res, nil
	}
	return jsonResult(h.loader.Report(snap, snap.Period)), nil
}

func (h *handlers) getSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := studentID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date range: " + err.Error()), nil
	}
	var kind analytics.OutcomeKind
	if raw := req.GetString("status", ""); raw != "" {
		k, ok := analytics.ParseOutcomeKind(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", raw)), nil
		}
		kind = k
	}

	sessions, err := h.loader.Source().ListSessions(ctx, id, start, end)
	if err != nil {
		return h.failure("get_sessions", err), nil
	}
	ledger := analytics.NewLedger(sessions)
	entries := ledger.Entries
	if kind != 0 {
		entries = ledger.OfKind(kind)
	}
	return jsonResult(map[string]any{
		"sessions":   entries,
		"violations": ledger.Violations,
	}), nil
}

func (h *handlers) getFinanceSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	period, err := parsePeriod(req.GetString("month", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if period == (analytics.Period{}) {
		period = analytics.PeriodOf(time.Now())
	}
	months := req.GetInt("months", analytics.DefaultRevenueMonths)
	if months < 1 || months > 36 {
		return mcp.NewToolResultError("months must be between 1 and 36"), nil
	}

	report, err := h.loader.Finance(ctx, period, months)
	if err != nil {
		return h.failure("get_finance_summary", err), nil
	}
	return jsonResult(report), nil
}

// load fetches the snapshot for the student_id argument. A non-nil result
// is the error to return to the caller.
func (h *handlers) load(ctx context.Context, tool string, req mcp.CallToolRequest, opts dashboard.LoadOptions) (*dashboard.Snapshot, *mcp.CallToolResult) {
	id, err := studentID(req)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	snap, err := h.loader.Load(ctx, id, opts)
	if err != nil {
		return nil, h.failure(tool, err)
	}
	return snap, nil
}

func studentID(req mcp.CallToolRequest) (int64, error) {
	id := req.GetInt("student_id", 0)
	if id <= 0 {
		return 0, errors.New("student_id parameter is required")
	}
	return int64(id), nil
}

// failure turns an error into a tool error result. Unknown students and
// unreachable sources get distinct messages so the assistant can react.
func (h *handlers) failure(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, source.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, analytics.ErrSourceUnavailable):
		h.log.Warn("mcp "+tool, "error", err)
		return mcp.NewToolResultError("data source unavailable, try again later: " + err.Error())
	default:
		h.log.Error("mcp "+tool, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed")
	}
	return result
}
