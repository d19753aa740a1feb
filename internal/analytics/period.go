package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a calendar month, written "MM/YYYY" like payment references.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the month containing t, using t's wall clock.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod accepts "MM/YYYY" and "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	var mm, yyyy string
	switch {
	case strings.Contains(s, "/"):
		mm, yyyy, _ = strings.Cut(s, "/")
	case strings.Contains(s, "-"):
		yyyy, mm, _ = strings.Cut(s, "-")
	default:
		return Period{}, fmt.Errorf("invalid period %q (use MM/YYYY)", s)
	}
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid period %q (use MM/YYYY)", s)
	}
	year, err := strconv.Atoi(yyyy)
	if err != nil || year < 1 || year > 9999 {
		return Period{}, fmt.Errorf("invalid period %q (use MM/YYYY)", s)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%02d/%04d", int(p.Month), p.Year)
}

func (p Period) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Start is midnight UTC of the first day.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the exclusive end: midnight UTC of the next month's first day.
func (p Period) End() time.Time { return p.Start().AddDate(0, 1, 0) }

// Days is the number of days in the month.
func (p Period) Days() int { return p.End().AddDate(0, 0, -1).Day() }

// Contains compares by wall clock, so naive and zoned timestamps fall in the
// month their calendar date says.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// Add moves the period by n months.
func (p Period) Add(n int) Period { return PeriodOf(p.Start().AddDate(0, n, 0)) }

// Before reports whether p is earlier than q.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}
