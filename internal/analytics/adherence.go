package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/claude/freecoach/internal/models"
)

// MakeupPolicy decides how MissedWithMakeup sessions enter the ratio.
type MakeupPolicy string

const (
	// MakeupIgnore counts makeup absences in neither the numerator nor the
	// denominator adjustment: the configured expectation stands.
	MakeupIgnore MakeupPolicy = "ignore"
	// MakeupPending reports makeup absences as pending and removes them from
	// the expected count until they are rescheduled.
	MakeupPending MakeupPolicy = "pending"
)

// ParseMakeupPolicy maps a config value to a policy. Empty means MakeupIgnore.
func ParseMakeupPolicy(s string) (MakeupPolicy, error) {
	switch MakeupPolicy(s) {
	case "", MakeupIgnore:
		return MakeupIgnore, nil
	case MakeupPending:
		return MakeupPending, nil
	default:
		return "", fmt.Errorf("unknown makeup policy %q", s)
	}
}

// ExpectedSessions returns the sessions expected for period: weekly × weeks
// plus extra package lessons. Weeks is ceil(days/7) for the whole month, or
// for the days elapsed up to asOf when prorate is set.
func ExpectedSessions(period Period, weekly, extra int, asOf time.Time, prorate bool) int {
	if weekly < 0 {
		weekly = 0
	}
	if extra < 0 {
		extra = 0
	}
	days := period.Days()
	if prorate {
		cur := PeriodOf(asOf)
		switch {
		case cur.Before(period):
			days = 0
		case cur == period:
			days = asOf.Day()
		}
	}
	weeks := (days + 6) / 7
	return weekly*weeks + extra
}

// PackageCreditsFor sums the lesson credits of payments referencing period.
func PackageCreditsFor(payments []models.Payment, period Period) int {
	ref := period.String()
	var total int
	for _, p := range payments {
		if p.Reference == ref && p.Credits > 0 {
			total += p.Credits
		}
	}
	return total
}

// AdherenceInput configures Adherence.
type AdherenceInput struct {
	Period   Period
	Expected int
	Policy   MakeupPolicy
}

// AdherenceSummary is the expected-vs-realized count for one month.
type AdherenceSummary struct {
	Period   Period  `json:"referencia_mes"`
	Expected int     `json:"sessoes_previstas"`
	Realized int     `json:"sessoes_realizadas"`
	Missed   int     `json:"sessoes_faltas"`
	Pending  int     `json:"sessoes_pendentes,omitempty"`
	Ratio    float64 `json:"taxa_adesao"`
}

// Adherence counts the ledger's outcomes inside in.Period and computes
// realized / expected, rounded to four places and clamped to [0, 1]. The
// ratio is 0 when nothing is expected.
func Adherence(in AdherenceInput, ledger *Ledger) AdherenceSummary {
	sum := AdherenceSummary{Period: in.Period, Expected: max(in.Expected, 0)}

	var makeup int
	for _, e := range ledger.Entries {
		if !in.Period.Contains(e.Session.Time.Time) {
			continue
		}
		switch e.Outcome.Kind() {
		case KindRealized:
			sum.Realized++
		case KindMissedWithoutMakeup:
			sum.Missed++
		case KindMissedWithMakeup:
			makeup++
		}
	}

	denominator := sum.Expected
	if in.Policy == MakeupPending {
		sum.Pending = makeup
		denominator = max(denominator-makeup, 0)
	}
	sum.Ratio = ratio(sum.Realized, denominator)
	return sum
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	r := float64(num) / float64(den)
	if r > 1 {
		r = 1
	}
	return math.Round(r*10000) / 10000
}

// HistoryInput configures AdherenceHistory.
type HistoryInput struct {
	End             Period
	Months          int
	WeeklyFrequency int
	Payments        []models.Payment
	Policy          MakeupPolicy
	AsOf            time.Time
	Prorate         bool
}

// AdherenceHistory computes Adherence for Months consecutive periods ending
// at End, oldest first. Each month's expectation includes the lesson credits
// of payments referencing it.
func AdherenceHistory(in HistoryInput, ledger *Ledger) []AdherenceSummary {
	months := in.Months
	if months <= 0 {
		months = 1
	}
	out := make([]AdherenceSummary, 0, months)
	for i := months - 1; i >= 0; i-- {
		p := in.End.Add(-i)
		expected := ExpectedSessions(p, in.WeeklyFrequency, PackageCreditsFor(in.Payments, p), in.AsOf, in.Prorate)
		out = append(out, Adherence(AdherenceInput{Period: p, Expected: expected, Policy: in.Policy}, ledger))
	}
	return out
}
