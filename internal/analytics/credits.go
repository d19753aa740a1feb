package analytics

import (
	"time"

	"github.com/claude/freecoach/internal/models"
)

// CreditOptions configures Credits.
type CreditOptions struct {
	// Since overrides the start of the package window. Zero means the date
	// of the oldest payment that granted credits.
	Since time.Time
}

// CreditSummary is a student's lesson-package balance.
type CreditSummary struct {
	Granted   int  `json:"granted"`
	Consumed  int  `json:"consumed"`
	Remaining int  `json:"remaining"`
	Overdrawn bool `json:"overdrawn"`
	// Deficit is how far consumption exceeds grants when Overdrawn.
	Deficit       int             `json:"deficit,omitempty"`
	WindowStart   *time.Time      `json:"window_start,omitempty"`
	LatestPayment *models.Payment `json:"latest_payment,omitempty"`
}

// Credits sums granted credits over payments and counts Realized and
// MissedWithoutMakeup sessions from the window start on. Remaining never
// goes below zero; overdraft is flagged instead.
func Credits(payments []models.Payment, ledger *Ledger, opts CreditOptions) CreditSummary {
	var sum CreditSummary

	start := opts.Since
	for i := range payments {
		p := payments[i]
		if p.Credits > 0 {
			sum.Granted += p.Credits
			if opts.Since.IsZero() && (start.IsZero() || p.PaidOn.Before(start)) {
				start = p.PaidOn.Time
			}
		}
		if sum.LatestPayment == nil || laterPayment(p, *sum.LatestPayment) {
			sum.LatestPayment = &payments[i]
		}
	}

	if !start.IsZero() {
		ws := start
		sum.WindowStart = &ws
		for _, e := range ledger.Entries {
			if e.Session.Time.Before(start) {
				continue
			}
			if e.Outcome.ConsumesCredit() {
				sum.Consumed++
			}
		}
	}

	sum.Remaining = sum.Granted - sum.Consumed
	if sum.Remaining < 0 {
		sum.Overdrawn = true
		sum.Deficit = -sum.Remaining
		sum.Remaining = 0
	}
	return sum
}

// laterPayment orders payments by date, then by ID for same-day payments.
func laterPayment(a, b models.Payment) bool {
	if !a.PaidOn.Equal(b.PaidOn.Time) {
		return a.PaidOn.After(b.PaidOn.Time)
	}
	return a.ID > b.ID
}
