package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/freecoach/internal/models"
)

func TestPaymentStatus(t *testing.T) {
	payments := []models.Payment{{Reference: "02/2026"}}
	assert.Equal(t, PaymentUpToDate, PaymentStatus(payments, Period{Year: 2026, Month: time.February}))
	assert.Equal(t, PaymentLate, PaymentStatus(payments, march))
	assert.Equal(t, PaymentLate, PaymentStatus(nil, march))
}

// TestFinanceSummary covers revenue by reference, delinquency and the
// zero-filled revenue history bucketed by payment date.
func TestFinanceSummary(t *testing.T) {
	students := []models.Student{{ID: 1}, {ID: 2}, {ID: 3}}
	payments := []models.Payment{
		{ID: 1, StudentID: 1, Amount: 200, Reference: "03/2026", PaidOn: models.At(day("2026-03-05"))},
		{ID: 2, StudentID: 1, Amount: 50, Reference: "03/2026", PaidOn: models.At(day("2026-02-28"))},
		{ID: 3, StudentID: 2, Amount: 150, Reference: "03/2026", PaidOn: models.At(day("2026-03-10"))},
		{ID: 4, StudentID: 3, Amount: 180, Reference: "01/2026", PaidOn: models.At(day("2026-01-10"))},
		{ID: 5, StudentID: 3, Amount: 999, Reference: "01/2024", PaidOn: models.At(day("2024-01-10"))},
	}
	rep := FinanceSummary(students, payments, march, 0)
	assert.Equal(t, 400.0, rep.Revenue)
	assert.Equal(t, 2, rep.PaidStudents)
	assert.Equal(t, 1, rep.LateStudents)
	assert.Equal(t, 0.3333, rep.Delinquency)
	assert.Equal(t, 200.0, rep.AverageTicket)

	require.Len(t, rep.History, 12)
	assert.Equal(t, "04/2025", rep.History[0].Period.String())
	assert.Equal(t, "03/2026", rep.History[11].Period.String())
	assert.Equal(t, 350.0, rep.History[11].Revenue)
	assert.Equal(t, 50.0, rep.History[10].Revenue)
	assert.Equal(t, 180.0, rep.History[9].Revenue)
	assert.Equal(t, 0.0, rep.History[0].Revenue)
}

func TestFinanceSummaryNoStudents(t *testing.T) {
	rep := FinanceSummary(nil, nil, march, 3)
	assert.Equal(t, 0.0, rep.Delinquency)
	assert.Equal(t, 0.0, rep.AverageTicket)
	assert.Len(t, rep.History, 3)
}
