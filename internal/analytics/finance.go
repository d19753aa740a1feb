package analytics

import (
	"math"

	"github.com/claude/freecoach/internal/models"
)

// PaymentState is a student's billing standing for a month.
type PaymentState string

const (
	PaymentUpToDate PaymentState = "em_dia"
	PaymentLate     PaymentState = "atrasado"
)

// DefaultRevenueMonths is the length of the revenue history series.
const DefaultRevenueMonths = 12

// PaymentStatus is PaymentUpToDate when any payment references period.
func PaymentStatus(payments []models.Payment, period Period) PaymentState {
	ref := period.String()
	for _, p := range payments {
		if p.Reference == ref {
			return PaymentUpToDate
		}
	}
	return PaymentLate
}

// MonthlyRevenue is the amount received in one month.
type MonthlyRevenue struct {
	Period  Period  `json:"referencia_mes"`
	Revenue float64 `json:"receita"`
}

// FinanceReport summarizes billing across all students for one month.
type FinanceReport struct {
	Period        Period           `json:"referencia_mes"`
	Revenue       float64          `json:"receita_total"`
	AverageTicket float64          `json:"ticket_medio"`
	Delinquency   float64          `json:"inadimplencia"`
	TotalStudents int              `json:"total_alunos"`
	PaidStudents  int              `json:"alunos_em_dia"`
	LateStudents  int              `json:"alunos_inadimplentes"`
	History       []MonthlyRevenue `json:"receita_mensal_12m"`
}

// FinanceSummary computes the month's revenue by payment reference and a
// revenue history bucketed by payment date, covering months periods ending
// at period, oldest first, with months without payments reported as zero.
func FinanceSummary(students []models.Student, payments []models.Payment, period Period, months int) FinanceReport {
	if months <= 0 {
		months = DefaultRevenueMonths
	}
	rep := FinanceReport{Period: period, TotalStudents: len(students)}

	ref := period.String()
	payers := make(map[int64]struct{})
	for _, p := range payments {
		if p.Reference != ref {
			continue
		}
		rep.Revenue += p.Amount
		payers[p.StudentID] = struct{}{}
	}
	rep.PaidStudents = len(payers)
	rep.LateStudents = max(rep.TotalStudents-rep.PaidStudents, 0)
	if rep.TotalStudents > 0 {
		rep.Delinquency = math.Round(float64(rep.LateStudents)/float64(rep.TotalStudents)*10000) / 10000
	}
	if rep.PaidStudents > 0 {
		rep.AverageTicket = math.Round(rep.Revenue/float64(rep.PaidStudents)*100) / 100
	}

	first := period.Add(-(months - 1))
	byMonth := make(map[Period]float64, months)
	for _, p := range payments {
		m := PeriodOf(p.PaidOn.Time)
		if m.Before(first) || period.Before(m) {
			continue
		}
		byMonth[m] += p.Amount
	}
	rep.History = make([]MonthlyRevenue, 0, months)
	for i := 0; i < months; i++ {
		m := first.Add(i)
		rep.History = append(rep.History, MonthlyRevenue{Period: m, Revenue: byMonth[m]})
	}
	return rep
}
