package analytics

import (
	"math"
	"strconv"
	"strings"

	"github.com/claude/freecoach/internal/models"
)

// RepsValue extracts the numeric repetition count from a prescription's reps
// field. The first run of digits wins, so "10-12" counts as 10. Values with
// no digits ("até a falha"), a leading minus sign or that overflow return 0.
func RepsValue(r models.Reps) int {
	s := strings.TrimSpace(string(r))
	if strings.HasPrefix(s, "-") {
		return 0
	}
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return atoiOrZero(s[start:i])
		}
	}
	if start >= 0 {
		return atoiOrZero(s[start:])
	}
	return 0
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// PrescriptionVolume returns load × sets × reps for one prescription, or 0
// when any part is malformed or the product is negative or not finite.
func PrescriptionVolume(p models.Prescription) float64 {
	if p.Sets < 0 || p.LoadKg < 0 || math.IsNaN(p.LoadKg) || math.IsInf(p.LoadKg, 0) {
		return 0
	}
	return clampVolume(p.LoadKg * float64(p.Sets) * float64(RepsValue(p.Reps)))
}

// PlanVolume sums the volume of every prescription in the plan. A malformed
// prescription contributes 0 without affecting the rest of the sum.
func PlanVolume(plan models.WorkoutPlan) float64 {
	var total float64
	for _, p := range plan.Prescriptions {
		total += PrescriptionVolume(p)
	}
	return clampVolume(total)
}

// PlanVolumes computes PlanVolume for every plan, active or not, keyed by
// plan ID.
func PlanVolumes(plans []models.WorkoutPlan) map[int64]float64 {
	out := make(map[int64]float64, len(plans))
	for _, plan := range plans {
		out[plan.ID] = PlanVolume(plan)
	}
	return out
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
