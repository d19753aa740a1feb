package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/claude/freecoach/internal/models"
)

func TestRepsValue(t *testing.T) {
	tests := []struct {
		in   models.Reps
		want int
	}{
		{"10", 10},
		{"10-12", 10},
		{" 8 a 12 ", 8},
		{"até a falha", 0},
		{"", 0},
		{"99999999999999999999999", 0},
		{"-10", 0},
		{" -8-10", 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, RepsValue(tt.in))
		})
	}
}

// TestPlanVolume checks load × sets × reps summed over prescriptions.
func TestPlanVolume(t *testing.T) {
	assert.Equal(t, 600.0, PlanVolume(upperA()))

	plan := upperA()
	plan.Prescriptions = append(plan.Prescriptions,
		models.Prescription{Sets: 4, Reps: "8-10", LoadKg: 50},
		models.Prescription{Sets: 3, Reps: "até a falha", LoadKg: 30},
	)
	assert.Equal(t, 600.0+1600.0, PlanVolume(plan))
}

// TestPlanVolumeMalformed verifies bad prescriptions count as zero without
// poisoning the rest of the plan.
func TestPlanVolumeMalformed(t *testing.T) {
	plan := upperA()
	plan.Prescriptions = append(plan.Prescriptions,
		models.Prescription{Sets: -3, Reps: "10", LoadKg: 20},
		models.Prescription{Sets: 3, Reps: "10", LoadKg: math.NaN()},
		models.Prescription{Sets: 3, Reps: "10", LoadKg: math.Inf(1)},
	)
	assert.Equal(t, 600.0, PlanVolume(plan))
	assert.Equal(t, 0.0, PlanVolume(models.WorkoutPlan{ID: 2}))
}

// TestPrescriptionVolumeNegativeFactors checks two negative factors never
// multiply into positive volume.
func TestPrescriptionVolumeNegativeFactors(t *testing.T) {
	tests := []struct {
		name string
		p    models.Prescription
		want float64
	}{
		{"valid", models.Prescription{Sets: 3, Reps: "10", LoadKg: 20}, 600},
		{"negative sets and load", models.Prescription{Sets: -3, Reps: "10", LoadKg: -20}, 0},
		{"negative reps", models.Prescription{Sets: 3, Reps: "-10", LoadKg: 20}, 0},
		{"negative reps and load", models.Prescription{Sets: 3, Reps: "-10", LoadKg: -20}, 0},
		{"negative load", models.Prescription{Sets: 3, Reps: "10", LoadKg: -20}, 0},
		{"range", models.Prescription{Sets: 3, Reps: "10-12", LoadKg: 20}, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrescriptionVolume(tt.p))
		})
	}
}

func TestPlanVolumesIncludesInactive(t *testing.T) {
	active := upperA()
	active.Active = true
	old := upperA()
	old.ID = 2
	got := PlanVolumes([]models.WorkoutPlan{active, old})
	assert.Equal(t, map[int64]float64{1: 600, 2: 600}, got)
}
