package analytics

import (
	"time"

	"github.com/claude/freecoach/internal/models"
)

func day(s string) time.Time {
	t, err := models.ParseFlexTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func realized(id, planID int64, at string) models.Session {
	return models.Session{ID: id, StudentID: 1, PlanID: models.Int64(planID), Time: models.At(day(at)), Realized: true}
}

func missed(id int64, at string, makeup bool) models.Session {
	return models.Session{ID: id, StudentID: 1, Time: models.At(day(at)), NeedsMakeup: makeup}
}

func upperA() models.WorkoutPlan {
	return models.WorkoutPlan{
		ID:    1,
		Title: "Upper A",
		Prescriptions: []models.Prescription{
			{ID: 10, PlanID: 1, Exercise: "Supino reto", Sets: 3, Reps: "10", LoadKg: 20},
		},
	}
}
