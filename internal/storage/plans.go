package storage

import (
	"context"

	"github.com/claude/freecoach/internal/models"
)

// ListPlans returns all plans of a student, active or not, each with its
// prescriptions in insertion order.
func (db *DB) ListPlans(ctx context.Context, studentID int64) ([]models.WorkoutPlan, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, aluno_id, titulo, objetivo_estrategico, esta_ativo, data_criacao
		 FROM planos_treino
		 WHERE aluno_id = $1
		 ORDER BY data_criacao, id`, studentID)
	if err != nil {
		return nil, wrap("querying plans", err)
	}
	defer rows.Close()

	var plans []models.WorkoutPlan
	index := make(map[int64]int)
	for rows.Next() {
		var p models.WorkoutPlan
		if err := rows.Scan(&p.ID, &p.StudentID, &p.Title, &p.Objective, &p.Active, &p.CreatedAt.Time); err != nil {
			return nil, wrap("scanning plan", err)
		}
		p.Prescriptions = []models.Prescription{}
		index[p.ID] = len(plans)
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterating plans", err)
	}
	if len(plans) == 0 {
		return plans, nil
	}

	ids := make([]int64, 0, len(plans))
	for _, p := range plans {
		ids = append(ids, p.ID)
	}
	prows, err := db.Pool.Query(ctx,
		`SELECT id, plano_treino_id, nome_exercicio, series, repeticoes, COALESCE(carga_kg, 0),
		 tempo_descanso_segundos, notas_tecnicas
		 FROM prescricoes_exercicio
		 WHERE plano_treino_id = ANY($1)
		 ORDER BY plano_treino_id, id`, ids)
	if err != nil {
		return nil, wrap("querying prescriptions", err)
	}
	defer prows.Close()

	for prows.Next() {
		var rx models.Prescription
		var reps string
		if err := prows.Scan(&rx.ID, &rx.PlanID, &rx.Exercise, &rx.Sets, &reps, &rx.LoadKg,
			&rx.RestSeconds, &rx.Notes); err != nil {
			return nil, wrap("scanning prescription", err)
		}
		rx.Reps = models.Reps(reps)
		i := index[rx.PlanID]
		plans[i].Prescriptions = append(plans[i].Prescriptions, rx)
	}
	return plans, wrap("iterating prescriptions", prows.Err())
}
