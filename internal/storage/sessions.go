package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/claude/freecoach/internal/models"
)

// ListSessions retrieves a student's sessions with from <= data_hora < to,
// ordered by time. Zero bounds are open.
func (db *DB) ListSessions(ctx context.Context, studentID int64, from, to time.Time) ([]models.Session, error) {
	conds := []string{"aluno_id = $1"}
	args := []any{studentID}
	if !from.IsZero() {
		args = append(args, models.WallClock(from))
		conds = append(conds, fmt.Sprintf("data_hora >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, models.WallClock(to))
		conds = append(conds, fmt.Sprintf("data_hora < $%d", len(args)))
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT id, aluno_id, plano_treino_id, data_hora, realizada, precisa_reposicao,
		 observacoes_performance, motivo_ausencia
		 FROM sessoes_treino
		 WHERE `+strings.Join(conds, " AND ")+`
		 ORDER BY data_hora, id`, args...)
	if err != nil {
		return nil, wrap("querying sessions", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.StudentID, &s.PlanID, &s.Time.Time, &s.Realized, &s.NeedsMakeup,
			&s.PerformanceNote, &s.AbsenceReason); err != nil {
			return nil, wrap("scanning session", err)
		}
		out = append(out, s)
	}
	return out, wrap("iterating sessions", rows.Err())
}
