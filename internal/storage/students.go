package storage

import (
	"context"

	"github.com/claude/freecoach/internal/models"
)

const studentColumns = `id, nome, COALESCE(cpf, ''), data_inicio, dia_vencimento, frequencia_semanal,
	valor_mensalidade, idade, objetivo, restricoes`

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (models.Student, error) {
	var st models.Student
	err := row.Scan(&st.ID, &st.Name, &st.CPF, &st.StartDate.Time, &st.DueDay, &st.WeeklyFrequency,
		&st.MonthlyFee, &st.Age, &st.Goal, &st.Restrictions)
	return st, err
}

// ListStudents returns every student ordered by name.
func (db *DB) ListStudents(ctx context.Context) ([]models.Student, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+studentColumns+` FROM alunos ORDER BY nome, id`)
	if err != nil {
		return nil, wrap("querying students", err)
	}
	defer rows.Close()

	var out []models.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, wrap("scanning student", err)
		}
		out = append(out, st)
	}
	return out, wrap("iterating students", rows.Err())
}

// GetStudent returns one student without nested plans or payments.
func (db *DB) GetStudent(ctx context.Context, studentID int64) (*models.Student, error) {
	st, err := scanStudent(db.Pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM alunos WHERE id = $1`, studentID))
	if err != nil {
		return nil, wrap("querying student", err)
	}
	return &st, nil
}
