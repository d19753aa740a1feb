package storage

import (
	"context"

	"github.com/claude/freecoach/internal/models"
)

const paymentColumns = `id, aluno_id, valor, forma_pagamento, data_pagamento, referencia_mes,
	quantidade_aulas, observacao`

// ListPayments returns a student's payments, oldest first.
func (db *DB) ListPayments(ctx context.Context, studentID int64) ([]models.Payment, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM pagamentos WHERE aluno_id = $1 ORDER BY data_pagamento, id`,
		studentID)
	if err != nil {
		return nil, wrap("querying payments", err)
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.StudentID, &p.Amount, &p.Method, &p.PaidOn.Time, &p.Reference,
			&p.Credits, &p.Note); err != nil {
			return nil, wrap("scanning payment", err)
		}
		out = append(out, p)
	}
	return out, wrap("iterating payments", rows.Err())
}

// ListAllPayments returns every payment, for the finance summary.
func (db *DB) ListAllPayments(ctx context.Context) ([]models.Payment, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM pagamentos ORDER BY data_pagamento, id`)
	if err != nil {
		return nil, wrap("querying payments", err)
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.StudentID, &p.Amount, &p.Method, &p.PaidOn.Time, &p.Reference,
			&p.Credits, &p.Note); err != nil {
			return nil, wrap("scanning payment", err)
		}
		out = append(out, p)
	}
	return out, wrap("iterating payments", rows.Err())
}
