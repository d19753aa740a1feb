package models

import (
	"encoding/json"
	"time"
)

// DefaultRestSeconds is the rest time assumed when a prescription omits it.
const DefaultRestSeconds = 60

// Student is a coached client as exposed by the data service. Plans and
// payments are only populated by sources that return the nested tree.
type Student struct {
	ID              int64         `json:"id"`
	Name            string        `json:"nome"`
	CPF             string        `json:"cpf"`
	StartDate       FlexTime      `json:"data_inicio"`
	DueDay          int           `json:"dia_vencimento"`
	WeeklyFrequency int           `json:"frequencia_semanal_plano"`
	MonthlyFee      float64       `json:"valor_mensalidade"`
	Age             *int          `json:"idade,omitempty"`
	Goal            *string       `json:"objetivo,omitempty"`
	Restrictions    *string       `json:"restricoes,omitempty"`
	Plans           []WorkoutPlan `json:"planos_treino,omitempty"`
	Payments        []Payment     `json:"pagamentos,omitempty"`
}

// WorkoutPlan is a named group of prescriptions assigned to a student.
// Only Active and the prescription list change after creation.
type WorkoutPlan struct {
	ID            int64          `json:"id"`
	StudentID     int64          `json:"aluno_id"`
	Title         string         `json:"titulo"`
	Objective     *string        `json:"objetivo_estrategico,omitempty"`
	Active        bool           `json:"esta_ativo"`
	CreatedAt     FlexTime       `json:"data_criacao"`
	Prescriptions []Prescription `json:"prescricoes"`
}

// Prescription is one exercise's target within a plan.
type Prescription struct {
	ID          int64   `json:"id"`
	PlanID      int64   `json:"plano_treino_id"`
	Exercise    string  `json:"nome_exercicio"`
	Sets        int     `json:"series"`
	Reps        Reps    `json:"repeticoes"`
	LoadKg      float64 `json:"carga_kg"`
	RestSeconds int     `json:"tempo_descanso_segundos"`
	Notes       *string `json:"notas_tecnicas,omitempty"`
}

// UnmarshalJSON applies the rest-time default before decoding, so an absent
// field keeps DefaultRestSeconds while an explicit zero stays zero.
func (p *Prescription) UnmarshalJSON(data []byte) error {
	type alias Prescription
	a := alias{RestSeconds: DefaultRestSeconds}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = Prescription(a)
	return nil
}

// Session is a raw check-in record. Its outcome is derived from Realized,
// NeedsMakeup and PlanID by the analytics ledger.
type Session struct {
	ID              int64    `json:"id"`
	StudentID       int64    `json:"aluno_id"`
	PlanID          *int64   `json:"plano_treino_id"`
	Time            FlexTime `json:"data_hora"`
	Realized        bool     `json:"realizada"`
	NeedsMakeup     bool     `json:"precisa_reposicao"`
	PerformanceNote *string  `json:"observacoes_performance,omitempty"`
	AbsenceReason   *string  `json:"motivo_ausencia,omitempty"`
}

// UnmarshalJSON also accepts the makeup flag under the backend's
// reposicao_agendada name.
func (s *Session) UnmarshalJSON(data []byte) error {
	type alias Session
	var a struct {
		alias
		Scheduled *bool `json:"reposicao_agendada"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = Session(a.alias)
	if a.Scheduled != nil && *a.Scheduled {
		s.NeedsMakeup = true
	}
	return nil
}

// Note returns the free-text note relevant to the session: the performance
// note when trained, the absence reason otherwise.
func (s Session) Note() string {
	if s.Realized {
		if s.PerformanceNote != nil {
			return *s.PerformanceNote
		}
		return ""
	}
	if s.AbsenceReason != nil {
		return *s.AbsenceReason
	}
	return ""
}

// Payment is an additive grant; it is never mutated, only deleted.
type Payment struct {
	ID        int64    `json:"id"`
	StudentID int64    `json:"aluno_id"`
	Amount    float64  `json:"valor"`
	Method    string   `json:"forma_pagamento"`
	PaidOn    FlexTime `json:"data_pagamento"`
	Reference string   `json:"referencia_mes"`
	Credits   int      `json:"quantidade_aulas"`
	Note      *string  `json:"observacao,omitempty"`
}

// Int64 returns a pointer to v. Handy for optional plan references.
func Int64(v int64) *int64 { return &v }

// At wraps t as a FlexTime.
func At(t time.Time) FlexTime { return FlexTime{Time: t} }
