package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/claude/freecoach/internal/analytics"
)

// newTestServer creates an httptest server that routes requests to handler
// functions keyed by path.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeRaw(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

const studentJSON = `{
  "id": 7, "nome": "Ana", "cpf": "000", "data_inicio": "2025-08-01",
  "dia_vencimento": 10, "frequencia_semanal_plano": 3, "valor_mensalidade": 250.0,
  "planos_treino": [{
    "id": 1, "titulo": "Upper A", "esta_ativo": true, "data_criacao": "2025-08-01T10:00:00",
    "prescricoes": [{"id": 10, "plano_treino_id": 1, "nome_exercicio": "Supino", "series": 3, "repeticoes": "10", "carga_kg": 20}]
  }],
  "pagamentos": [{"id": 3, "valor": 250.0, "forma_pagamento": "pix", "data_pagamento": "2026-02-01",
    "referencia_mes": "02/2026", "quantidade_aulas": 8}]
}`

// TestGetStudentNested verifies plans and payments are read from the nested
// student resource and back-filled with the student ID.
func TestGetStudentNested(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/alunos/7": func(w http.ResponseWriter, r *http.Request) { writeRaw(w, studentJSON) },
	})
	defer ts.Close()

	c := NewHTTPClient(ts.URL+"/", 0)
	plans, err := c.ListPlans(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if len(plans) != 1 || plans[0].StudentID != 7 {
		t.Fatalf("plans = %+v", plans)
	}
	if got := plans[0].Prescriptions[0].RestSeconds; got != 60 {
		t.Errorf("rest = %d, want default 60", got)
	}

	payments, err := c.ListPayments(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(payments) != 1 || payments[0].Credits != 8 || payments[0].StudentID != 7 {
		t.Errorf("payments = %+v", payments)
	}
}

func TestGetStudentNotFound(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/alunos/8": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			writeRaw(w, `{"detail":"Aluno não encontrado"}`)
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL, 0).GetStudent(context.Background(), 8)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if errors.Is(err, analytics.ErrSourceUnavailable) {
		t.Error("not found must not be reported as unavailable")
	}
}

// TestSourceUnavailable verifies server errors and dead hosts surface as
// ErrSourceUnavailable rather than empty data.
func TestSourceUnavailable(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/alunos/": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})
	defer ts.Close()

	students, err := NewHTTPClient(ts.URL, 0).ListStudents(context.Background())
	if !errors.Is(err, analytics.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if students != nil {
		t.Errorf("students = %v, want nil", students)
	}

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	_, err = NewHTTPClient(dead.URL, time.Second).ListStudents(context.Background())
	if !errors.Is(err, analytics.ErrSourceUnavailable) {
		t.Fatalf("dead host err = %v, want ErrSourceUnavailable", err)
	}
}

// TestListSessionsPaginates checks offset paging stops on a short page and
// the query carries the student and date bounds.
func TestListSessionsPaginates(t *testing.T) {
	var calls int
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/sessoes/": func(w http.ResponseWriter, r *http.Request) {
			calls++
			q := r.URL.Query()
			if q.Get("aluno_id") != "7" || q.Get("de") != "2026-02-01" || q.Get("ate") != "2026-03-01" {
				t.Errorf("query = %s", r.URL.RawQuery)
			}
			offset, _ := strconv.Atoi(q.Get("offset"))
			limit, _ := strconv.Atoi(q.Get("limit"))
			if limit != 2 {
				t.Errorf("limit = %d, want 2", limit)
			}
			var page []map[string]any
			for i := offset; i < offset+limit && i < 3; i++ {
				page = append(page, map[string]any{
					"id": i + 1, "aluno_id": 7, "plano_treino_id": 1,
					"data_hora": fmt.Sprintf("2026-02-0%dT08:00:00", i+1), "realizada": true, "precisa_reposicao": false,
				})
			}
			if page == nil {
				page = []map[string]any{}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(page)
		},
	})
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 0)
	c.pageSize = 2
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sessions, err := c.ListSessions(context.Background(), 7, from, to)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("got %d sessions, want 3", len(sessions))
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if sessions[2].PlanID == nil || *sessions[2].PlanID != 1 {
		t.Errorf("plan id = %v", sessions[2].PlanID)
	}
}

func TestListSessionsCanceled(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/sessoes/": func(w http.ResponseWriter, r *http.Request) { writeRaw(w, `[]`) },
	})
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPClient(ts.URL, 0).ListSessions(ctx, 7, time.Time{}, time.Time{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
