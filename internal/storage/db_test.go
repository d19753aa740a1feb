package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/models"
)

// TestWrap verifies missing rows map to ErrNotFound while every other
// failure is reported as an unavailable source.
func TestWrap(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		wantNotFound    bool
		wantUnavailable bool
	}{
		{name: "nil", err: nil},
		{name: "no rows", err: pgx.ErrNoRows, wantNotFound: true},
		{name: "connection", err: errors.New("dial tcp: connection refused"), wantUnavailable: true},
		{name: "canceled", err: context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrap("querying", tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("wrap(nil) = %v", got)
				}
				return
			}
			if errors.Is(got, models.ErrNotFound) != tt.wantNotFound {
				t.Errorf("not found = %v, want %v (%v)", !tt.wantNotFound, tt.wantNotFound, got)
			}
			if errors.Is(got, analytics.ErrSourceUnavailable) != tt.wantUnavailable {
				t.Errorf("unavailable = %v, want %v (%v)", !tt.wantUnavailable, tt.wantUnavailable, got)
			}
		})
	}
}
