package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDataIntegrity marks records that break an outcome invariant, such as
	// a realized session without a plan reference.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrSourceUnavailable marks failures to obtain records from a data
	// source. It is distinct from an empty result.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// IntegrityError describes one session that could not be classified.
type IntegrityError struct {
	SessionID int64     `json:"session_id"`
	At        time.Time `json:"at"`
	PlanID    *int64    `json:"plan_id,omitempty"`
	Reason    string    `json:"reason"`
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("session %d: %s", e.SessionID, e.Reason)
}

func (e *IntegrityError) Unwrap() error { return ErrDataIntegrity }

// SourceError wraps a failure of the named data source.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s source unavailable: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() []error { return []error{ErrSourceUnavailable, e.Err} }

// Unavailable wraps err as a SourceError for source. Nil errors, errors that
// already carry ErrSourceUnavailable and context cancellation pass through
// unchanged.
func Unavailable(source string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSourceUnavailable) || errors.Is(err, context.Canceled) {
		return err
	}
	return &SourceError{Source: source, Err: err}
}
