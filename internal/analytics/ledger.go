package analytics

import (
	"sort"
	"time"

	"github.com/claude/freecoach/internal/models"
)

// Entry is a session paired with its classified outcome.
type Entry struct {
	Session models.Session `json:"session"`
	Outcome Outcome        `json:"-"`
	Kind    OutcomeKind    `json:"outcome"`
}

// Ledger holds the classified sessions of one student, ordered by time and
// then ID. Sessions that failed classification are kept in Violations and
// left out of Entries.
type Ledger struct {
	Entries    []Entry
	Violations []*IntegrityError
}

// NewLedger classifies every session.
func NewLedger(sessions []models.Session) *Ledger {
	l := &Ledger{Entries: make([]Entry, 0, len(sessions))}
	for _, s := range sessions {
		o, err := Classify(s)
		if err != nil {
			l.Violations = append(l.Violations, err.(*IntegrityError))
			continue
		}
		l.Entries = append(l.Entries, Entry{Session: s, Outcome: o, Kind: o.Kind()})
	}
	sort.SliceStable(l.Entries, func(i, j int) bool {
		a, b := l.Entries[i].Session, l.Entries[j].Session
		if !a.Time.Equal(b.Time.Time) {
			return a.Time.Before(b.Time.Time)
		}
		return a.ID < b.ID
	})
	sort.SliceStable(l.Violations, func(i, j int) bool {
		return l.Violations[i].SessionID < l.Violations[j].SessionID
	})
	return l
}

// Between returns the entries with from <= time < to. A zero bound is open.
func (l *Ledger) Between(from, to time.Time) []Entry {
	var out []Entry
	for _, e := range l.Entries {
		t := e.Session.Time.Time
		if !from.IsZero() && t.Before(from) {
			continue
		}
		if !to.IsZero() && !t.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// OfKind returns the entries with the given outcome kind.
func (l *Ledger) OfKind(kind OutcomeKind) []Entry {
	var out []Entry
	for _, e := range l.Entries {
		if e.Outcome.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

// PlanSet is a set of currently known plan IDs.
type PlanSet map[int64]struct{}

// PlanIDs collects the IDs of plans, active or not.
func PlanIDs(plans []models.WorkoutPlan) PlanSet {
	set := make(PlanSet, len(plans))
	for _, p := range plans {
		set[p.ID] = struct{}{}
	}
	return set
}

// Has reports whether id is in the set.
func (s PlanSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// FilterRealized returns the realized entries whose plan is still in
// planIDs. Entries pointing at a plan that no longer resolves are dropped;
// they never turn into zero-volume points.
func FilterRealized(entries []Entry, planIDs PlanSet) []Entry {
	kept, _ := partitionRealized(entries, planIDs)
	return kept
}

func partitionRealized(entries []Entry, planIDs PlanSet) (kept, unresolved []Entry) {
	for _, e := range entries {
		id, ok := e.Outcome.PlanID()
		if !ok {
			continue
		}
		if planIDs.Has(id) {
			kept = append(kept, e)
		} else {
			unresolved = append(unresolved, e)
		}
	}
	return kept, unresolved
}
