package dashboard

import (
	"sync"

	"github.com/claude/freecoach/internal/metrics"
)

// Ticket identifies one load started for the selected student.
type Ticket struct {
	StudentID  int64
	Generation uint64
}

// Tracker holds the currently selected student and the newest snapshot
// loaded for it. Loads race with selection changes; a snapshot is only
// accepted if its ticket is still for the selected student and newer than
// what is already held.
type Tracker struct {
	metrics *metrics.Manager

	mu        sync.Mutex
	selected  bool
	subject   int64
	next      uint64
	selectGen uint64
	current   *Snapshot
}

// NewTracker creates an empty Tracker. m may be nil.
func NewTracker(m *metrics.Manager) *Tracker {
	return &Tracker{metrics: m}
}

// Select switches to studentID and returns the ticket for its first load.
// Loads begun for the previous subject can no longer be accepted.
func (t *Tracker) Select(studentID int64) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.selected = true
	t.subject = studentID
	t.selectGen = t.next
	t.current = nil
	return Ticket{StudentID: studentID, Generation: t.next}
}

// Begin issues a ticket for reloading the selected student. ok is false
// when nothing is selected.
func (t *Tracker) Begin() (tk Ticket, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.selected {
		return Ticket{}, false
	}
	t.next++
	return Ticket{StudentID: t.subject, Generation: t.next}, true
}

// Accept stores snap if tk is still current and reports whether it did.
func (t *Tracker) Accept(tk Ticket, snap *Snapshot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	stale := !t.selected ||
		tk.StudentID != t.subject ||
		tk.Generation < t.selectGen ||
		(t.current != nil && tk.Generation <= t.current.Generation)
	if stale {
		if t.metrics != nil {
			t.metrics.CounterStaleDiscarded.Inc()
		}
		return false
	}
	snap.Generation = tk.Generation
	t.current = snap
	return true
}

// Current returns the accepted snapshot of the selected student, or nil.
func (t *Tracker) Current() *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Subject returns the selected student.
func (t *Tracker) Subject() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subject, t.selected
}
