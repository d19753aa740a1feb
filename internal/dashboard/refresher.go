package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/metrics"
)

// Invalidator drops cached records of a student. source.Cache implements it.
type Invalidator interface {
	Invalidate(studentID int64)
}

// Refresher re-fetches the tracked student on a fixed interval and when
// Trigger is called, then hands accepted snapshots to OnUpdate.
type Refresher struct {
	loader   *Loader
	tracker  *Tracker
	interval time.Duration
	cache    Invalidator
	metrics  *metrics.Manager
	log      *slog.Logger
	opts     func() LoadOptions

	trigger chan struct{}

	// OnUpdate is called from the refresh goroutine for every accepted
	// snapshot. It must not block for long.
	OnUpdate func(*Snapshot)
}

// NewRefresher creates a Refresher. A zero interval disables the ticker;
// only Trigger starts a cycle then. cache and m may be nil.
func NewRefresher(loader *Loader, tracker *Tracker, interval time.Duration, cache Invalidator, m *metrics.Manager, log *slog.Logger) *Refresher {
	return &Refresher{
		loader:   loader,
		tracker:  tracker,
		interval: interval,
		cache:    cache,
		metrics:  m,
		log:      log,
		opts:     func() LoadOptions { return LoadOptions{} },
		trigger:  make(chan struct{}, 1),
	}
}

// SetOptions sets how each cycle's load is scoped.
func (r *Refresher) SetOptions(f func() LoadOptions) { r.opts = f }

// Trigger requests an immediate refresh. Requests made while one is already
// pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes until ctx is canceled.
func (r *Refresher) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			r.cycle(ctx, "interval")
		case <-r.trigger:
			r.cycle(ctx, "signal")
		}
	}
}

// cycle loads the selected student once. Interval cycles bypass the cache
// so they observe writes made elsewhere.
func (r *Refresher) cycle(ctx context.Context, trigger string) {
	tk, ok := r.tracker.Begin()
	if !ok {
		return
	}
	log := r.log.With("cycle_id", uuid.NewString(), "trigger", trigger, "student_id", tk.StudentID)

	if trigger == "interval" && r.cache != nil {
		r.cache.Invalidate(tk.StudentID)
	}

	snap, err := r.loader.Load(ctx, tk.StudentID, r.opts())
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("refresh failed", "error", err)
		}
		r.count(trigger, "error")
		return
	}
	if !r.tracker.Accept(tk, snap) {
		log.Debug("discarding stale snapshot", "generation", tk.Generation)
		r.count(trigger, "stale")
		return
	}
	log.Debug("snapshot refreshed", "generation", tk.Generation, "sessions", len(snap.Sessions))
	r.count(trigger, "ok")
	if r.OnUpdate != nil {
		r.OnUpdate(snap)
	}
}

func (r *Refresher) count(trigger, result string) {
	if r.metrics != nil {
		r.metrics.CounterRefreshCycles.WithLabelValues(trigger, result).Inc()
	}
}
