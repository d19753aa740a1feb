package analytics

import (
	"sort"
	"time"

	"github.com/claude/freecoach/internal/models"
)

// DefaultVolumeWindowDays is the trailing window used when none is set.
const DefaultVolumeWindowDays = 90

const dayLayout = "2006-01-02"

// VolumeOptions controls AggregateVolume.
type VolumeOptions struct {
	// WindowDays is the trailing window length. Zero or negative means
	// DefaultVolumeWindowDays.
	WindowDays int
	// Now is the window's end, read by wall clock. Zero means time.Now().
	// The window starts at midnight WindowDays before Now.
	Now time.Time
}

// VolumePoint is the summed volume of the realized sessions on one day.
type VolumePoint struct {
	Date   string  `json:"date"`
	Volume float64 `json:"volume"`
}

// VolumeSeries is the day-bucketed training volume of a window.
type VolumeSeries struct {
	From   time.Time     `json:"from"`
	To     time.Time     `json:"to"`
	Points []VolumePoint `json:"points"`
	// Empty is set when no realized session landed in the window.
	Empty bool `json:"empty"`
	// Unresolved lists realized sessions whose plan no longer exists.
	Unresolved []int64 `json:"unresolved_sessions,omitempty"`
	// Violations lists sessions that failed classification.
	Violations []*IntegrityError `json:"violations,omitempty"`
}

// AggregateVolume builds the per-day volume series for the trailing window
// ending at opts.Now. Days without realized sessions are omitted and points
// are sorted by ascending ISO date. The result depends only on the inputs.
func AggregateVolume(plans []models.WorkoutPlan, sessions []models.Session, opts VolumeOptions) VolumeSeries {
	return AggregateLedgerVolume(plans, NewLedger(sessions), opts)
}

// AggregateLedgerVolume is AggregateVolume over an already classified ledger.
func AggregateLedgerVolume(plans []models.WorkoutPlan, ledger *Ledger, opts VolumeOptions) VolumeSeries {
	days := opts.WindowDays
	if days <= 0 {
		days = DefaultVolumeWindowDays
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = models.WallClock(now)
	from := now.AddDate(0, 0, -days)
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)

	series := VolumeSeries{
		From:   from,
		To:     now,
		Points: []VolumePoint{},
	}

	var inWindow []Entry
	for _, e := range ledger.Entries {
		t := models.WallClock(e.Session.Time.Time)
		if t.Before(from) || t.After(now) {
			continue
		}
		inWindow = append(inWindow, e)
	}
	for _, v := range ledger.Violations {
		at := models.WallClock(v.At)
		if at.Before(from) || at.After(now) {
			continue
		}
		series.Violations = append(series.Violations, v)
	}

	volumeByPlan := PlanVolumes(plans)
	kept, unresolved := partitionRealized(inWindow, PlanIDs(plans))
	for _, e := range unresolved {
		series.Unresolved = append(series.Unresolved, e.Session.ID)
	}

	perDay := make(map[string]float64)
	for _, e := range kept {
		planID, _ := e.Outcome.PlanID()
		day := e.Session.Time.Format(dayLayout)
		perDay[day] += volumeByPlan[planID]
	}

	for day, v := range perDay {
		series.Points = append(series.Points, VolumePoint{Date: day, Volume: v})
	}
	sort.Slice(series.Points, func(i, j int) bool {
		return series.Points[i].Date < series.Points[j].Date
	})
	series.Empty = len(series.Points) == 0
	return series
}
