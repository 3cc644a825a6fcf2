package schedule

import (
	"sync/atomic"
	"time"

	"loeoutaged/internal/loe"
	"loeoutaged/internal/model"
)

// Store holds the most recently published snapshot and answers queries
// for the one configured group.
//
// Publication is a single atomic pointer swap: a new snapshot is built
// fully off to the side by the poller and then swapped in, so readers
// never observe a half-built schedule and never block on a fetch in
// flight. Query methods degrade to absent/empty when no snapshot has
// been published yet, when the schedule date is unknown, or when the
// group is missing from the schedule; they never return errors.
type Store struct {
	group string
	snap  atomic.Pointer[loe.Snapshot]
}

// NewStore creates a store for one group. Group validity is the
// config layer's problem; an unknown group simply never matches.
func NewStore(group string) *Store {
	return &Store{group: group}
}

// Group returns the configured group id.
func (s *Store) Group() string {
	return s.group
}

// Publish replaces the current snapshot as a unit.
func (s *Store) Publish(snap *loe.Snapshot) {
	s.snap.Store(snap)
}

// Snapshot returns the currently published snapshot, or nil before the
// first successful fetch.
func (s *Store) Snapshot() *loe.Snapshot {
	return s.snap.Load()
}

// Events resolves the configured group's events from the current
// snapshot, sorted by start.
func (s *Store) Events() []model.OutageEvent {
	if s.group == "" {
		return nil
	}
	return s.Snapshot().EventsForGroup(s.group)
}

// CurrentEvent returns the event whose [start, end) interval contains
// at. Events of one group never overlap, so the first hit is the only
// hit.
func (s *Store) CurrentEvent(at time.Time) (model.OutageEvent, bool) {
	for _, ev := range s.Events() {
		if ev.Contains(at) {
			return ev, true
		}
	}
	return model.OutageEvent{}, false
}

// NextEvent returns the earliest event starting strictly after at.
func (s *Store) NextEvent(at time.Time) (model.OutageEvent, bool) {
	for _, ev := range s.Events() {
		if ev.Start.After(at) {
			return ev, true
		}
	}
	return model.OutageEvent{}, false
}

// EventsBetween returns every event intersecting the closed range
// [from, to], sorted by start. The overlap test is "neither entirely
// before nor entirely after": an event ending exactly at from, or
// starting exactly at to, is included.
func (s *Store) EventsBetween(from, to time.Time) []model.OutageEvent {
	var out []model.OutageEvent
	for _, ev := range s.Events() {
		if ev.End.Before(from) || ev.Start.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// MergedEventsBetween is EventsBetween followed by the merge pass; the
// presentation shape used by the calendar feed and the events API.
func (s *Store) MergedEventsBetween(from, to time.Time) []model.OutageEvent {
	return MergeConsecutive(s.EventsBetween(from, to))
}

// UpdatedOn reports the provider's "information as of" stamp from the
// current snapshot.
func (s *Store) UpdatedOn() (time.Time, bool) {
	snap := s.Snapshot()
	if snap == nil || snap.UpdatedOn == nil {
		return time.Time{}, false
	}
	return *snap.UpdatedOn, true
}

// NextConnectivity reports when power is expected back: the end of the
// outage covering at, or the end of the next upcoming outage. Merged
// events are used so back-to-back ranges read as one restoration time.
func (s *Store) NextConnectivity(at time.Time, lookaheadDays int) (time.Time, bool) {
	if lookaheadDays <= 0 {
		lookaheadDays = 1
	}
	events := MergeConsecutive(s.EventsBetween(at.AddDate(0, 0, -1), at.AddDate(0, 0, lookaheadDays)))
	for _, ev := range events {
		if ev.Contains(at) {
			return ev.End, true
		}
	}
	for _, ev := range events {
		if ev.Start.After(at) {
			return ev.End, true
		}
	}
	return time.Time{}, false
}

// NextOutage reports the start of the next merged outage after at.
func (s *Store) NextOutage(at time.Time, lookaheadDays int) (time.Time, bool) {
	if lookaheadDays <= 0 {
		lookaheadDays = 1
	}
	events := MergeConsecutive(s.EventsBetween(at, at.AddDate(0, 0, lookaheadDays)))
	for _, ev := range events {
		if ev.Start.After(at) {
			return ev.Start, true
		}
	}
	return time.Time{}, false
}

// ProjectedEvents projects the current schedule's slot templates onto
// the days after the schedule date, as probable outages. Returns nil
// when there is no dated snapshot to project from.
func (s *Store) ProjectedEvents(days int) []model.OutageEvent {
	snap := s.Snapshot()
	if snap == nil || snap.ScheduleDate == nil || s.group == "" || days <= 0 {
		return nil
	}
	slots := snap.SlotsForGroup(s.group)
	firstDay := snap.ScheduleDate.AddDate(0, 0, 1)
	return ProjectSlots(slots, firstDay, days, snap.Location)
}
