package loe

import (
	"time"

	"loeoutaged/internal/model"
)

// TimeRange is a raw "HH:MM"–"HH:MM" pair exactly as it appeared in the
// schedule text, before interval resolution.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Snapshot is the full parsed result of one successful fetch cycle.
//
// A snapshot is built off to the side and published as a unit; it is
// never mutated afterwards, so readers may hold and query it without
// locking. Absent fields stay nil: the parser's extractors are
// independent and a provider formatting change in one phrase must not
// blank out the others.
type Snapshot struct {
	// ScheduleDate is midnight of the schedule's effective day in the
	// regional timezone, or nil when the date phrase was not found.
	// Without it no events can be resolved.
	ScheduleDate *time.Time

	// UpdatedOn is the provider's "information as of" stamp, or nil.
	UpdatedOn *time.Time

	// GroupSchedules maps group id ("3.1") to its raw ranges in source
	// order.
	GroupSchedules map[string][]TimeRange

	// FetchedAt records when this snapshot was produced.
	FetchedAt time.Time

	// Location is the regional civil timezone the ranges resolve in.
	Location *time.Location
}

// EventsForGroup resolves the raw ranges of one group against the
// schedule date. It returns nil when the date is unknown or the group
// is absent from the schedule; resolution happens lazily per query, the
// snapshot itself only stores raw strings.
func (s *Snapshot) EventsForGroup(group string) []model.OutageEvent {
	if s == nil || s.ScheduleDate == nil {
		return nil
	}
	ranges, ok := s.GroupSchedules[group]
	if !ok {
		return nil
	}
	return ResolveEvents(ranges, *s.ScheduleDate, s.Location)
}

// SlotsForGroup converts one group's raw ranges into daily slot
// templates without binding them to a date. Malformed ranges are
// skipped the same way ResolveEvents skips them.
func (s *Snapshot) SlotsForGroup(group string) []model.OutageSlot {
	if s == nil {
		return nil
	}
	ranges, ok := s.GroupSchedules[group]
	if !ok {
		return nil
	}
	slots := make([]model.OutageSlot, 0, len(ranges))
	for _, r := range ranges {
		slot, err := slotFromRange(r)
		if err != nil {
			continue
		}
		slots = append(slots, slot)
	}
	return slots
}
