package model

import "time"

// OutageEventType classifies an outage event. The provider currently
// publishes only confirmed outages; Probable is produced locally when
// slot templates are projected onto future days.
type OutageEventType string

const (
	EventDefinite OutageEventType = "Definite"
	EventProbable OutageEventType = "Probable"
)

// OutageEvent is a concrete, dated interval during which a group has no
// power. Values are never mutated after construction; Start < End always
// holds for events built by the resolver.
type OutageEvent struct {
	Type  OutageEventType
	Start time.Time
	End   time.Time
}

// Contains reports whether at falls inside the half-open interval
// [Start, End).
func (e OutageEvent) Contains(at time.Time) bool {
	return !at.Before(e.Start) && at.Before(e.End)
}

// EndOfDayMinute is the sentinel slot boundary meaning midnight of the
// following day ("24:00" in the published schedule).
const EndOfDayMinute = 24 * 60

// OutageSlot is a recurring daily pattern before it is bound to a
// concrete date: minutes since midnight, EndMinute may be the
// end-of-day sentinel.
type OutageSlot struct {
	StartMinute int
	EndMinute   int
	Type        OutageEventType
}

// AvailableGroups lists every consumer group LOE publishes a schedule for.
var AvailableGroups = []string{
	"1.1", "1.2",
	"2.1", "2.2",
	"3.1", "3.2",
	"4.1", "4.2",
	"5.1", "5.2",
	"6.1", "6.2",
}

// IsValidGroup reports whether g is one of the published groups.
func IsValidGroup(g string) bool {
	for _, known := range AvailableGroups {
		if g == known {
			return true
		}
	}
	return false
}
