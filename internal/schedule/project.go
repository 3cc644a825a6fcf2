package schedule

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "loeoutaged/internal/log"
	"loeoutaged/internal/loe"
	"loeoutaged/internal/model"
)

// ProjectSlots expands daily slot templates across a lookahead horizon.
//
// The provider only ever publishes one day at a time, but the pattern
// tends to repeat, so the calendar feed shows the published day's slots
// on the following days as probable outages. Expansion runs through a
// DAILY recurrence rule starting at firstDay midnight for the given
// number of days; each occurrence date gets every slot bound to it.
func ProjectSlots(slots []model.OutageSlot, firstDay time.Time, days int, loc *time.Location) []model.OutageEvent {
	if len(slots) == 0 || days <= 0 {
		return nil
	}
	if loc == nil {
		loc = firstDay.Location()
	}

	y, m, d := firstDay.In(loc).Date()
	dtstart := time.Date(y, m, d, 0, 0, 0, 0, loc)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Count:   days,
		Dtstart: dtstart,
	})
	if err != nil {
		appLog.Error("failed to build projection rule", err, "days", days)
		return nil
	}

	var events []model.OutageEvent
	for _, day := range rule.All() {
		day = day.In(loc)
		for _, slot := range slots {
			projected := slot
			projected.Type = model.EventProbable
			events = append(events, loe.BindSlot(projected, day, loc))
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events
}
