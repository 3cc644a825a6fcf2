package schedule

import "loeoutaged/internal/model"

// MergeConsecutive coalesces a start-sorted event list so that
// back-to-back ranges of the same type ("з 09:00 до 10:00, з 10:00 до
// 13:00") display as one contiguous outage. Only a zero gap joins: a
// one-minute gap keeps the neighbors separate, as do differing types.
//
// The input is not mutated and the pass is idempotent; point queries
// never go through it.
func MergeConsecutive(events []model.OutageEvent) []model.OutageEvent {
	if len(events) == 0 {
		return nil
	}

	merged := make([]model.OutageEvent, 0, len(events))
	current := events[0]
	for _, ev := range events[1:] {
		if ev.Type == current.Type && ev.Start.Equal(current.End) {
			current.End = ev.End
			continue
		}
		merged = append(merged, current)
		current = ev
	}
	return append(merged, current)
}
