package loe

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	appLog "loeoutaged/internal/log"
	"loeoutaged/internal/model"
)

// ResolveEvents binds raw time ranges to a concrete calendar day,
// producing timezone-aware outage events sorted by start.
//
// The midnight rule: when the end reads numerically earlier than the
// start, or is the "24:00" sentinel, the range is cut at midnight of the
// following day rather than wrapped into a second interval. A range that
// fails to parse is logged and skipped; its siblings still resolve.
func ResolveEvents(ranges []TimeRange, date time.Time, loc *time.Location) []model.OutageEvent {
	if loc == nil {
		loc = date.Location()
	}

	events := make([]model.OutageEvent, 0, len(ranges))
	for _, r := range ranges {
		slot, err := slotFromRange(r)
		if err != nil {
			appLog.Warn("failed to parse time range", "start", r.Start, "end", r.End, "err", err)
			continue
		}
		events = append(events, model.OutageEvent{
			Type:  model.EventDefinite,
			Start: minuteOnDate(slot.StartMinute, date, loc),
			End:   minuteOnDate(slot.EndMinute, date, loc),
		})
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

// BindSlot projects one slot template onto a concrete day in loc.
func BindSlot(slot model.OutageSlot, date time.Time, loc *time.Location) model.OutageEvent {
	return model.OutageEvent{
		Type:  slot.Type,
		Start: minuteOnDate(slot.StartMinute, date, loc),
		End:   minuteOnDate(slot.EndMinute, date, loc),
	}
}

// slotFromRange parses a raw pair into a slot template, applying the
// midnight rule to the end minute.
func slotFromRange(r TimeRange) (model.OutageSlot, error) {
	startMin, err := parseClock(r.Start)
	if err != nil {
		return model.OutageSlot{}, err
	}
	endMin, err := parseClock(r.End)
	if err != nil {
		return model.OutageSlot{}, err
	}

	if endMin < startMin || r.End == "24:00" {
		endMin = model.EndOfDayMinute
	}
	if endMin == startMin {
		return model.OutageSlot{}, errors.Errorf("empty range %s-%s", r.Start, r.End)
	}

	return model.OutageSlot{
		StartMinute: startMin,
		EndMinute:   endMin,
		Type:        model.EventDefinite,
	}, nil
}

// parseClock converts "HH:MM" to minutes since midnight. Hours run 0-24
// so the end-of-day sentinel parses; 24 is only valid with 00 minutes.
func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, errors.Errorf("malformed clock value %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errors.Wrapf(err, "hours in %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.Wrapf(err, "minutes in %q", s)
	}
	if hours < 0 || hours > 24 || minutes < 0 || minutes > 59 || (hours == 24 && minutes != 0) {
		return 0, errors.Errorf("clock value %q out of range", s)
	}
	return hours*60 + minutes, nil
}

// minuteOnDate turns minutes-since-midnight into a concrete zoned
// instant on the given day. The end-of-day sentinel lands on midnight of
// the following day; time.Date normalizes the day rollover and keeps
// DST transitions correct.
func minuteOnDate(minute int, date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	if minute >= model.EndOfDayMinute {
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, loc)
}
