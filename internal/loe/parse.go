package loe

import (
	"regexp"
	"time"

	appLog "loeoutaged/internal/log"
)

// Patterns for the Ukrainian schedule prose. Each one is matched
// independently; the text is free-form, so a wording change in one
// phrase must not break extraction of the others.
var (
	// "Графік погодинних відключень на 27.01.2025"
	datePattern = regexp.MustCompile(`Графік погодинних відключень на (\d{2}\.\d{2}\.\d{4})`)
	// "Інформація станом на 14:30 27.01.2025"
	updatePattern = regexp.MustCompile(`Інформація станом на (\d{2}:\d{2}) (\d{2}\.\d{2}\.\d{4})`)
	// "Група 3.1. Електроенергії немає з 09:00 до 13:00, з 18:00 до 21:00."
	groupPattern = regexp.MustCompile(`Група (\d\.\d)\.\s*Електроенергії немає\s+(.+?)\.`)
	// "з 09:00 до 13:00"
	rangePattern = regexp.MustCompile(`з (\d{2}:\d{2}) до (\d{2}:\d{2})`)
)

const (
	dateLayout      = "02.01.2006"
	updatedOnLayout = "02.01.2006 15:04"
)

// ParseScheduleText runs the three extractors over normalized schedule
// text and assembles a snapshot. It never fails: an extractor that finds
// nothing leaves its field absent and is logged as a warning.
//
// loc is the regional civil timezone ("Europe/Kyiv"); both the schedule
// date and the updated-on stamp are wall-clock values in that zone.
func ParseScheduleText(text string, loc *time.Location) *Snapshot {
	snap := &Snapshot{
		GroupSchedules: map[string][]TimeRange{},
		Location:       loc,
	}
	if text == "" {
		return snap
	}

	snap.ScheduleDate = extractScheduleDate(text, loc)
	snap.UpdatedOn = extractUpdatedOn(text, loc)
	snap.GroupSchedules = extractGroupSchedules(text)
	return snap
}

func extractScheduleDate(text string, loc *time.Location) *time.Time {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		appLog.Warn("schedule date not found in text")
		return nil
	}
	date, err := time.ParseInLocation(dateLayout, m[1], loc)
	if err != nil {
		appLog.Warn("failed to parse schedule date", "date", m[1], "err", err)
		return nil
	}
	return &date
}

func extractUpdatedOn(text string, loc *time.Location) *time.Time {
	m := updatePattern.FindStringSubmatch(text)
	if m == nil {
		appLog.Warn("update time not found in text")
		return nil
	}
	// Phrase order is "HH:MM DD.MM.YYYY"; parse as one naive wall-clock
	// value and attach the regional zone.
	stamp, err := time.ParseInLocation(updatedOnLayout, m[2]+" "+m[1], loc)
	if err != nil {
		appLog.Warn("failed to parse update time", "time", m[1], "date", m[2], "err", err)
		return nil
	}
	return &stamp
}

func extractGroupSchedules(text string) map[string][]TimeRange {
	schedules := map[string][]TimeRange{}
	for _, m := range groupPattern.FindAllStringSubmatch(text, -1) {
		group := m[1]
		trailing := m[2]

		var ranges []TimeRange
		for _, rm := range rangePattern.FindAllStringSubmatch(trailing, -1) {
			ranges = append(ranges, TimeRange{Start: rm[1], End: rm[2]})
		}
		// A group with unmatched trailing text keeps an empty range
		// list rather than disappearing from the map.
		schedules[group] = ranges
		appLog.Debug("parsed group schedule", "group", group, "range_count", len(ranges))
	}
	return schedules
}
