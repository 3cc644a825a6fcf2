package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loeoutaged/internal/model"
)

func TestProjectSlots(t *testing.T) {
	loc := kyiv(t)
	firstDay := time.Date(2025, 1, 28, 0, 0, 0, 0, loc)

	slots := []model.OutageSlot{
		{StartMinute: 9 * 60, EndMinute: 13 * 60, Type: model.EventDefinite},
		{StartMinute: 22 * 60, EndMinute: model.EndOfDayMinute, Type: model.EventDefinite},
	}

	events := ProjectSlots(slots, firstDay, 3, loc)
	require.Len(t, events, 6, "every slot appears once per day in the horizon")

	for _, ev := range events {
		assert.Equal(t, model.EventProbable, ev.Type)
		assert.True(t, ev.Start.Before(ev.End))
	}

	// First day's slots bound to 2025-01-28.
	assert.True(t, events[0].Start.Equal(time.Date(2025, 1, 28, 9, 0, 0, 0, loc)))
	assert.True(t, events[1].Start.Equal(time.Date(2025, 1, 28, 22, 0, 0, 0, loc)))
	// End-of-day slot lands on next midnight.
	assert.True(t, events[1].End.Equal(time.Date(2025, 1, 29, 0, 0, 0, 0, loc)))
	// Last day of the horizon.
	assert.Equal(t, 30, events[5].Start.In(loc).Day())
}

func TestProjectSlots_Empty(t *testing.T) {
	loc := kyiv(t)
	firstDay := time.Date(2025, 1, 28, 0, 0, 0, 0, loc)

	assert.Nil(t, ProjectSlots(nil, firstDay, 3, loc))
	assert.Nil(t, ProjectSlots([]model.OutageSlot{{StartMinute: 0, EndMinute: 60}}, firstDay, 0, loc))
}

func TestProjectSlots_SortedByStart(t *testing.T) {
	loc := kyiv(t)
	firstDay := time.Date(2025, 1, 28, 0, 0, 0, 0, loc)

	slots := []model.OutageSlot{
		{StartMinute: 18 * 60, EndMinute: 21 * 60},
		{StartMinute: 7 * 60, EndMinute: 10 * 60},
	}

	events := ProjectSlots(slots, firstDay, 2, loc)
	require.Len(t, events, 4)
	for i := 1; i < len(events); i++ {
		assert.True(t, !events[i].Start.Before(events[i-1].Start))
	}
}
