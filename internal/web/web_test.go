package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loeoutaged/internal/config"
	"loeoutaged/internal/loe"
	"loeoutaged/internal/metrics"
	"loeoutaged/internal/poller"
	"loeoutaged/internal/schedule"
)

type staticFetcher struct{ html string }

func (s staticFetcher) FetchScheduleHTML(context.Context) (string, error) {
	return s.html, nil
}

func testServer(t *testing.T, group string, ranges map[string][]loe.TimeRange, at time.Time) *Server {
	t.Helper()

	loc, err := time.LoadLocation("Europe/Kyiv")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Group = group

	date := time.Date(2025, 1, 27, 0, 0, 0, 0, loc)
	updated := time.Date(2025, 1, 27, 14, 30, 0, 0, loc)

	store := schedule.NewStore(group)
	store.Publish(&loe.Snapshot{
		ScheduleDate:   &date,
		UpdatedOn:      &updated,
		GroupSchedules: ranges,
		FetchedAt:      at,
		Location:       loc,
	})

	p := poller.New(staticFetcher{}, store, nil, "", loc)
	s := NewServer(cfg, store, p, metrics.New())
	s.now = func() time.Time { return at }
	return s
}

func scheduledRanges() map[string][]loe.TimeRange {
	return map[string][]loe.TimeRange{
		"3.1": {{Start: "09:00", End: "11:00"}, {Start: "11:00", End: "13:00"}},
	}
}

func kyivTime(hour, min int) time.Time {
	loc, _ := time.LoadLocation("Europe/Kyiv")
	return time.Date(2025, 1, 27, hour, min, 0, 0, loc)
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t, "3.1", scheduledRanges(), kyivTime(8, 0))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHandleStatus_DuringOutage(t *testing.T) {
	s := testServer(t, "3.1", scheduledRanges(), kyivTime(10, 0))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "3.1", resp.Group)
	assert.Equal(t, stateOutage, resp.State)
	require.NotNil(t, resp.CurrentEvent)
	assert.Equal(t, "Definite", resp.CurrentEvent.Type)
	require.NotNil(t, resp.NextConnectivity, "restoration time expected while in outage")
	assert.True(t, resp.NextConnectivity.Equal(kyivTime(13, 0)), "back-to-back ranges merge into one restoration")
	require.NotNil(t, resp.ScheduleUpdatedOn)
	assert.True(t, resp.ScheduleUpdatedOn.Equal(kyivTime(14, 30)))
}

func TestHandleStatus_NormalState(t *testing.T) {
	s := testServer(t, "3.1", scheduledRanges(), kyivTime(7, 0))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, stateNormal, resp.State)
	assert.Nil(t, resp.CurrentEvent)
	require.NotNil(t, resp.NextOutage)
	assert.True(t, resp.NextOutage.Equal(kyivTime(9, 0)))
}

func TestHandleEvents_MergedWindow(t *testing.T) {
	s := testServer(t, "3.1", scheduledRanges(), kyivTime(0, 0))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?days=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp eventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Events, 1, "adjacent ranges coalesce for presentation")
	assert.True(t, resp.Events[0].Start.Equal(kyivTime(9, 0)))
	assert.True(t, resp.Events[0].End.Equal(kyivTime(13, 0)))
	assert.Equal(t, "Europe/Kyiv", resp.Timezone)
}

func TestHandleEvents_AbsentGroupIsEmptyList(t *testing.T) {
	s := testServer(t, "4.2", scheduledRanges(), kyivTime(0, 0))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp eventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Events)
}

func TestHandleSchedule_DumpsRawSnapshot(t *testing.T) {
	s := testServer(t, "3.1", scheduledRanges(), kyivTime(12, 0))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp scheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.NotNil(t, resp.ScheduleDate)
	require.Contains(t, resp.GroupSchedules, "3.1")
	assert.Equal(t, "09:00", resp.GroupSchedules["3.1"][0].Start)
}

func TestHandleCalendar(t *testing.T) {
	s := testServer(t, "3.1", scheduledRanges(), kyivTime(8, 0))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calendar.ics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"),
		"one merged definite event plus one projected probable day")
	assert.Contains(t, body, "SUMMARY:"+outageSummary)
	assert.Contains(t, body, "DESCRIPTION:Probable")
}

func TestBasicAuth(t *testing.T) {
	s := testServer(t, "3.1", scheduledRanges(), kyivTime(8, 0))
	s.cfg.BasicAuth = &config.BasicAuthConfig{Username: "ops", Password: "secret"}
	h := s.Handler()

	t.Run("health is exempt", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing credentials rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid credentials accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		req.SetBasicAuth("ops", "secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
