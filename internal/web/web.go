package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"loeoutaged/internal/config"
	appLog "loeoutaged/internal/log"
	"loeoutaged/internal/metrics"
	"loeoutaged/internal/model"
	"loeoutaged/internal/poller"
	"loeoutaged/internal/schedule"
)

// outageSummary is the fallback event title used in the calendar feed.
const outageSummary = "Electricity Outage"

// Electricity states exposed by /api/status.
const (
	stateNormal = "normal"
	stateOutage = "outage"
)

// Server exposes the query interface over HTTP: status, events in a
// window, a raw snapshot dump for support, an iCalendar feed, and
// Prometheus metrics.
type Server struct {
	cfg    *config.Config
	store  *schedule.Store
	poller *poller.Poller
	met    *metrics.Metrics
	router *mux.Router

	// now is swappable in tests.
	now func() time.Time
}

// NewServer constructs a Server around the store and poller.
func NewServer(cfg *config.Config, store *schedule.Store, p *poller.Poller, met *metrics.Metrics) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		poller: p,
		met:    met,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/api/schedule", s.handleSchedule).Methods(http.MethodGet)
	s.router.HandleFunc("/calendar.ics", s.handleCalendar).Methods(http.MethodGet)
	if s.met != nil {
		s.router.Handle("/metrics", s.met.Handler()).Methods(http.MethodGet)
	}
}

// Handler returns the fully wrapped http.Handler: request logging plus
// optional basic auth.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return handlers.CombinedLoggingHandler(os.Stderr, h)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="loeoutaged", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventDTO is a JSON-friendly view of an outage event.
type eventDTO struct {
	Type  string    `json:"type"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func toEventDTO(ev model.OutageEvent) eventDTO {
	return eventDTO{Type: string(ev.Type), Start: ev.Start, End: ev.End}
}

// statusResponse mirrors the sensor set of the original integration:
// electricity state, current event, next outage, next restoration, and
// the provider's updated-on stamp.
type statusResponse struct {
	Group             string     `json:"group"`
	State             string     `json:"state"`
	CurrentEvent      *eventDTO  `json:"current_event,omitempty"`
	NextOutage        *time.Time `json:"next_outage,omitempty"`
	NextConnectivity  *time.Time `json:"next_connectivity,omitempty"`
	ScheduleUpdatedOn *time.Time `json:"schedule_updated_on,omitempty"`
	LastFetchAt       *time.Time `json:"last_fetch_at,omitempty"`
	LastFetchError    string     `json:"last_fetch_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	resp := statusResponse{
		Group: s.store.Group(),
		State: stateNormal,
	}

	if ev, ok := s.store.CurrentEvent(now); ok {
		resp.State = stateOutage
		dto := toEventDTO(ev)
		resp.CurrentEvent = &dto
	}
	if t, ok := s.store.NextOutage(now, s.cfg.LookaheadDays); ok {
		resp.NextOutage = &t
	}
	if t, ok := s.store.NextConnectivity(now, s.cfg.LookaheadDays); ok {
		resp.NextConnectivity = &t
	}
	if t, ok := s.store.UpdatedOn(); ok {
		resp.ScheduleUpdatedOn = &t
	}
	if last := s.poller.LastCycle(); !last.IsZero() {
		resp.LastFetchAt = &last
	}
	if err := s.poller.LastError(); err != nil {
		resp.LastFetchError = err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Group      string     `json:"group"`
	Events     []eventDTO `json:"events"`
	RangeStart time.Time  `json:"range_start"`
	RangeEnd   time.Time  `json:"range_end"`
	Timezone   string     `json:"timezone"`
}

// handleEvents returns merged outage events in a requested window.
//
// GET /api/events?days=1&backfill=0
//   - days:     how many days forward from now (default: lookahead_days)
//   - backfill: how many past days to include (default 0)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.LookaheadDays)
	if days <= 0 {
		days = s.cfg.LookaheadDays
	}
	backfill := parseIntDefault(q.Get("backfill"), 0)
	if backfill < 0 {
		backfill = 0
	}

	loc := s.cfg.Location()
	now := s.now().In(loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	events := s.store.MergedEventsBetween(rangeStart, rangeEnd)
	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, toEventDTO(ev))
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Group:      s.store.Group(),
		Events:     dtos,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Timezone:   loc.String(),
	})
}

// scheduleResponse is the diagnostics dump of the raw snapshot.
type scheduleResponse struct {
	Group          string                    `json:"group"`
	ScheduleDate   *time.Time                `json:"schedule_date,omitempty"`
	UpdatedOn      *time.Time                `json:"updated_on,omitempty"`
	FetchedAt      *time.Time                `json:"fetched_at,omitempty"`
	GroupSchedules map[string][]timeRangeDTO `json:"group_schedules"`
}

type timeRangeDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// handleSchedule dumps the current snapshot for support purposes: the
// raw per-group ranges before interval resolution.
func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	resp := scheduleResponse{
		Group:          s.store.Group(),
		GroupSchedules: map[string][]timeRangeDTO{},
	}

	if snap := s.store.Snapshot(); snap != nil {
		resp.ScheduleDate = snap.ScheduleDate
		resp.UpdatedOn = snap.UpdatedOn
		fetched := snap.FetchedAt
		resp.FetchedAt = &fetched
		for group, ranges := range snap.GroupSchedules {
			dtos := make([]timeRangeDTO, 0, len(ranges))
			for _, tr := range ranges {
				dtos = append(dtos, timeRangeDTO{Start: tr.Start, End: tr.End})
			}
			resp.GroupSchedules[group] = dtos
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCalendar serves the outage schedule as an iCalendar feed:
// merged definite events for the published day plus projected probable
// events for the lookahead horizon.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	loc := s.cfg.Location()
	now := s.now().In(loc)

	events := s.store.MergedEventsBetween(now.AddDate(0, 0, -1), now.AddDate(0, 0, s.cfg.LookaheadDays))
	events = append(events, schedule.MergeConsecutive(s.store.ProjectedEvents(s.cfg.LookaheadDays))...)

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//loeoutaged//outage schedule//EN")

	for _, ev := range events {
		ve := cal.AddEvent("outage-" + ev.Start.Format(time.RFC3339))
		ve.SetDtStampTime(now)
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(outageSummary)
		ve.SetDescription(string(ev.Type))
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := cal.SerializeTo(w); err != nil {
		appLog.Error("failed to serialize calendar feed", err)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}
