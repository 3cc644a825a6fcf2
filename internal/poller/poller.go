package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"loeoutaged/internal/loe"
	appLog "loeoutaged/internal/log"
	"loeoutaged/internal/metrics"
	"loeoutaged/internal/schedule"
)

// DefaultRefreshSpec polls every 15 minutes, matching the provider's own
// update cadence.
const DefaultRefreshSpec = "@every 15m"

// ScheduleFetcher is the network edge of a refresh cycle. *loe.Fetcher
// implements it; tests substitute their own.
type ScheduleFetcher interface {
	FetchScheduleHTML(ctx context.Context) (string, error)
}

// Poller drives the fetch-extract-parse pipeline on a cron schedule and
// publishes each successful result to the store as one atomic snapshot.
//
// A failed cycle keeps the previous snapshot: consumers would rather
// see yesterday's schedule than none. Retry is the next fixed-interval
// tick, no backoff. At most one cycle runs at a time; a tick arriving
// while a cycle is still in flight is skipped, not queued.
type Poller struct {
	fetcher ScheduleFetcher
	store   *schedule.Store
	met     *metrics.Metrics
	cron    *cron.Cron
	spec    string
	loc     *time.Location

	inFlight atomic.Bool

	mu        sync.Mutex
	lastError error
	lastCycle time.Time
}

// New creates a poller. loc is the regional timezone snapshots resolve
// in; met may be nil when instrumentation is not wanted (tests, -once
// mode).
func New(fetcher ScheduleFetcher, store *schedule.Store, met *metrics.Metrics, refreshSpec string, loc *time.Location) *Poller {
	if refreshSpec == "" {
		refreshSpec = DefaultRefreshSpec
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Poller{
		fetcher: fetcher,
		store:   store,
		met:     met,
		cron:    cron.New(),
		spec:    refreshSpec,
		loc:     loc,
	}
}

// Start runs one immediate cycle and then schedules recurring cycles.
// The cron entry stops when ctx is canceled.
func (p *Poller) Start(ctx context.Context) error {
	p.RunCycle(ctx)

	if _, err := p.cron.AddFunc(p.spec, func() {
		p.RunCycle(ctx)
	}); err != nil {
		return errors.Wrapf(err, "invalid refresh schedule %q", p.spec)
	}
	p.cron.Start()

	go func() {
		<-ctx.Done()
		p.cron.Stop()
	}()

	appLog.Info("poller started", "refresh", p.spec)
	return nil
}

// RunCycle executes a single fetch cycle. Safe to call directly; the
// in-flight guard makes overlapping calls no-ops.
func (p *Poller) RunCycle(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		appLog.Warn("previous fetch cycle still running, skipping tick")
		return
	}
	defer p.inFlight.Store(false)

	started := time.Now()
	raw, err := p.fetcher.FetchScheduleHTML(ctx)
	if err != nil {
		// Transport failure: keep serving the previous snapshot.
		appLog.Error("fetch cycle failed", err)
		p.recordCycle(err)
		if p.met != nil {
			p.met.FetchTotal.WithLabelValues("failure").Inc()
		}
		return
	}

	text := loe.ExtractScheduleText(raw)
	snap := loe.ParseScheduleText(text, p.loc)
	snap.FetchedAt = time.Now()

	// Partial parse results still replace the snapshot; each extractor
	// is best-effort on its own.
	p.store.Publish(snap)
	p.recordCycle(nil)

	if p.met != nil {
		p.met.FetchTotal.WithLabelValues("success").Inc()
		p.met.FetchDuration.Observe(time.Since(started).Seconds())
		p.met.LastSuccessTS.Set(float64(snap.FetchedAt.Unix()))
		p.met.SnapshotGroups.Set(float64(len(snap.GroupSchedules)))
		p.met.SnapshotEvents.Set(float64(len(p.store.Events())))
	}

	appLog.Info("fetch cycle completed",
		"duration", time.Since(started).Round(time.Millisecond),
		"groups", len(snap.GroupSchedules),
		"has_date", snap.ScheduleDate != nil,
		"has_updated_on", snap.UpdatedOn != nil,
	)
}

// LastError returns the error of the most recent cycle, nil after a
// success. Exposed through the status endpoint for observability.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}

// LastCycle returns when the most recent cycle finished.
func (p *Poller) LastCycle() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCycle
}

func (p *Poller) recordCycle(err error) {
	p.mu.Lock()
	p.lastError = err
	p.lastCycle = time.Now()
	p.mu.Unlock()
}
