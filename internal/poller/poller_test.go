package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loeoutaged/internal/schedule"
)

const sampleHTML = `<p>Графік погодинних відключень на 27.01.2025</p>` +
	`<p>Інформація станом на 14:30 27.01.2025</p>` +
	`<p>Група 3.1. Електроенергії немає з 09:00 до 13:00.</p>`

type stubFetcher struct {
	html    string
	err     error
	calls   atomic.Int32
	blockCh chan struct{} // when non-nil, FetchScheduleHTML blocks until closed
}

func (s *stubFetcher) FetchScheduleHTML(_ context.Context) (string, error) {
	s.calls.Add(1)
	if s.blockCh != nil {
		<-s.blockCh
	}
	return s.html, s.err
}

func kyiv(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Kyiv")
	require.NoError(t, err)
	return loc
}

func TestRunCycle_SuccessPublishesSnapshot(t *testing.T) {
	loc := kyiv(t)
	store := schedule.NewStore("3.1")
	p := New(&stubFetcher{html: sampleHTML}, store, nil, "", loc)

	p.RunCycle(context.Background())

	require.NoError(t, p.LastError())
	snap := store.Snapshot()
	require.NotNil(t, snap)
	require.NotNil(t, snap.ScheduleDate)
	assert.False(t, snap.FetchedAt.IsZero())

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 9, events[0].Start.Hour())
}

func TestRunCycle_TransportFailureKeepsPreviousSnapshot(t *testing.T) {
	loc := kyiv(t)
	store := schedule.NewStore("3.1")
	fetcher := &stubFetcher{html: sampleHTML}
	p := New(fetcher, store, nil, "", loc)

	p.RunCycle(context.Background())
	before := store.Events()
	require.Len(t, before, 1)

	fetcher.err = errors.New("connection refused")
	p.RunCycle(context.Background())

	assert.Error(t, p.LastError())
	assert.Equal(t, before, store.Events(), "query results must be identical to pre-failure values")
}

func TestRunCycle_RecoveryClearsLastError(t *testing.T) {
	loc := kyiv(t)
	store := schedule.NewStore("3.1")
	fetcher := &stubFetcher{err: errors.New("timeout")}
	p := New(fetcher, store, nil, "", loc)

	p.RunCycle(context.Background())
	require.Error(t, p.LastError())

	fetcher.err = nil
	fetcher.html = sampleHTML
	p.RunCycle(context.Background())
	assert.NoError(t, p.LastError())
}

func TestRunCycle_PartialParseStillReplacesSnapshot(t *testing.T) {
	loc := kyiv(t)
	store := schedule.NewStore("3.1")
	fetcher := &stubFetcher{html: sampleHTML}
	p := New(fetcher, store, nil, "", loc)

	p.RunCycle(context.Background())
	require.Len(t, store.Events(), 1)

	// Date found but no groups: a successful fetch with a partial parse
	// still swaps the snapshot in.
	fetcher.html = "<p>Графік погодинних відключень на 28.01.2025</p>"
	p.RunCycle(context.Background())

	require.NoError(t, p.LastError())
	snap := store.Snapshot()
	require.NotNil(t, snap.ScheduleDate)
	assert.Equal(t, 28, snap.ScheduleDate.Day())
	assert.Empty(t, store.Events())
}

func TestRunCycle_EmptyExtractionYieldsAbsentSnapshot(t *testing.T) {
	loc := kyiv(t)
	store := schedule.NewStore("3.1")
	p := New(&stubFetcher{html: ""}, store, nil, "", loc)

	p.RunCycle(context.Background())

	require.NoError(t, p.LastError())
	snap := store.Snapshot()
	require.NotNil(t, snap, "empty text still counts as a successful cycle")
	assert.Nil(t, snap.ScheduleDate)
	assert.Nil(t, snap.UpdatedOn)
	assert.Empty(t, snap.GroupSchedules)
}

func TestRunCycle_SkipsWhileInFlight(t *testing.T) {
	loc := kyiv(t)
	store := schedule.NewStore("3.1")
	fetcher := &stubFetcher{html: sampleHTML, blockCh: make(chan struct{})}
	p := New(fetcher, store, nil, "", loc)

	done := make(chan struct{})
	go func() {
		p.RunCycle(context.Background())
		close(done)
	}()

	// Wait until the first cycle is inside the fetcher.
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Overlapping tick must be a no-op, not a queued second fetch.
	p.RunCycle(context.Background())
	assert.Equal(t, int32(1), fetcher.calls.Load())

	close(fetcher.blockCh)
	<-done
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestNew_DefaultRefreshSpec(t *testing.T) {
	p := New(&stubFetcher{}, schedule.NewStore("3.1"), nil, "", kyiv(t))
	assert.Equal(t, DefaultRefreshSpec, p.spec)
}
