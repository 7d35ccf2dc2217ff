package transport

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarls/arrmon/internal/logger"
	"github.com/tkarls/arrmon/internal/metrics"
)

// snapshotBody is a well-formed pull response for tests.
const snapshotBody = `{"server_id":42,"cpu_usage":55.2,"memory_usage":70.0,"memory_used_gb":5.6,"memory_total_gb":8.0,"container":"media-1"}`

// collectSnapshots returns an OnSnapshot callback plus an accessor for what
// it received.
func collectSnapshots() (func(*metrics.Snapshot), func() []*metrics.Snapshot) {
	var mu sync.Mutex
	var got []*metrics.Snapshot
	return func(s *metrics.Snapshot) {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		}, func() []*metrics.Snapshot {
			mu.Lock()
			defer mu.Unlock()
			return append([]*metrics.Snapshot(nil), got...)
		}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestPullPollsOnCadence(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metrics/42", r.URL.Path)
		hits.Add(1)
		fmt.Fprint(w, snapshotBody)
	}))
	defer srv.Close()

	onSnap, snaps := collectSnapshots()
	p := NewPullChannel(PullConfig{
		BaseURL:    srv.URL,
		ServerID:   42,
		Client:     srv.Client(),
		Interval:   20 * time.Millisecond,
		Logger:     logger.Noop(),
		OnSnapshot: onSnap,
	})

	p.Start()
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool { return len(snaps()) >= 2 })

	got := snaps()
	require.NotEmpty(t, got)
	first := got[0]
	assert.Equal(t, int64(42), first.ServerID)
	assert.InDelta(t, 55.2, first.CPUUsage, 0.001)
	require.NotNil(t, first.MemoryUsage)
	assert.InDelta(t, 70.0, *first.MemoryUsage, 0.001)
	assert.Equal(t, "media-1", first.Container)
	assert.False(t, first.CapturedAt.IsZero())
}

func TestPullZeroIdentifierDisablesPolling(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, snapshotBody)
	}))
	defer srv.Close()

	for _, id := range []int64{0, -1} {
		p := NewPullChannel(PullConfig{
			BaseURL:  srv.URL,
			ServerID: id,
			Client:   srv.Client(),
			Interval: 10 * time.Millisecond,
			Logger:   logger.Noop(),
		})
		p.Start()
		assert.False(t, p.Running(), "id %d must not start a poller", id)
		p.Refresh() // must also be inert
		p.Stop()
	}

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, hits.Load(), "no request may be made for a zero/absent identifier")
}

func TestPullStopHaltsPolling(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, snapshotBody)
	}))
	defer srv.Close()

	p := NewPullChannel(PullConfig{
		BaseURL:  srv.URL,
		ServerID: 42,
		Client:   srv.Client(),
		Interval: 10 * time.Millisecond,
		Logger:   logger.Noop(),
	})

	p.Start()
	waitFor(t, 2*time.Second, func() bool { return hits.Load() >= 1 })

	p.Stop()
	assert.False(t, p.Running())

	settled := hits.Load()
	time.Sleep(60 * time.Millisecond)
	// Allow at most one straggler that was already in flight at Stop.
	assert.LessOrEqual(t, hits.Load(), settled+1)

	// Stop is idempotent.
	p.Stop()
}

func TestPullRefreshOutOfCadence(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, snapshotBody)
	}))
	defer srv.Close()

	onSnap, snaps := collectSnapshots()
	p := NewPullChannel(PullConfig{
		BaseURL:    srv.URL,
		ServerID:   42,
		Client:     srv.Client(),
		Interval:   time.Hour, // cadence never fires during the test
		Logger:     logger.Noop(),
		OnSnapshot: onSnap,
	})

	p.Start()
	defer p.Stop()

	p.Refresh()
	waitFor(t, 2*time.Second, func() bool { return len(snaps()) == 1 })

	// A second immediate refresh is throttled.
	p.Refresh()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), hits.Load())
}

func TestPullMalformedResponseDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"server_id": not json`)
	}))
	defer srv.Close()

	log := logger.NewBufferLogger()
	onSnap, snaps := collectSnapshots()
	var errCount atomic.Int64

	p := NewPullChannel(PullConfig{
		BaseURL:    srv.URL,
		ServerID:   42,
		Client:     srv.Client(),
		Interval:   time.Hour,
		Logger:     log,
		OnSnapshot: onSnap,
		OnError:    func(error) { errCount.Add(1) },
	})

	p.Start()
	defer p.Stop()
	p.Refresh()

	waitFor(t, 2*time.Second, func() bool { return log.HasLevel("warn") })
	assert.Empty(t, snaps(), "malformed body must not produce a snapshot")
	assert.Zero(t, errCount.Load(), "protocol errors are dropped, not reported")
}

func TestPullErrorStatusReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	onSnap, snaps := collectSnapshots()
	errs := make(chan error, 1)

	p := NewPullChannel(PullConfig{
		BaseURL:    srv.URL,
		ServerID:   42,
		Client:     srv.Client(),
		Interval:   time.Hour,
		Logger:     logger.Noop(),
		OnSnapshot: onSnap,
		OnError:    func(err error) { errs <- err },
	})

	p.Start()
	defer p.Stop()
	p.Refresh()

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "502")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a transport error")
	}
	assert.Empty(t, snaps())
}

// blockingDoer serves one slow request and one fast one, to prove that the
// feed sees completion order rather than issue order.
type blockingDoer struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (d *blockingDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	d.calls++
	call := d.calls
	d.mu.Unlock()

	if call == 1 {
		<-d.release // first-issued request completes last
	}

	rec := httptest.NewRecorder()
	fmt.Fprintf(rec, `{"server_id":42,"cpu_usage":%d}`, call*10)
	return rec.Result(), nil
}

func TestPullLastCompletedWins(t *testing.T) {
	doer := &blockingDoer{release: make(chan struct{})}
	onSnap, snaps := collectSnapshots()

	p := NewPullChannel(PullConfig{
		BaseURL:    "http://unit.test",
		ServerID:   42,
		Client:     doer,
		Interval:   time.Hour, // drive polls manually for determinism
		Logger:     logger.Noop(),
		OnSnapshot: onSnap,
	})

	p.Start()
	defer p.Stop()

	// First poll blocks inside the client.
	p.Refresh()
	waitFor(t, 2*time.Second, func() bool { return p.InFlight() })

	// Second poll overlaps the first and completes immediately.
	time.Sleep(510 * time.Millisecond) // let the refresh limiter refill
	p.Refresh()
	waitFor(t, 2*time.Second, func() bool { return len(snaps()) == 1 })
	assert.InDelta(t, 20.0, snaps()[0].CPUUsage, 0.001)

	// Release the first request; it completes last and therefore wins,
	// even though it was issued first.
	close(doer.release)
	waitFor(t, 2*time.Second, func() bool { return len(snaps()) == 2 })

	got := snaps()
	assert.InDelta(t, 10.0, got[1].CPUUsage, 0.001,
		"the most recently completed response must be the one applied last")
}
