package feed

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarls/arrmon/internal/errors"
	"github.com/tkarls/arrmon/internal/logger"
	"github.com/tkarls/arrmon/internal/transport"
)

var testJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// memStore is an in-memory preference store for tests.
type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (m *memStore) Get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

func (m *memStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// harness is a combined backend: it answers metrics polls over HTTP and
// accepts websocket connections on /ws, scripted by the test body.
type harness struct {
	srv *httptest.Server

	mu       sync.Mutex
	pullHits map[int64]int
	curDone  chan struct{}

	wsInbound chan map[string]interface{}
	wsSend    chan string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		pullHits:  make(map[int64]int),
		wsInbound: make(chan map[string]interface{}, 32),
		wsSend:    make(chan string, 32),
	}

	upgrader := websocket.Upgrader{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ws") {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			done := make(chan struct{})
			h.mu.Lock()
			h.curDone = done
			h.mu.Unlock()

			go func() {
				for {
					_, data, err := conn.ReadMessage()
					if err != nil {
						return
					}
					var msg map[string]interface{}
					if err := testJSON.Unmarshal(data, &msg); err != nil {
						continue
					}
					h.wsInbound <- msg
				}
			}()

			for {
				select {
				case frame := <-h.wsSend:
					if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
						return
					}
				case <-done:
					conn.Close()
					return
				}
			}
		}

		// Polling path: /metrics/{id}.
		idStr := strings.TrimPrefix(r.URL.Path, "/metrics/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		h.mu.Lock()
		h.pullHits[id]++
		h.mu.Unlock()
		fmt.Fprintf(w, `{"server_id":%d,"cpu_usage":%d}`, id, id)
	}))

	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) hits(id int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pullHits[id]
}

// hangUp closes the current websocket connection from the server side.
func (h *harness) hangUp() {
	h.mu.Lock()
	done := h.curDone
	h.curDone = nil
	h.mu.Unlock()
	if done != nil {
		close(done)
	}
}

func (h *harness) nextWSMessage(t *testing.T) map[string]interface{} {
	t.Helper()
	select {
	case msg := <-h.wsInbound:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a websocket message")
		return nil
	}
}

func (h *harness) expectNoWSMessage(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case msg := <-h.wsInbound:
		t.Fatalf("unexpected websocket message: %v", msg)
	case <-time.After(d):
	}
}

func wsIDs(msg map[string]interface{}) []int64 {
	raw, _ := msg["servers"].([]interface{})
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			ids = append(ids, int64(f))
		}
	}
	return ids
}

// eligibleOrigin carries no explicit port, so it always qualifies for push.
const eligibleOrigin = "https://dash.example.com"

func newTestFeed(t *testing.T, h *harness, store *memStore, servers []int64, cfg func(*Config)) *Feed {
	t.Helper()

	c := Config{
		BaseURL:      h.srv.URL,
		SocketURL:    "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/metrics",
		Token:        "abc",
		Origin:       eligibleOrigin,
		Store:        store,
		Logger:       logger.Noop(),
		PollInterval: 20 * time.Millisecond,
		SettleDelay:  50 * time.Millisecond,
	}
	if cfg != nil {
		cfg(&c)
	}

	f := New(c)
	f.SetServers(servers)
	t.Cleanup(f.Close)
	return f
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

func TestFeedPullEndToEnd(t *testing.T) {
	h := newHarness(t)
	store := newMemStore() // absent preference defaults to polling

	f := newTestFeed(t, h, store, []int64{42}, nil)
	f.Start()

	assert.Equal(t, transport.ModePull, f.Mode())

	waitFor(t, 2*time.Second, func() bool {
		_, ok := f.Get(42)
		return ok
	})

	snap, _ := f.Get(42)
	assert.Equal(t, int64(42), snap.ServerID)
	assert.InDelta(t, 42.0, snap.CPUUsage, 0.001)

	st := f.State()
	assert.Equal(t, HealthConnected, st.Health)
	assert.False(t, st.LastUpdate.IsZero())
	assert.False(t, f.IsConnected(), "polling never reports a live connection")
}

func TestFeedPushEndToEnd(t *testing.T) {
	h := newHarness(t)
	store := newMemStore()
	store.values[transport.PreferenceKey] = "websocket"

	f := newTestFeed(t, h, store, []int64{1, 2}, nil)
	f.Start()

	assert.Equal(t, transport.ModePush, f.Mode())

	hs := h.nextWSMessage(t)
	assert.Equal(t, "abc", hs["token"])
	assert.Equal(t, []int64{1, 2}, wsIDs(hs))

	h.wsSend <- `{"type":"metrics_update","data":[{"server_id":1,"cpu_usage":10},{"server_id":2,"cpu_usage":20}]}`

	waitFor(t, 2*time.Second, func() bool {
		_, ok := f.Get(2)
		return ok
	})
	assert.True(t, f.IsConnected())
	assert.Len(t, f.All(), 2)
}

func TestFeedToggleSwitchesAndPersists(t *testing.T) {
	h := newHarness(t)
	store := newMemStore()

	f := newTestFeed(t, h, store, []int64{42}, nil)
	f.Start()
	require.Equal(t, transport.ModePull, f.Mode())

	require.NoError(t, f.ToggleMode())
	assert.Equal(t, transport.ModePush, f.Mode())
	assert.Equal(t, "websocket", store.Get(transport.PreferenceKey))

	// The new channel performs its handshake.
	hs := h.nextWSMessage(t)
	assert.Equal(t, []int64{42}, wsIDs(hs))

	// A second toggle inside the settle window is ignored outright.
	require.NoError(t, f.ToggleMode())
	assert.Equal(t, transport.ModePush, f.Mode())
	assert.Equal(t, "websocket", store.Get(transport.PreferenceKey))

	// After settling, toggling back to polling works and persists.
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, f.ToggleMode())
	assert.Equal(t, transport.ModePull, f.Mode())
	assert.Equal(t, "polling", store.Get(transport.PreferenceKey))
}

func TestFeedToggleIneligibleRefused(t *testing.T) {
	h := newHarness(t)
	store := newMemStore()
	store.values[transport.PreferenceKey] = "polling"

	f := newTestFeed(t, h, store, []int64{42}, func(c *Config) {
		c.Origin = "http://localhost:3000" // direct port, push not allowed
	})
	f.Start()
	require.Equal(t, transport.ModePull, f.Mode())

	err := f.ToggleMode()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrEligible))

	// Nothing changed: still polling, preference untouched, no dial.
	assert.Equal(t, transport.ModePull, f.Mode())
	assert.Equal(t, "polling", store.Get(transport.PreferenceKey))
	h.expectNoWSMessage(t, 100*time.Millisecond)
}

func TestFeedNoOverlapDuringSwitch(t *testing.T) {
	h := newHarness(t)
	store := newMemStore()

	f := newTestFeed(t, h, store, []int64{42}, nil)
	f.Start()

	waitFor(t, 2*time.Second, func() bool { return h.hits(42) >= 2 })

	require.NoError(t, f.ToggleMode())
	h.nextWSMessage(t) // push handshake went out

	// The pollers are gone before the push channel exists; at most one
	// already-in-flight request may still land.
	settled := h.hits(42)
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, h.hits(42), settled+1)
}

func TestFeedFullReplaceDropsAbsentServers(t *testing.T) {
	h := newHarness(t)
	store := newMemStore()
	store.values[transport.PreferenceKey] = "websocket"

	f := newTestFeed(t, h, store, []int64{1, 2}, nil)
	f.Start()
	h.nextWSMessage(t)

	h.wsSend <- `{"type":"metrics_update","data":[{"server_id":1,"cpu_usage":10},{"server_id":2,"cpu_usage":20}]}`
	waitFor(t, 2*time.Second, func() bool { return len(f.All()) == 2 })

	// Each batch is the complete current truth: a server absent from it has
	// no data anymore.
	h.wsSend <- `{"type":"metrics_update","data":[{"server_id":1,"cpu_usage":11}]}`
	waitFor(t, 2*time.Second, func() bool {
		_, ok := f.Get(2)
		return !ok
	})

	snap, ok := f.Get(1)
	require.True(t, ok)
	assert.InDelta(t, 11.0, snap.CPUUsage, 0.001)
}

func TestFeedMalformedMessageKeepsLastGood(t *testing.T) {
	h := newHarness(t)
	store := newMemStore()
	store.values[transport.PreferenceKey] = "websocket"

	f := newTestFeed(t, h, store, []int64{1}, nil)
	f.Start()
	h.nextWSMessage(t)

	h.wsSend <- `{"type":"metrics_update","data":[{"server_id":1,"cpu_usage":10}]}`
	waitFor(t, 2*time.Second, func() bool {
		_, ok := f.Get(1)
		return ok
	})

	h.wsSend <- `{"type":"metrics_update","data": %%garbage%%}`
	time.Sleep(100 * time.Millisecond)

	// The bad frame is dropped without clearing data or degrading health.
	snap, ok := f.Get(1)
	require.True(t, ok)
	assert.InDelta(t, 10.0, snap.CPUUsage, 0.001)
	assert.Equal(t, HealthConnected, f.State().Health)
}

func TestFeedManualRefreshPull(t *testing.T) {
	h := newHarness(t)
	store := newMemStore()

	f := newTestFeed(t, h, store, []int64{42}, func(c *Config) {
		c.PollInterval = time.Hour // cadence never fires during the test
	})
	f.Start()

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, h.hits(42))

	f.ManualRefresh()
	waitFor(t, 2*time.Second, func() bool {
		_, ok := f.Get(42)
		return ok
	})
	assert.Equal(t, 1, h.hits(42))
}

func TestFeedManualRefreshPush(t *testing.T) {
	h := newHarness(t)
	store := newMemStore()
	store.values[transport.PreferenceKey] = "websocket"

	f := newTestFeed(t, h, store, []int64{1}, nil)
	f.Start()
	h.nextWSMessage(t)
	h.wsSend <- `{"type":"metrics_update","data":[{"server_id":1,"cpu_usage":10}]}`
	waitFor(t, 2*time.Second, func() bool { return f.IsConnected() })

	// Healthy connection: refresh is a no-op, no re-handshake.
	f.ManualRefresh()
	h.expectNoWSMessage(t, 100*time.Millisecond)

	// Dead connection: refresh is the recovery path.
	h.hangUp()
	waitFor(t, 2*time.Second, func() bool { return f.State().Health == HealthFailed })

	// Last good data survives the drop.
	_, ok := f.Get(1)
	assert.True(t, ok)

	f.ManualRefresh()
	hs := h.nextWSMessage(t)
	assert.Equal(t, "abc", hs["token"])
	waitFor(t, 2*time.Second, func() bool { return f.IsConnected() })
}

func TestFeedManualRefreshPushSingleReconnect(t *testing.T) {
	h := newHarness(t)
	store := newMemStore()
	store.values[transport.PreferenceKey] = "websocket"

	f := newTestFeed(t, h, store, []int64{1}, nil)
	f.Start()
	h.nextWSMessage(t)
	waitFor(t, 2*time.Second, func() bool { return f.IsConnected() })

	h.hangUp()
	waitFor(t, 2*time.Second, func() bool { return f.State().Health == HealthFailed })

	// Back-to-back refreshes claim a single reconnect: the second arrives
	// while the first is still connecting and must not dial again.
	f.ManualRefresh()
	f.ManualRefresh()

	hs := h.nextWSMessage(t)
	assert.Equal(t, "abc", hs["token"])
	h.expectNoWSMessage(t, 100*time.Millisecond)
	waitFor(t, 2*time.Second, func() bool { return f.IsConnected() })
}

func TestFeedSetServersUpdatesSubscription(t *testing.T) {
	h := newHarness(t)
	store := newMemStore()
	store.values[transport.PreferenceKey] = "websocket"

	f := newTestFeed(t, h, store, []int64{1, 2}, nil)
	f.Start()
	h.nextWSMessage(t)

	h.wsSend <- `{"type":"metrics_update","data":[{"server_id":1,"cpu_usage":10},{"server_id":2,"cpu_usage":20}]}`
	waitFor(t, 2*time.Second, func() bool { return len(f.All()) == 2 })

	f.SetServers([]int64{2, 3})

	// One subscription update on the existing connection, no re-handshake.
	sub := h.nextWSMessage(t)
	assert.Equal(t, "subscribe", sub["type"])
	assert.Equal(t, []int64{2, 3}, wsIDs(sub))
	assert.NotContains(t, sub, "token")

	// The removed server's snapshot is dropped immediately.
	_, ok := f.Get(1)
	assert.False(t, ok)
}

func TestFeedSetServersManagesPollers(t *testing.T) {
	h := newHarness(t)
	store := newMemStore()

	f := newTestFeed(t, h, store, []int64{1}, nil)
	f.Start()

	waitFor(t, 2*time.Second, func() bool { return h.hits(1) >= 1 })

	f.SetServers([]int64{2})

	// The new server starts getting polled; the removed one stops.
	waitFor(t, 2*time.Second, func() bool { return h.hits(2) >= 1 })
	settled := h.hits(1)
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, h.hits(1), settled+1)

	_, ok := f.Get(1)
	assert.False(t, ok)
}
