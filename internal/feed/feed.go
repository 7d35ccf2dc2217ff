// Package feed owns live metrics delivery for the dashboard. It hides the
// push/pull split behind one façade: callers read snapshots and ask for mode
// changes; the feed manages channel lifecycles, preference persistence, and
// the snapshot map underneath.
package feed

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tkarls/arrmon/internal/logger"
	"github.com/tkarls/arrmon/internal/metrics"
	"github.com/tkarls/arrmon/internal/transport"
)

// DefaultSettleDelay is how long a mode switch "settles" before another
// toggle is accepted. Rapid repeat presses inside the window are ignored.
const DefaultSettleDelay = 500 * time.Millisecond

// Config wires a Feed to its environment.
type Config struct {
	// BaseURL is the management API root used by the polling path.
	BaseURL string

	// SocketURL is the websocket endpoint used by the push path.
	SocketURL string

	// Token authenticates the push handshake. Empty disables push dials.
	Token string

	// Origin is the dashboard's own origin, which decides push eligibility.
	Origin string

	// Store persists the transport preference across sessions.
	Store transport.PreferenceStore

	// Selector decides eligibility and resolves the effective mode.
	Selector transport.Selector

	// Client performs polling requests. Defaults to http.DefaultClient.
	Client transport.Doer

	// Logger defaults to the package default.
	Logger logger.Logger

	// PollInterval and Heartbeat override the transport defaults; tests use
	// short values.
	PollInterval time.Duration
	Heartbeat    time.Duration

	// SettleDelay overrides DefaultSettleDelay.
	SettleDelay time.Duration

	// OnError receives channel errors, already wrapped with guidance.
	OnError func(error)
}

// Feed is the single owner of the active delivery channel. At most one
// transport is live at any time: a mode switch always tears the old channel
// down before starting the new one.
type Feed struct {
	cfg Config
	log logger.Logger

	mu         sync.Mutex
	started    bool
	mode       transport.Mode
	health     Health
	switching  bool
	servers    []int64
	snapshots  map[int64]*metrics.Snapshot
	push       *transport.PushChannel
	pulls      map[int64]*transport.PullChannel
	lastUpdate time.Time
	lastError  error
}

// New creates a feed. Start must be called to begin delivery.
func New(cfg Config) *Feed {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Feed{
		cfg:       cfg,
		log:       log,
		mode:      transport.ModePull,
		snapshots: make(map[int64]*metrics.Snapshot),
		pulls:     make(map[int64]*transport.PullChannel),
	}
}

// Start resolves the effective mode from the stored preference and current
// eligibility, then brings the matching channel up.
func (f *Feed) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopLocked()
	f.started = true
	f.mode = f.cfg.Selector.ResolveMode(f.cfg.Store, f.cfg.Origin)
	f.log.Debug("feed starting in %s mode", f.mode)
	f.startLocked()
}

// Close tears down whatever channel is active. Idempotent.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked()
	f.started = false
	f.health = HealthDisconnected
}

// Mode returns the active transport mode.
func (f *Feed) Mode() transport.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// State returns a snapshot of the feed for rendering.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		Mode:       f.mode,
		Health:     f.health,
		Switching:  f.switching,
		LastUpdate: f.lastUpdate,
		LastError:  f.lastError,
	}
}

// Get returns the latest snapshot for one server.
func (f *Feed) Get(id int64) (*metrics.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snapshots[id]
	return s, ok
}

// All returns the latest snapshots ordered by server identifier.
func (f *Feed) All() []*metrics.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*metrics.Snapshot, 0, len(f.snapshots))
	for _, s := range f.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerID < out[j].ServerID })
	return out
}

// IsConnected reports whether the push channel is live. Polling never counts
// as "connected" in this sense; it has no connection to lose.
func (f *Feed) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode == transport.ModePush && f.health == HealthConnected
}

// FetchInFlight reports whether any poller currently has a request
// outstanding.
func (f *Feed) FetchInFlight() bool {
	f.mu.Lock()
	pulls := make([]*transport.PullChannel, 0, len(f.pulls))
	for _, p := range f.pulls {
		pulls = append(pulls, p)
	}
	f.mu.Unlock()

	for _, p := range pulls {
		if p.InFlight() {
			return true
		}
	}
	return false
}

// Stale reports whether no data has arrived within the window. A feed that
// never received anything is not stale, just empty.
func (f *Feed) Stale(window time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.lastUpdate.IsZero() && time.Since(f.lastUpdate) > window
}

// SetServers replaces the monitored server set. Snapshots for servers no
// longer in the set are dropped immediately; the active channel is updated
// in place without a reconnect.
func (f *Feed) SetServers(ids []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.servers = append([]int64(nil), ids...)

	keep := make(map[int64]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	for id := range f.snapshots {
		if !keep[id] {
			delete(f.snapshots, id)
		}
	}

	if !f.started {
		return
	}

	switch f.mode {
	case transport.ModePush:
		if f.push != nil {
			f.push.UpdateSubscription(f.servers)
		}
	case transport.ModePull:
		for id, p := range f.pulls {
			if !keep[id] {
				p.Stop()
				delete(f.pulls, id)
			}
		}
		for _, id := range f.servers {
			if id <= 0 {
				continue
			}
			if _, ok := f.pulls[id]; !ok {
				f.pulls[id] = f.newPuller(id)
				f.pulls[id].Start()
			}
		}
	}
}

// ToggleMode switches between push and pull. The preference is persisted
// before the switch; an ineligible push request is refused with an error and
// nothing changes. While a previous switch is still settling the call is
// ignored.
func (f *Feed) ToggleMode() error {
	f.mu.Lock()

	if f.switching {
		f.mu.Unlock()
		f.log.Debug("mode toggle ignored: previous switch still settling")
		return nil
	}

	target := f.mode.Opposite()
	if err := f.cfg.Selector.RequestMode(f.cfg.Store, f.cfg.Origin, target); err != nil {
		f.mu.Unlock()
		return err
	}

	f.switching = true
	f.stopLocked()
	f.mode = target
	f.startLocked()
	settle := f.cfg.SettleDelay
	f.mu.Unlock()

	time.AfterFunc(settle, func() {
		f.mu.Lock()
		f.switching = false
		f.mu.Unlock()
	})
	return nil
}

// ManualRefresh forces fresh data through the active channel. On pull it
// fires one out-of-cadence poll per server (rate-limited per poller). On
// push a healthy connection needs nothing; a dead one is reconnected.
func (f *Feed) ManualRefresh() {
	f.mu.Lock()
	mode := f.mode

	// Claim the reconnect under the same lock hold as the health check, so
	// overlapping refreshes cannot each start one. A refresh that arrives
	// while a claimed reconnect is still connecting is a no-op.
	var push *transport.PushChannel
	if mode == transport.ModePush && f.push != nil &&
		(f.health == HealthDisconnected || f.health == HealthFailed) {
		f.health = HealthConnecting
		push = f.push
	}

	pulls := make([]*transport.PullChannel, 0, len(f.pulls))
	for _, p := range f.pulls {
		pulls = append(pulls, p)
	}
	f.mu.Unlock()

	switch mode {
	case transport.ModePull:
		for _, p := range pulls {
			p.Refresh()
		}
	case transport.ModePush:
		if push != nil {
			push.Reconnect()
		}
	}
}

// startLocked brings up the channel for the current mode. Caller holds f.mu.
// Before Start, server set changes are recorded only.
func (f *Feed) startLocked() {
	if !f.started {
		return
	}
	switch f.mode {
	case transport.ModePush:
		opts := []transport.PushOption{transport.WithLogger(f.log)}
		if f.cfg.Heartbeat > 0 {
			opts = append(opts, transport.WithHeartbeat(f.cfg.Heartbeat))
		}

		var ch *transport.PushChannel
		ch = transport.NewPushChannel(f.cfg.SocketURL, f.cfg.Token, transport.PushEvents{
			OnOpen:    func() { f.onPushOpen(ch) },
			OnMetrics: func(batch []*metrics.Snapshot) { f.onPushMetrics(ch, batch) },
			OnError:   func(err error) { f.onPushError(ch, err) },
			OnClose:   func() { f.onPushClose(ch) },
		}, opts...)

		f.push = ch
		f.health = HealthConnecting
		ch.Connect(f.servers)
		if ch.State() == transport.PushIdle {
			// Nothing to connect with (no token or no servers).
			f.health = HealthDisconnected
		}

	case transport.ModePull:
		started := false
		for _, id := range f.servers {
			if id <= 0 {
				continue
			}
			p := f.newPuller(id)
			f.pulls[id] = p
			p.Start()
			started = true
		}
		if started {
			f.health = HealthConnecting
		} else {
			f.health = HealthDisconnected
		}
	}
}

// stopLocked tears down every channel. Caller holds f.mu.
func (f *Feed) stopLocked() {
	if f.push != nil {
		f.push.Disconnect()
		f.push = nil
	}
	for id, p := range f.pulls {
		p.Stop()
		delete(f.pulls, id)
	}
}

func (f *Feed) newPuller(id int64) *transport.PullChannel {
	return transport.NewPullChannel(transport.PullConfig{
		BaseURL:    f.cfg.BaseURL,
		ServerID:   id,
		Client:     f.cfg.Client,
		Interval:   f.cfg.PollInterval,
		Logger:     f.log,
		OnSnapshot: f.onPullSnapshot,
		OnError:    f.onPullError,
	})
}

func (f *Feed) onPushOpen(ch *transport.PushChannel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.push != ch {
		return // event from a channel we already replaced
	}
	f.health = HealthConnected
}

// onPushMetrics applies one inbound batch as a full replacement of the
// snapshot map. A server missing from the batch has no current data.
func (f *Feed) onPushMetrics(ch *transport.PushChannel, batch []*metrics.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.push != ch {
		return
	}

	next := make(map[int64]*metrics.Snapshot, len(batch))
	for _, s := range batch {
		if s == nil {
			continue
		}
		if s.CapturedAt.IsZero() {
			s.CapturedAt = time.Now()
		}
		next[s.ServerID] = s
	}
	f.snapshots = next
	f.lastUpdate = time.Now()
	f.health = HealthConnected
}

func (f *Feed) onPushError(ch *transport.PushChannel, err error) {
	f.mu.Lock()
	if f.push != ch {
		f.mu.Unlock()
		return
	}
	f.lastError = err
	f.mu.Unlock()

	if f.cfg.OnError != nil {
		f.cfg.OnError(err)
	}
}

func (f *Feed) onPushClose(ch *transport.PushChannel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.push != ch {
		return
	}
	// Last good data stays on screen; only the health indicator degrades.
	// Recovery is explicit: manual refresh or a mode toggle.
	f.health = HealthFailed
}

func (f *Feed) onPullSnapshot(s *metrics.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.mode != transport.ModePull {
		return // straggler from a poller we already stopped
	}
	if _, ok := f.pulls[s.ServerID]; !ok {
		return
	}
	f.snapshots[s.ServerID] = s
	f.lastUpdate = time.Now()
	f.health = HealthConnected
}

func (f *Feed) onPullError(err error) {
	f.mu.Lock()
	f.lastError = err
	f.mu.Unlock()

	if f.cfg.OnError != nil {
		f.cfg.OnError(err)
	}
}
