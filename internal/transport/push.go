package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tkarls/arrmon/internal/errors"
	"github.com/tkarls/arrmon/internal/logger"
	"github.com/tkarls/arrmon/internal/metrics"
)

// PushState is the connection state of the push channel.
type PushState int

const (
	// PushIdle: no connection and none wanted.
	PushIdle PushState = iota
	// PushConnecting: dial in progress.
	PushConnecting
	// PushAuthenticating: transport open, handshake being sent.
	PushAuthenticating
	// PushReady: handshake sent; the channel is considered live from this
	// point without waiting for a server acknowledgment. The first inbound
	// metrics batch confirms it in practice.
	PushReady
	// PushClosing: explicit teardown in progress.
	PushClosing
	// PushClosed: connection gone, whether by error, close, or teardown.
	PushClosed
)

// String returns a human-readable state name.
func (s PushState) String() string {
	switch s {
	case PushIdle:
		return "idle"
	case PushConnecting:
		return "connecting"
	case PushAuthenticating:
		return "authenticating"
	case PushReady:
		return "ready"
	case PushClosing:
		return "closing"
	case PushClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultHeartbeat is how often a ping is sent while connected, to keep
// intermediary connection state (proxies, NAT tables) alive. There is no
// pong timeout: the transport's own close event is the only failure signal.
const DefaultHeartbeat = 30 * time.Second

// PushEvents are the typed events a push channel emits to its single owner.
// All callbacks are optional and are invoked without any channel lock held.
type PushEvents struct {
	// OnOpen fires once the handshake has been sent and the channel is ready.
	OnOpen func()

	// OnMetrics delivers each inbound metrics_update batch.
	OnMetrics func([]*metrics.Snapshot)

	// OnError reports transport-level errors. An error does not itself close
	// the connection; if a close follows, OnClose fires separately.
	OnError func(error)

	// OnClose fires when the transport closes underneath us (error or
	// server-initiated). It does NOT fire for an explicit Disconnect, and no
	// reconnect is ever scheduled: reconnection is the owner's decision.
	OnClose func()
}

// PushChannel is a single multiplexed WebSocket connection carrying metrics
// for an arbitrary set of servers. Lifecycle: Connect dials and performs the
// auth/subscription handshake, UpdateSubscription replaces the server set,
// Disconnect tears down from any state.
type PushChannel struct {
	url       string
	token     string
	events    PushEvents
	log       logger.Logger
	dialer    *websocket.Dialer
	heartbeat time.Duration

	mu         sync.Mutex
	state      PushState
	conn       *websocket.Conn
	cancelDial context.CancelFunc
	servers    []int64
	gen        uint64 // connection generation; stale goroutines compare and bail

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// PushOption customizes a PushChannel.
type PushOption func(*PushChannel)

// WithHeartbeat overrides the heartbeat interval (tests use short ones).
func WithHeartbeat(d time.Duration) PushOption {
	return func(c *PushChannel) { c.heartbeat = d }
}

// WithLogger sets the channel logger.
func WithLogger(l logger.Logger) PushOption {
	return func(c *PushChannel) { c.log = l }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) PushOption {
	return func(c *PushChannel) { c.dialer = d }
}

// NewPushChannel creates a push channel for the given endpoint and auth token.
func NewPushChannel(url, token string, events PushEvents, opts ...PushOption) *PushChannel {
	c := &PushChannel{
		url:       url,
		token:     token,
		events:    events,
		log:       logger.Default(),
		dialer:    websocket.DefaultDialer,
		heartbeat: DefaultHeartbeat,
		state:     PushIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *PushChannel) State() PushState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts a connection attempt for the given server set. It returns
// immediately; progress is reported through the event callbacks. The channel
// stays idle unless both an auth token and a non-empty server set are
// available. Calling Connect while a connection is active or in progress is
// a no-op.
func (c *PushChannel) Connect(servers []int64) {
	c.mu.Lock()

	switch c.state {
	case PushConnecting, PushAuthenticating, PushReady, PushClosing:
		c.mu.Unlock()
		return
	}

	if c.token == "" || len(servers) == 0 {
		c.log.Debug("push connect skipped: token or server set missing")
		c.state = PushIdle
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.state = PushConnecting
	c.cancelDial = cancel
	c.servers = append([]int64(nil), servers...)
	c.gen++
	gen := c.gen

	c.mu.Unlock()

	go c.dial(ctx, gen)
}

// dial runs the connect/handshake sequence for one connection generation.
func (c *PushChannel) dial(ctx context.Context, gen uint64) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	if c.gen != gen || c.state != PushConnecting {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return // Disconnect won the race
	}

	if err != nil {
		c.state = PushClosed
		c.cancelDial = nil
		c.mu.Unlock()
		c.emitError(errors.WrapWithCode(err, errors.ErrTransport,
			"Could not open the live metrics channel",
			"Press 'r' to retry, or switch to polling with 't'."))
		c.emitClose()
		return
	}

	c.conn = conn
	c.state = PushAuthenticating
	c.cancelDial = nil
	servers := append([]int64(nil), c.servers...)
	c.mu.Unlock()

	// One handshake message: token plus the full current server set.
	if err := c.writeJSON(handshakeMessage{Token: c.token, Servers: servers}); err != nil {
		// Reported but not fatal here; the read loop surfaces the close.
		c.emitError(errors.Wrap(err, "Handshake send failed"))
	} else {
		c.mu.Lock()
		if c.gen == gen && c.state == PushAuthenticating {
			c.state = PushReady
		}
		c.mu.Unlock()
		c.emitOpen()
	}

	go c.readLoop(conn, gen)
	go c.heartbeatLoop(gen)
}

// UpdateSubscription replaces the subscribed server set. While ready it
// sends one subscription-update message carrying the new full set; the auth
// token is not resent. In any other state the set is only recorded for the
// next connect.
func (c *PushChannel) UpdateSubscription(servers []int64) {
	c.mu.Lock()
	c.servers = append([]int64(nil), servers...)
	ready := c.state == PushReady
	c.mu.Unlock()

	if !ready {
		return
	}
	if err := c.writeJSON(clientMessage{Type: msgTypeSubscribe, Servers: servers}); err != nil {
		c.emitError(errors.Wrap(err, "Subscription update failed"))
	}
}

// Reconnect tears the connection down and immediately starts a new attempt
// with the last known server set. This is the only reconnection path; the
// channel never schedules one on its own.
func (c *PushChannel) Reconnect() {
	c.mu.Lock()
	servers := append([]int64(nil), c.servers...)
	c.mu.Unlock()

	c.Disconnect()
	c.Connect(servers)
}

// Disconnect cancels any pending handshake, closes the transport if open,
// and leaves the channel closed. Safe to call from any state, idempotent.
// No events are emitted for an explicit teardown.
func (c *PushChannel) Disconnect() {
	c.mu.Lock()

	if c.state == PushClosed || c.state == PushIdle {
		c.state = PushClosed
		c.mu.Unlock()
		return
	}

	c.state = PushClosing
	c.gen++ // orphan the dial/read/heartbeat goroutines of this connection

	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}

	conn := c.conn
	c.conn = nil
	c.state = PushClosed
	c.mu.Unlock()

	if conn != nil {
		// Best-effort close frame, then drop the transport.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// readLoop consumes inbound messages until the transport closes. The close
// is the single failure signal that drives the state transition.
func (c *PushChannel) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := c.gen == gen
			if current {
				c.state = PushClosed
				c.conn = nil
			}
			c.mu.Unlock()

			if current {
				c.log.Debug("push channel closed: %v", err)
				c.emitClose()
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed payloads are logged and dropped; a bad message never
			// clears good data.
			c.log.Warn("dropping malformed push message: %v", err)
			continue
		}

		switch msg.Type {
		case msgTypeMetricsUpdate:
			if c.events.OnMetrics != nil {
				c.events.OnMetrics(msg.Data)
			}
		default:
			c.log.Debug("ignoring push message type %q", msg.Type)
		}
	}
}

// heartbeatLoop pings while this connection generation is alive.
func (c *PushChannel) heartbeatLoop(gen uint64) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		alive := c.gen == gen && c.state == PushReady
		c.mu.Unlock()
		if !alive {
			return
		}
		if err := c.writeJSON(clientMessage{Type: msgTypePing}); err != nil {
			// Heartbeat failures are not specially handled; the close event,
			// if one follows, drives the state transition.
			c.emitError(errors.Wrap(err, "Heartbeat send failed"))
		}
	}
}

func (c *PushChannel) writeJSON(v interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New(errors.ErrTransport, "Push channel is not connected", "")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *PushChannel) emitOpen() {
	if c.events.OnOpen != nil {
		c.events.OnOpen()
	}
}

func (c *PushChannel) emitError(err error) {
	if c.events.OnError != nil {
		c.events.OnError(err)
	}
}

func (c *PushChannel) emitClose() {
	if c.events.OnClose != nil {
		c.events.OnClose()
	}
}
