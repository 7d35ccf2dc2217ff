package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tkarls/arrmon/internal/errors"
	"github.com/tkarls/arrmon/internal/logger"
	"github.com/tkarls/arrmon/internal/metrics"
)

// Doer is the authenticated HTTP client used for polling requests. The real
// client (auth headers, TLS setup) lives outside this subsystem.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultPollInterval is the pull channel cadence.
const DefaultPollInterval = 2 * time.Second

// refreshLimit throttles out-of-cadence manual polls so refresh mashing
// cannot stampede the backend.
var refreshLimit = rate.Every(500 * time.Millisecond)

// PullConfig configures a PullChannel.
type PullConfig struct {
	// BaseURL is the server's management API root, e.g. "http://nas:7878".
	BaseURL string

	// ServerID is the identifier polled by this channel. A zero or negative
	// identifier disables polling entirely; no request is ever made.
	ServerID int64

	// Client performs the authenticated requests. Required.
	Client Doer

	// Interval overrides DefaultPollInterval (tests use short intervals).
	Interval time.Duration

	// Logger receives protocol noise. Defaults to the package default.
	Logger logger.Logger

	// OnSnapshot is called for every completed, well-formed response, in
	// completion order. The most recently completed response is therefore
	// the one that sticks, regardless of issue order.
	OnSnapshot func(*metrics.Snapshot)

	// OnError receives transport-level failures. Optional.
	OnError func(error)
}

// PullChannel periodically fetches metrics for a single server. Each channel
// is independent of every other; overlapping in-flight requests are allowed
// to race and are applied in completion order by the OnSnapshot callback.
type PullChannel struct {
	cfg     PullConfig
	log     logger.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
	inflight int
}

// NewPullChannel creates a pull channel. Start must be called to begin polling.
func NewPullChannel(cfg PullConfig) *PullChannel {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &PullChannel{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(refreshLimit, 1),
	}
}

// Start begins polling on the configured cadence. It is a no-op when the
// identifier is zero/absent or the channel is already running.
func (p *PullChannel) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.cfg.ServerID <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.ctx = ctx
	p.cancel = cancel
	p.running = true

	go p.loop(ctx)
}

// Stop cancels the poll timer and any in-flight requests. Safe to call
// repeatedly and while stopped.
func (p *PullChannel) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	p.ctx = nil
	p.cancel = nil
	p.running = false
}

// Running reports whether the poll loop is active.
func (p *PullChannel) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// InFlight reports whether at least one request is currently outstanding.
func (p *PullChannel) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight > 0
}

// Refresh issues one immediate out-of-cadence poll. Rate-limited; does
// nothing when the channel is stopped or the limiter says no.
func (p *PullChannel) Refresh() {
	p.mu.Lock()
	ctx := p.ctx
	running := p.running
	p.mu.Unlock()

	if !running || ctx == nil {
		return
	}
	if !p.limiter.Allow() {
		p.log.Debug("refresh throttled for server %d", p.cfg.ServerID)
		return
	}
	go p.poll(ctx)
}

func (p *PullChannel) loop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Fire and forget: calls may overlap across slow responses.
			go p.poll(ctx)
		}
	}
}

// poll performs one request/decode/apply cycle.
func (p *PullChannel) poll(ctx context.Context) {
	p.mu.Lock()
	p.inflight++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inflight--
		p.mu.Unlock()
	}()

	url := fmt.Sprintf("%s/metrics/%d", p.cfg.BaseURL, p.cfg.ServerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.reportError(errors.WrapWithCode(err, errors.ErrTransport,
			"Could not build metrics request", ""))
		return
	}

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return // channel stopped, not a failure
		}
		p.reportError(errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Metrics poll failed for server %d", p.cfg.ServerID), ""))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.reportError(errors.New(errors.ErrTransport,
			fmt.Sprintf("Metrics poll for server %d returned %s", p.cfg.ServerID, resp.Status), ""))
		return
	}

	var snap metrics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		// Protocol error: log and drop, never disturb existing state.
		p.log.Warn("dropping malformed poll response for server %d: %v", p.cfg.ServerID, err)
		return
	}

	if snap.ServerID == 0 {
		snap.ServerID = p.cfg.ServerID
	}
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now()
	}

	if ctx.Err() != nil {
		return // completed after Stop; discard
	}
	if p.cfg.OnSnapshot != nil {
		p.cfg.OnSnapshot(&snap)
	}
}

func (p *PullChannel) reportError(err error) {
	p.log.Debug("pull channel error: %v", err)
	if p.cfg.OnError != nil {
		p.cfg.OnError(err)
	}
}
