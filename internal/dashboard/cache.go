package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/occupancy-dashboard/internal/infrastructure/logging"
	"github.com/nerrad567/occupancy-dashboard/internal/metrics"
	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

// DefaultPollInterval is the refetch interval of the active entry.
const DefaultPollInterval = 600_000 * time.Millisecond

// Status is the lifecycle state of a cache entry.
type Status int

// Entry states. An entry moves from Idle to Loading, then to Success or
// Error, and back to Loading on the next fetch.
const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

// String returns the lowercase state name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for _, st := range []Status{StatusIdle, StatusLoading, StatusSuccess, StatusError} {
		if string(text) == st.String() {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("dashboard: unknown status %q", text)
}

// Entry is the cached state of one window.
type Entry struct {
	Key        occupancy.QueryKey
	Samples    []occupancy.Sample
	FetchedAt  time.Time
	StartedAt  time.Time
	Status     Status
	LastError  error
	Generation uint64

	hasData  bool
	inFlight bool
	cancel   context.CancelFunc

	// settledStart is the StartedAt of the last fetch whose result was applied.
	settledStart time.Time
}

// Snapshot is a read-only view of the active entry.
//
// Samples is shared with the cache and must not be modified.
type Snapshot struct {
	Key       occupancy.QueryKey
	Status    Status
	Loading   bool
	Fetching  bool
	Samples   []occupancy.Sample
	Err       error
	FetchedAt time.Time
}

// CacheConfig holds the dependencies and timing of a Cache.
type CacheConfig struct {
	// Fetcher loads samples for a window. Required.
	Fetcher occupancy.Fetcher

	// Logger receives fetch diagnostics. Default: logging.Default().
	Logger *logging.Logger

	// Clock drives the poll timer. Default: the real clock.
	Clock clockwork.Clock

	// PollInterval is the time between fetch starts of the active entry.
	// Default: DefaultPollInterval.
	PollInterval time.Duration

	// FetchTimeout bounds a single fetch. Zero disables the bound.
	FetchTimeout time.Duration
}

// Cache stores fetched samples per window and polls the active window.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Listeners are called outside the cache lock, one at a time.
type Cache struct {
	fetcher  occupancy.Fetcher
	logger   *logging.Logger
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration

	mu        sync.Mutex
	entries   map[occupancy.QueryKey]*Entry
	active    occupancy.QueryKey
	hasActive bool
	baseCtx   context.Context
	started   bool

	listenerMu sync.RWMutex
	listeners  map[int]func(Snapshot)
	nextID     int

	// notifyMu serialises listener calls.
	notifyMu sync.Mutex

	// wake re-arms the poll timer after the active entry changed.
	wake     chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewCache creates a cache. Call Start to begin polling.
//
// Observe and Refetch work before Start; their fetches are not bound to the
// Start context until the cache is started.
//
// Returns:
//   - *Cache: Ready to start
//   - error: ErrNoFetcher if cfg.Fetcher is nil
func NewCache(cfg CacheConfig) (*Cache, error) {
	if cfg.Fetcher == nil {
		return nil, ErrNoFetcher
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := cfg.FetchTimeout
	if timeout < 0 {
		timeout = 0
	}

	return &Cache{
		fetcher:   cfg.Fetcher,
		logger:    logger.With("component", "cache"),
		clock:     clock,
		interval:  interval,
		timeout:   timeout,
		entries:   make(map[occupancy.QueryKey]*Entry),
		baseCtx:   context.Background(),
		listeners: make(map[int]func(Snapshot)),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// PollInterval returns the configured poll interval.
func (c *Cache) PollInterval() time.Duration {
	return c.interval
}

// Start launches the poll loop. Fetches started afterwards derive their
// context from ctx. Call Stop to shut down.
//
// Returns:
//   - error: ErrAlreadyStarted on a second call
func (c *Cache) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.baseCtx = ctx
	c.mu.Unlock()

	c.wg.Add(1)
	go c.pollLoop(ctx)

	return nil
}

// Stop ends polling, cancels any in-flight fetch and waits for the fetch
// goroutines to return. Safe to call multiple times.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		for _, e := range c.entries {
			if e.inFlight {
				c.abandonLocked(e)
			}
		}
		c.mu.Unlock()

		c.wg.Wait()
	})
}

// Observe makes key the active window.
//
// A fetch in flight for the previously active key is cancelled and its
// result discarded. If the entry for key is new, or its last fetch started at
// least one poll interval ago, a fetch starts immediately; otherwise the
// cached data is served and the timer runs from that entry's last start.
// Listeners are notified of the new active snapshot.
func (c *Cache) Observe(key occupancy.QueryKey) {
	c.mu.Lock()

	if c.hasActive && c.active != key {
		if prev := c.entries[c.active]; prev != nil && prev.inFlight {
			c.logger.Debug("cancelling superseded fetch", "range", c.active.String())
			c.abandonLocked(prev)
		}
	}
	changed := !c.hasActive || c.active != key
	c.active = key
	c.hasActive = true

	e := c.entries[key]
	if e == nil {
		e = &Entry{Key: key, Status: StatusIdle}
		c.entries[key] = e
	}

	if !e.inFlight && c.staleLocked(e) {
		c.startFetchLocked(e)
	} else {
		c.signal()
	}

	metrics.ActiveRangeHours.Set(float64(key))
	snap := c.snapshotLocked(e)
	c.mu.Unlock()

	if changed {
		c.notify(snap)
	}
}

// Refetch starts a fetch of the active window now.
//
// A fetch already in flight for the window is cancelled and its result
// dropped. The new fetch becomes the baseline of the poll interval.
// Without an active window Refetch does nothing.
func (c *Cache) Refetch() {
	c.mu.Lock()
	if !c.hasActive {
		c.mu.Unlock()
		return
	}

	e := c.entries[c.active]
	c.logger.Debug("manual refetch", "range", e.Key.String(), "superseding", e.inFlight)
	c.startFetchLocked(e)
	snap := c.snapshotLocked(e)
	c.mu.Unlock()

	c.notify(snap)
}

// Active returns a snapshot of the active entry. Before the first Observe
// it returns an idle snapshot with no samples.
func (c *Cache) Active() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasActive {
		return Snapshot{Status: StatusIdle, Samples: []occupancy.Sample{}}
	}
	return c.snapshotLocked(c.entries[c.active])
}

// Lookup returns a copy of the entry for key, active or not.
func (c *Cache) Lookup(key occupancy.QueryKey) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	out := *e
	out.cancel = nil
	return out, true
}

// Subscribe registers fn to receive the active snapshot after each applied
// fetch completion and each change of active key.
//
// Returns:
//   - func(): Removes the listener
func (c *Cache) Subscribe(fn func(Snapshot)) func() {
	c.listenerMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		delete(c.listeners, id)
		c.listenerMu.Unlock()
	}
}

// staleLocked reports whether e needs a fetch on activation.
func (c *Cache) staleLocked(e *Entry) bool {
	if e.StartedAt.IsZero() {
		return true
	}
	return c.clock.Since(e.StartedAt) >= c.interval
}

// startFetchLocked supersedes any fetch of e and starts a new one.
// Caller must hold c.mu.
func (c *Cache) startFetchLocked(e *Entry) {
	if e.cancel != nil {
		e.cancel()
	}

	e.Generation++
	e.StartedAt = c.clock.Now()
	e.Status = StatusLoading
	e.inFlight = true

	var ctx context.Context
	var cancel context.CancelFunc
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(c.baseCtx, c.timeout)
	} else {
		ctx, cancel = context.WithCancel(c.baseCtx)
	}
	e.cancel = cancel

	c.wg.Add(1)
	go c.runFetch(ctx, cancel, e.Key, e.Generation)

	c.signal()
}

// abandonLocked cancels the in-flight fetch of e so its result is dropped,
// and restores the status and start time the entry had before the fetch
// started. An entry that never settled is stale again on its next activation.
// Caller must hold c.mu.
func (c *Cache) abandonLocked(e *Entry) {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.Generation++
	e.inFlight = false
	e.StartedAt = e.settledStart

	switch {
	case e.LastError != nil:
		e.Status = StatusError
	case e.hasData:
		e.Status = StatusSuccess
	default:
		e.Status = StatusIdle
	}
}

// runFetch performs one fetch and hands the result to complete.
func (c *Cache) runFetch(ctx context.Context, cancel context.CancelFunc, key occupancy.QueryKey, gen uint64) {
	defer c.wg.Done()
	defer cancel()

	started := c.clock.Now()
	samples, err := c.fetcher.FetchRange(ctx, key.Range())
	elapsed := c.clock.Since(started)

	c.complete(key, gen, samples, err, elapsed)
}

// complete applies a fetch result if it is still the latest request for the
// active key, and drops it otherwise.
func (c *Cache) complete(key occupancy.QueryKey, gen uint64, samples []occupancy.Sample, err error, elapsed time.Duration) {
	c.mu.Lock()

	e := c.entries[key]
	if e == nil || e.Generation != gen || !c.hasActive || c.active != key || c.stopped() || c.baseCtx.Err() != nil {
		c.mu.Unlock()
		metrics.FetchTotal.WithLabelValues(metrics.OutcomeDiscarded).Inc()
		metrics.FetchDuration.WithLabelValues(metrics.OutcomeDiscarded).Observe(elapsed.Seconds())
		c.logger.Debug("discarded stale fetch result", "range", key.String(), "generation", gen)
		return
	}

	e.inFlight = false
	e.cancel = nil
	e.settledStart = e.StartedAt

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		e.Status = StatusError
		e.LastError = occupancy.NewQueryError(key.Range(), err)
		c.logger.Warn("fetch failed",
			"range", key.String(),
			"error", e.LastError,
			"kept_samples", len(e.Samples),
		)
	} else {
		if samples == nil {
			samples = []occupancy.Sample{}
		}
		e.Samples = samples
		e.FetchedAt = c.clock.Now()
		e.LastError = nil
		e.Status = StatusSuccess
		e.hasData = true
		c.logger.Debug("fetch complete", "range", key.String(), "samples", len(samples), "elapsed", elapsed)
	}

	metrics.FetchTotal.WithLabelValues(outcome).Inc()
	metrics.FetchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	metrics.ActiveSamples.Set(float64(len(e.Samples)))

	snap := c.snapshotLocked(e)
	c.signal()
	c.mu.Unlock()

	c.notify(snap)
}

func (c *Cache) stopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// snapshotLocked copies the visible state of e. Caller must hold c.mu.
func (c *Cache) snapshotLocked(e *Entry) Snapshot {
	samples := e.Samples
	if samples == nil {
		samples = []occupancy.Sample{}
	}
	return Snapshot{
		Key:       e.Key,
		Status:    e.Status,
		Loading:   e.inFlight && !e.hasData,
		Fetching:  e.inFlight,
		Samples:   samples,
		Err:       e.LastError,
		FetchedAt: e.FetchedAt,
	}
}

// notify calls every listener with snap.
func (c *Cache) notify(snap Snapshot) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.listenerMu.RLock()
	fns := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenerMu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// signal asks the poll loop to recompute its deadline.
func (c *Cache) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pollLoop fires the active entry's refetch when its interval elapses.
func (c *Cache) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	timer := c.clock.NewTimer(c.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-c.wake:
			if !timer.Stop() {
				// Expired before the wake-up was seen; handle that tick first.
				select {
				case <-timer.Chan():
					c.tick()
				default:
				}
			}
			timer.Reset(c.nextDelay())
		case <-timer.Chan():
			c.tick()
			timer.Reset(c.nextDelay())
		}
	}
}

// nextDelay returns the time until the active entry is next due.
// Due times fall on whole intervals after the entry's last fetch start, so a
// tick absorbed by an in-flight fetch moves the next one a full interval on.
func (c *Cache) nextDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasActive {
		return c.interval
	}
	e := c.entries[c.active]
	if e.StartedAt.IsZero() {
		return c.interval
	}

	elapsed := c.clock.Since(e.StartedAt)
	if elapsed < 0 {
		return c.interval
	}
	return c.interval - elapsed%c.interval
}

// tick handles a timer expiry for the active entry.
func (c *Cache) tick() {
	c.mu.Lock()
	if !c.hasActive {
		c.mu.Unlock()
		return
	}

	e := c.entries[c.active]
	if e.inFlight {
		c.mu.Unlock()
		metrics.PollTicks.WithLabelValues(metrics.TickAbsorbed).Inc()
		c.logger.Debug("poll tick absorbed by in-flight fetch", "range", e.Key.String())
		return
	}
	if !c.staleLocked(e) {
		c.mu.Unlock()
		return
	}

	c.startFetchLocked(e)
	snap := c.snapshotLocked(e)
	c.mu.Unlock()

	metrics.PollTicks.WithLabelValues(metrics.TickFetched).Inc()
	c.notify(snap)
}
