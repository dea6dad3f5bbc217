// Package ratelimit tracks pool-wide request quotas per Riot method category
// using rolling time windows.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/draftsight/collector/internal/clock"
	"github.com/draftsight/collector/internal/logging"
)

// Tracker enforces the rolling quota windows of every category for a pool of
// keys. Per-key limits are multiplied by the number of keys, since requests
// are spread across the pool.
//
// All state is guarded by one mutex. Reserve performs purge, check and record
// as a single critical section, so concurrently admitted requests can never
// push a window over its limit.
type Tracker struct {
	mu       sync.Mutex
	registry *Registry
	keyCount int
	margin   time.Duration
	clock    clock.Clock
	logger   *logging.Logger
	history  map[Category]*ring
	lastWarn time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithSafetyMargin overrides DefaultSafetyMargin.
func WithSafetyMargin(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.margin = d }
}

// WithClock sets the time source used by Wait.
func WithClock(c clock.Clock) TrackerOption {
	return func(t *Tracker) { t.clock = c }
}

// WithLogger sets the logger used for long-wait warnings.
func WithLogger(l *logging.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

// WindowUsage reports how much of a window is currently consumed.
type WindowUsage struct {
	Window Window
	Used   int
	Limit  int // effective limit (per-key limit * key count)
}

// NewTracker creates a tracker for keyCount keys. A keyCount below one is
// treated as one.
func NewTracker(registry *Registry, keyCount int, opts ...TrackerOption) *Tracker {
	if keyCount < 1 {
		keyCount = 1
	}
	if registry == nil {
		registry = NewRegistry()
	}
	t := &Tracker{
		registry: registry,
		keyCount: keyCount,
		margin:   DefaultSafetyMargin,
		clock:    clock.Real{},
		logger:   logging.Nop(),
		history:  make(map[Category]*ring),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Registry returns the registry the tracker was built with.
func (t *Tracker) Registry() *Registry {
	return t.registry
}

// KeyCount returns the number of keys the limits are scaled by.
func (t *Tracker) KeyCount() int {
	return t.keyCount
}

// CanProceed reports whether a request in category may be issued at now.
// When it may not, the returned duration is how long to wait before the
// blocking request leaves its window (plus the safety margin).
func (t *Tracker) CanProceed(category Category, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.check(category, now)
}

// Record appends a request timestamp for category. Timestamps earlier than
// the newest recorded one are clamped so the history stays ordered.
func (t *Tracker) Record(category Category, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record(category, now)
}

// Reserve is CanProceed followed by Record under a single lock. It records
// only when the request is admitted.
func (t *Tracker) Reserve(category Category, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ok, wait := t.check(category, now)
	if ok {
		t.record(category, now)
	}
	return ok, wait
}

// Wait blocks until a request in category is admitted and recorded, or ctx
// is cancelled. It returns the total time spent sleeping for capacity.
func (t *Tracker) Wait(ctx context.Context, category Category) (time.Duration, error) {
	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return waited, err
		}

		now := t.clock.Now()
		ok, wait := t.Reserve(category, now)
		if ok {
			return waited, nil
		}

		t.warnLongWait(category, wait, now)

		if err := t.clock.Sleep(ctx, wait); err != nil {
			return waited, err
		}
		waited += wait
	}
}

// Usage returns the current consumption of every window of category.
func (t *Tracker) Usage(category Category, now time.Time) []WindowUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg := t.registry.Config(category)
	h := t.ring(category)
	h.dropThrough(now.Add(-cfg.longest()))

	usage := make([]WindowUsage, 0, len(cfg.Windows))
	for _, w := range cfg.Windows {
		usage = append(usage, WindowUsage{
			Window: w,
			Used:   h.countAfter(now.Add(-w.Period)),
			Limit:  w.Limit * t.keyCount,
		})
	}
	return usage
}

func (t *Tracker) check(category Category, now time.Time) (bool, time.Duration) {
	cfg := t.registry.Config(category)
	h := t.ring(category)
	h.dropThrough(now.Add(-cfg.longest()))

	var wait time.Duration
	for _, w := range cfg.Windows {
		limit := w.Limit * t.keyCount
		if h.countAfter(now.Add(-w.Period)) < limit {
			continue
		}
		// The limit-th most recent request is the one that has to expire.
		blocking := h.at(h.len() - limit)
		if d := blocking.Add(w.Period).Sub(now) + t.margin; d > wait {
			wait = d
		}
	}
	return wait == 0, wait
}

func (t *Tracker) record(category Category, now time.Time) {
	h := t.ring(category)
	if h.len() > 0 && now.Before(h.last()) {
		now = h.last()
	}
	h.push(now)
}

func (t *Tracker) ring(category Category) *ring {
	h, ok := t.history[category]
	if !ok {
		h = &ring{}
		t.history[category] = h
	}
	return h
}

// warnLongWait logs waits over two seconds, at most every ten seconds.
func (t *Tracker) warnLongWait(category Category, wait time.Duration, now time.Time) {
	if wait <= 2*time.Second {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.lastWarn) < 10*time.Second {
		return
	}
	t.lastWarn = now
	t.logger.Warn().
		Str("category", string(category)).
		Dur("wait", wait).
		Msg("Quota window full, waiting for capacity")
}
