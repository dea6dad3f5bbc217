// Package dispatch executes Riot API calls against the key pool: it picks a
// key, waits for quota, issues the call, and turns the typed outcome into
// failover, backoff or a final result.
package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/draftsight/collector/internal/api"
	"github.com/draftsight/collector/internal/clock"
	"github.com/draftsight/collector/internal/constants"
	"github.com/draftsight/collector/internal/credentials"
	"github.com/draftsight/collector/internal/http"
	"github.com/draftsight/collector/internal/logging"
	"github.com/draftsight/collector/internal/ratelimit"
)

// Strategy decides how a key is chosen for each attempt.
type Strategy struct {
	fixed bool
	index int
}

// Rotation spreads attempts across the pool round-robin, skipping keys on cooldown.
func Rotation() Strategy {
	return Strategy{}
}

// FixedKey pins every attempt to one key. Used when several processes split
// the keys between them.
func FixedKey(index int) Strategy {
	return Strategy{fixed: true, index: index}
}

// IsFixed reports whether the strategy pins a key, and which one.
func (s Strategy) IsFixed() (int, bool) {
	return s.index, s.fixed
}

func (s Strategy) String() string {
	if s.fixed {
		return fmt.Sprintf("fixed key #%d", s.index)
	}
	return "rotation"
}

// Config holds the dispatcher's retry parameters.
type Config struct {
	// MaxAttempts bounds attempts per call. Rate-limited and transient
	// outcomes both consume an attempt.
	MaxAttempts int

	// BackoffUnit is the transient backoff base: unit * 2^attempt.
	BackoffUnit time.Duration

	// BackoffMax caps the transient backoff; zero means uncapped.
	BackoffMax time.Duration

	Strategy Strategy
}

// DefaultConfig returns 5 attempts, 1s backoff unit, rotation.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: constants.MaxAttempts,
		BackoffUnit: constants.TransientBackoffUnit,
		Strategy:    Rotation(),
	}
}

// Counters are the process-wide request statistics.
type Counters struct {
	TotalRequests      int64
	SuccessfulRequests int64
	RateLimitErrors    int64
	OtherErrors        int64
}

// SuccessRate returns successful/total as a percentage.
func (c Counters) SuccessRate() float64 {
	if c.TotalRequests == 0 {
		return 0
	}
	return float64(c.SuccessfulRequests) / float64(c.TotalRequests) * 100
}

// Observer receives one event per issued request and per cooldown.
// Implemented by the metrics package.
type Observer interface {
	ObserveRequest(category ratelimit.Category, outcome api.Outcome, keyIndex int, latency time.Duration)
	ObserveCooldown(keyIndex int, cooldown time.Duration)
}

// ExhaustedError is returned when every attempt ended rate limited or
// transient.
type ExhaustedError struct {
	Category    ratelimit.Category
	Attempts    int
	RateLimited bool // the last attempt was rate limited
	Last        error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s request failed after %d attempts: %v", e.Category, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Dispatcher is safe for concurrent use; all workers share one instance,
// and through it one Pool and one Tracker.
type Dispatcher struct {
	pool     *credentials.Pool
	tracker  *ratelimit.Tracker
	cfg      Config
	clock    clock.Clock
	logger   *logging.Logger
	observer Observer

	total       atomic.Int64
	successful  atomic.Int64
	rateLimited atomic.Int64
	other       atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock sets the time source for cooldown and backoff sleeps.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// New creates a dispatcher. Non-positive config values fall back to defaults.
func New(pool *credentials.Pool, tracker *ratelimit.Tracker, cfg Config, opts ...Option) *Dispatcher {
	def := DefaultConfig()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = def.BackoffUnit
	}
	d := &Dispatcher{
		pool:    pool,
		tracker: tracker,
		cfg:     cfg,
		clock:   clock.Real{},
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Strategy returns the key selection strategy.
func (d *Dispatcher) Strategy() Strategy {
	return d.cfg.Strategy
}

// Tracker returns the quota tracker shared by every call.
func (d *Dispatcher) Tracker() *ratelimit.Tracker {
	return d.tracker
}

// Counters returns a snapshot of the request counters.
func (d *Dispatcher) Counters() Counters {
	return Counters{
		TotalRequests:      d.total.Load(),
		SuccessfulRequests: d.successful.Load(),
		RateLimitErrors:    d.rateLimited.Load(),
		OtherErrors:        d.other.Load(),
	}
}

// Seed sets the counters, typically to values persisted by a previous run.
func (d *Dispatcher) Seed(c Counters) {
	d.total.Store(c.TotalRequests)
	d.successful.Store(c.SuccessfulRequests)
	d.rateLimited.Store(c.RateLimitErrors)
	d.other.Store(c.OtherErrors)
}

// Do runs call until it succeeds, is rejected as invalid, or the attempt
// bound is exhausted.
//
//   - success: returns (value, true, nil)
//   - invalid request: returns (zero, false, nil) after exactly one attempt
//   - rate limited: the key is put on cooldown and the next attempt starts
//     immediately with another key
//   - transient: the next attempt starts after BackoffUnit * 2^attempt
//   - bound exhausted: returns *ExhaustedError
//   - ctx done: returns ctx.Err() from whichever wait was in progress
func Do[T any](ctx context.Context, d *Dispatcher, category ratelimit.Category, call func(ctx context.Context, key string) (T, error)) (T, bool, error) {
	var zero T
	var lastErr error
	lastRateLimited := false

	for attempt := 0; attempt < d.cfg.MaxAttempts; attempt++ {
		sel, err := d.acquire(ctx, category)
		if err != nil {
			return zero, false, err
		}

		d.pool.MarkIssued(sel.Index)
		d.total.Add(1)

		start := d.clock.Now()
		v, err := call(ctx, sel.Key)
		if err != nil && ctx.Err() != nil {
			return zero, false, ctx.Err()
		}

		outcome, retryAfter := api.Classify(err)
		if d.observer != nil {
			d.observer.ObserveRequest(category, outcome, sel.Index, d.clock.Now().Sub(start))
		}

		switch outcome {
		case api.OutcomeSuccess:
			d.pool.MarkSuccess(sel.Index)
			d.successful.Add(1)
			return v, true, nil

		case api.OutcomeInvalidRequest:
			d.other.Add(1)
			d.logger.Debug().
				Str("category", string(category)).
				Err(err).
				Msg("Invalid request, not retrying")
			return zero, false, nil

		case api.OutcomeRateLimited:
			d.rateLimited.Add(1)
			cooldown := d.pool.MarkRateLimited(sel.Index, retryAfter)
			if d.observer != nil {
				d.observer.ObserveCooldown(sel.Index, cooldown)
			}
			d.logger.Debug().
				Str("category", string(category)).
				Str("key", d.pool.FingerprintAt(sel.Index)).
				Dur("cooldown", cooldown).
				Int("attempt", attempt+1).
				Msg("Key rate limited, rotating")
			lastErr, lastRateLimited = err, true

		case api.OutcomeTransient:
			d.other.Add(1)
			lastErr, lastRateLimited = err, false
			if attempt < d.cfg.MaxAttempts-1 {
				backoff := http.CalculateBackoff(attempt, d.cfg.BackoffUnit, d.cfg.BackoffMax)
				d.logger.Debug().
					Str("category", string(category)).
					Err(err).
					Dur("backoff", backoff).
					Int("attempt", attempt+1).
					Msg("Transient error, backing off")
				if err := d.clock.Sleep(ctx, backoff); err != nil {
					return zero, false, err
				}
			}
		}
	}

	return zero, false, &ExhaustedError{
		Category:    category,
		Attempts:    d.cfg.MaxAttempts,
		RateLimited: lastRateLimited,
		Last:        lastErr,
	}
}

// acquire returns a key together with a reserved quota slot in category.
// A quota wait can be long, so the key is checked again afterwards: another
// worker may have put it on cooldown in the meantime. If the fresh selection
// has to wait, the slot is left unused and both steps start over.
func (d *Dispatcher) acquire(ctx context.Context, category ratelimit.Category) (credentials.Selection, error) {
	for {
		sel, err := d.acquireKey(ctx)
		if err != nil {
			return credentials.Selection{}, err
		}
		waited, err := d.tracker.Wait(ctx, category)
		if err != nil {
			return credentials.Selection{}, err
		}
		if waited == 0 {
			return sel, nil
		}

		fresh, err := d.selectKey(d.clock.Now())
		if err != nil {
			return credentials.Selection{}, err
		}
		if fresh.Wait <= 0 {
			return fresh, nil
		}
		d.logger.Debug().
			Str("category", string(category)).
			Dur("quota_wait", waited).
			Msg("Key went on cooldown during quota wait, reselecting")
	}
}

// selectKey applies the strategy once without waiting.
func (d *Dispatcher) selectKey(now time.Time) (credentials.Selection, error) {
	if index, fixed := d.cfg.Strategy.IsFixed(); fixed {
		return d.pool.Fixed(index, now)
	}
	return d.pool.NextAvailable(now), nil
}

// acquireKey selects a key per the strategy, sleeping out a cooldown when
// the chosen key (or, in rotation, every key) is cooling down. The wait is
// the exact remaining cooldown computed under the pool lock; after it the
// selection is redone, since another worker may have changed the pool.
func (d *Dispatcher) acquireKey(ctx context.Context) (credentials.Selection, error) {
	for {
		if err := ctx.Err(); err != nil {
			return credentials.Selection{}, err
		}

		sel, err := d.selectKey(d.clock.Now())
		if err != nil {
			return credentials.Selection{}, err
		}

		if sel.Wait <= 0 {
			return sel, nil
		}

		d.logger.Debug().
			Str("strategy", d.cfg.Strategy.String()).
			Dur("wait", sel.Wait).
			Msg("No key available, waiting for cooldown")
		if err := d.clock.Sleep(ctx, sel.Wait); err != nil {
			return credentials.Selection{}, err
		}
	}
}
