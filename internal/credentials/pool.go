// Package credentials manages the pool of Riot API keys: round-robin
// selection, per-key cooldowns after rate limiting, and usage counters.
package credentials

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Defaults for the rate-limit cooldown: base^errorCount seconds, capped.
const (
	DefaultBackoffBase = 2
	DefaultBackoffCap  = 60 * time.Second

	// successesPerRecovery is how many successes forgive one error.
	successesPerRecovery = 5
)

var (
	// ErrNoKeys is returned when a pool is built without any usable key.
	ErrNoKeys = errors.New("no API keys configured")

	// ErrKeyIndex is returned for a dedicated-key index outside the pool.
	ErrKeyIndex = errors.New("API key index out of range")
)

// credential is one key slot. Only the Pool touches it, under the pool lock.
type credential struct {
	key           string
	fingerprint   string
	cooldownUntil time.Time
	total         int64
	successes     int64
	errorCount    int
}

// Selection is the result of choosing a key. When Wait is positive the key is
// still cooling down and the caller must wait that long before using it.
type Selection struct {
	Index int
	Key   string
	Wait  time.Duration
}

// CredentialStats is a snapshot of one key's counters. The key itself is only
// exposed as a fingerprint.
type CredentialStats struct {
	Index       int
	Fingerprint string
	Total       int64
	Successes   int64
	ErrorCount  int
	Cooldown    time.Duration // remaining cooldown, zero when available
}

// SuccessRate returns successes/total as a percentage.
func (s CredentialStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Total) * 100
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock sets the time source used when marking a key rate limited.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithBackoff overrides the cooldown base and cap.
func WithBackoff(base int, max time.Duration) Option {
	return func(p *Pool) {
		if base >= 2 {
			p.backoffBase = base
		}
		if max > 0 {
			p.backoffCap = max
		}
	}
}

// Pool holds the API keys and their state. A single mutex guards every slot,
// so selection and marking from concurrent workers never lose updates.
type Pool struct {
	mu          sync.Mutex
	creds       []*credential
	next        int // index the next round-robin scan starts from
	now         func() time.Time
	backoffBase int
	backoffCap  time.Duration
}

// NewPool builds a pool from keys. Blank entries and entries starting with
// '#' are skipped; duplicates are kept only once.
func NewPool(keys []string, opts ...Option) (*Pool, error) {
	p := &Pool{
		now:         time.Now,
		backoffBase: DefaultBackoffBase,
		backoffCap:  DefaultBackoffCap,
	}
	for _, opt := range opts {
		opt(p)
	}

	seen := make(map[string]bool)
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || strings.HasPrefix(k, "#") || seen[k] {
			continue
		}
		seen[k] = true
		p.creds = append(p.creds, &credential{key: k, fingerprint: Fingerprint(k)})
	}
	if len(p.creds) == 0 {
		return nil, ErrNoKeys
	}
	return p, nil
}

// Len returns the number of keys in the pool.
func (p *Pool) Len() int {
	return len(p.creds)
}

// Fingerprint returns a short, stable, non-reversible identifier for a key,
// safe to log.
func Fingerprint(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])[:8]
}

// FingerprintAt returns the fingerprint of the key at index.
func (p *Pool) FingerprintAt(index int) string {
	if index < 0 || index >= len(p.creds) {
		return ""
	}
	return p.creds[index].fingerprint
}

// NextAvailable returns the next key in round-robin order, starting after the
// previously returned one, whose cooldown has expired at now. When every key
// is cooling down it returns the key with the soonest expiry and the exact
// time remaining until it.
func (p *Pool) NextAvailable(now time.Time) Selection {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.creds)
	soonest := -1
	for i := 0; i < n; i++ {
		idx := (p.next + i) % n
		c := p.creds[idx]
		if !now.Before(c.cooldownUntil) {
			p.next = (idx + 1) % n
			return Selection{Index: idx, Key: c.key}
		}
		if soonest < 0 || c.cooldownUntil.Before(p.creds[soonest].cooldownUntil) {
			soonest = idx
		}
	}

	c := p.creds[soonest]
	return Selection{Index: soonest, Key: c.key, Wait: c.cooldownUntil.Sub(now)}
}

// Fixed selects the dedicated key at index. Wait is set when that key is
// cooling down.
func (p *Pool) Fixed(index int, now time.Time) (Selection, error) {
	if index < 0 || index >= len(p.creds) {
		return Selection{}, fmt.Errorf("%w: %d (pool has %d keys)", ErrKeyIndex, index, len(p.creds))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.creds[index]
	sel := Selection{Index: index, Key: c.key}
	if now.Before(c.cooldownUntil) {
		sel.Wait = c.cooldownUntil.Sub(now)
	}
	return sel, nil
}

// MarkIssued counts a request sent with the key at index.
func (p *Pool) MarkIssued(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds[index].total++
}

// MarkRateLimited records a 429 for the key at index and puts it on cooldown.
// A positive retryAfter is used verbatim; otherwise the cooldown is
// base^errorCount seconds, capped. The cooldown always starts from the
// current time, replacing any earlier one. Returns the cooldown applied.
func (p *Pool) MarkRateLimited(index int, retryAfter time.Duration) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.creds[index]
	c.errorCount++

	d := retryAfter
	if d <= 0 {
		d = p.backoff(c.errorCount)
	}
	c.cooldownUntil = p.now().Add(d)
	return d
}

// backoff returns min(base^errorCount seconds, cap) without overflowing.
func (p *Pool) backoff(errorCount int) time.Duration {
	d := time.Second
	for i := 0; i < errorCount; i++ {
		d *= time.Duration(p.backoffBase)
		if d >= p.backoffCap {
			return p.backoffCap
		}
	}
	return d
}

// MarkSuccess counts a successful response for the key at index. Every fifth
// success forgives one error, never going below zero.
func (p *Pool) MarkSuccess(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.creds[index]
	c.successes++
	if c.successes%successesPerRecovery == 0 && c.errorCount > 0 {
		c.errorCount--
	}
}

// Stats returns a snapshot of every key's counters at now.
func (p *Pool) Stats(now time.Time) []CredentialStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]CredentialStats, len(p.creds))
	for i, c := range p.creds {
		var cd time.Duration
		if now.Before(c.cooldownUntil) {
			cd = c.cooldownUntil.Sub(now)
		}
		out[i] = CredentialStats{
			Index:       i,
			Fingerprint: c.fingerprint,
			Total:       c.total,
			Successes:   c.successes,
			ErrorCount:  c.errorCount,
			Cooldown:    cd,
		}
	}
	return out
}
