// Package api provides error types for Riot API responses.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Outcome is the structured result class of one remote call.
type Outcome int

const (
	// OutcomeSuccess means the payload is usable.
	OutcomeSuccess Outcome = iota
	// OutcomeRateLimited means the key hit a quota (HTTP 429).
	OutcomeRateLimited
	// OutcomeInvalidRequest means the request itself is wrong (HTTP 400/404); never retried.
	OutcomeInvalidRequest
	// OutcomeTransient covers network failures, 5xx and any other status; retried with backoff.
	OutcomeTransient
)

// String returns a short name used in logs and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeInvalidRequest:
		return "invalid_request"
	case OutcomeTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// ErrInvalidRequest matches every InvalidRequestError via errors.Is.
var ErrInvalidRequest = errors.New("invalid request")

// RateLimitedError is returned for HTTP 429. RetryAfter is zero when the
// server did not send a usable Retry-After header.
type RateLimitedError struct {
	Path       string
	RetryAfter time.Duration
	LimitType  string // X-Rate-Limit-Type: application, method or service
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited on %s (retry after %s)", e.Path, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited on %s", e.Path)
}

// InvalidRequestError is returned for HTTP 400 and 404: a malformed or stale
// identifier that no retry can fix.
type InvalidRequestError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

// Is makes errors.Is(err, ErrInvalidRequest) true.
func (e *InvalidRequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// TransientError wraps any other failure: network errors, 5xx, 401/403 and
// undecodable bodies. StatusCode is zero for network errors.
type TransientError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient error on %s: status %d: %v", e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient error on %s: %v", e.Path, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Classify maps an error returned by Client to its Outcome. For rate-limited
// errors it also returns the server-supplied retry-after.
func Classify(err error) (Outcome, time.Duration) {
	if err == nil {
		return OutcomeSuccess, 0
	}

	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return OutcomeRateLimited, rl.RetryAfter
	}
	if errors.Is(err, ErrInvalidRequest) {
		return OutcomeInvalidRequest, 0
	}
	return OutcomeTransient, 0
}

// IsRateLimited reports whether err is a 429 outcome.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// statusError builds the typed error for a non-200 response.
func statusError(path string, resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitedError{
			Path:       path,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			LimitType:  resp.Header.Get("X-Rate-Limit-Type"),
		}
	case http.StatusBadRequest, http.StatusNotFound:
		return &InvalidRequestError{Path: path, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	default:
		return &TransientError{
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(strings.TrimSpace(string(body)), 200)),
		}
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Unparseable or
// non-positive values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
