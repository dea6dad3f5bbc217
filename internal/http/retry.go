package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	nethttp "net/http"
	"net/url"
	"time"
)

// ErrorType represents different classes of transport errors
type ErrorType int

const (
	// ErrorTypeNone indicates no transport error (a response was received)
	ErrorTypeNone ErrorType = iota
	// ErrorTypeNetwork indicates connection-level failures (dial, reset, timeout)
	ErrorTypeNetwork
	// ErrorTypeCanceled indicates the caller's context ended
	ErrorTypeCanceled
	// ErrorTypeFatal indicates failures a retry cannot fix (bad URL, TLS verification)
	ErrorTypeFatal
)

// ClassifyError determines the class of a transport error returned by
// http.Client.Do. It inspects typed errors rather than messages.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeCanceled
	}

	var verifyErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &verifyErr) || errors.As(err, &unknownAuth) || errors.As(err, &hostErr) {
		return ErrorTypeFatal
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return ErrorTypeFatal
	}

	return ErrorTypeNetwork
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeNone:
		return "none"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeCanceled:
		return "canceled"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// IsTimeout reports whether err is a network timeout.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// connectionOnlyRetryPolicy is the retryablehttp CheckRetry used for Riot
// traffic. Only connection-level failures are retried inside the HTTP client;
// every response, including 429 and 5xx, is returned to the caller so the
// dispatcher can rotate keys and apply its own backoff.
func connectionOnlyRetryPolicy(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}
	return ClassifyError(err) == ErrorTypeNetwork, nil
}

// CalculateBackoff returns unit * 2^attempt, capped at max when max > 0.
// attempt 0 returns unit.
func CalculateBackoff(attempt int, unit, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := unit
	for i := 0; i < attempt; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
