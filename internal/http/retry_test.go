package http

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/draftsight/collector/internal/config"
	"github.com/draftsight/collector/internal/logging"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeNone},
		{"canceled", fmt.Errorf("wrapped: %w", context.Canceled), ErrorTypeCanceled},
		{"deadline", &url.Error{Op: "Get", URL: "x", Err: context.DeadlineExceeded}, ErrorTypeCanceled},
		{"dial", &url.Error{Op: "Get", URL: "x", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}, ErrorTypeNetwork},
		{"tls unknown authority", &url.Error{Op: "Get", URL: "x", Err: x509.UnknownAuthorityError{}}, ErrorTypeFatal},
		{"parse", &url.Error{Op: "parse", URL: "::", Err: errors.New("missing scheme")}, ErrorTypeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got != tt.want {
				t.Errorf("ClassifyError() = %s, want %s", ErrorTypeName(got), ErrorTypeName(tt.want))
			}
		})
	}
}

// TestRetryPolicyIgnoresStatusCodes verifies 429 and 5xx responses are never
// retried inside the HTTP client.
func TestRetryPolicyIgnoresStatusCodes(t *testing.T) {
	ctx := context.Background()
	for _, code := range []int{200, 400, 429, 500, 503} {
		retry, err := connectionOnlyRetryPolicy(ctx, &http.Response{StatusCode: code}, nil)
		if retry || err != nil {
			t.Errorf("status %d: retry=%v err=%v, want no retry", code, retry, err)
		}
	}

	retry, _ := connectionOnlyRetryPolicy(ctx, nil, &net.OpError{Op: "dial", Err: errors.New("reset")})
	if !retry {
		t.Error("connection errors should be retried")
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	retry, err := connectionOnlyRetryPolicy(cctx, nil, &net.OpError{Op: "dial", Err: errors.New("reset")})
	if retry || !errors.Is(err, context.Canceled) {
		t.Errorf("canceled context: retry=%v err=%v", retry, err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		max     time.Duration
		want    time.Duration
	}{
		{0, 0, time.Second},
		{1, 0, 2 * time.Second},
		{3, 0, 8 * time.Second},
		{5, 10 * time.Second, 10 * time.Second},
		{-1, 0, time.Second},
	}
	for _, tt := range tests {
		got := CalculateBackoff(tt.attempt, time.Second, tt.max)
		if got != tt.want {
			t.Errorf("CalculateBackoff(%d, 1s, %v) = %v, want %v", tt.attempt, tt.max, got, tt.want)
		}
	}
}

// TestNewClientPassesThroughRateLimit checks a 429 reaches the caller after
// exactly one server hit, with its headers intact.
func TestNewClientPassesThroughRateLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(config.ProxyConfig{Mode: "no-proxy"}, "", logging.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "7" {
		t.Errorf("Retry-After header lost")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}
