package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http2"

	"github.com/draftsight/collector/internal/config"
	"github.com/draftsight/collector/internal/constants"
	"github.com/draftsight/collector/internal/logging"
)

// retryLogger adapts the zerolog wrapper to retryablehttp.LeveledLogger.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg("[retry] " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("[retry] " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("[retry] " + msg)
}

// NewClient creates the HTTP client used for Riot API calls.
//
// Key features:
//   - Proxy support (uses ConfigureHTTPClient as base)
//   - HTTP/2 on direct connections, HTTP/1.1 through proxies
//   - Connection-level failures retried a few times inside the client
//   - Status codes (429, 5xx, 4xx) returned untouched for the dispatcher
//   - Every call bounded by constants.HTTPRequestTimeout
func NewClient(cfg config.ProxyConfig, warmupURL string, logger *logging.Logger) (*nethttp.Client, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	baseClient, err := ConfigureHTTPClient(cfg, warmupURL, logger)
	if err != nil {
		return nil, err
	}

	if tr, ok := baseClient.Transport.(*nethttp.Transport); ok {
		configureHTTP2(tr, proxyActive(cfg))
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = baseClient
	retryClient.RetryMax = constants.HTTPConnectRetries
	retryClient.RetryWaitMin = constants.TransientBackoffUnit / 2
	retryClient.RetryWaitMax = constants.TransientBackoffUnit * 2
	retryClient.CheckRetry = connectionOnlyRetryPolicy
	// Hand the final response or error back unchanged instead of wrapping it
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{logger: logger}

	client := retryClient.StandardClient()
	client.Timeout = constants.HTTPRequestTimeout
	return client, nil
}

// configureHTTP2 enables HTTP/2 unless a proxy is in use or DISABLE_HTTP2=true.
// Proxies often have issues with HTTP/2 multiplexing; FORCE_HTTP2=true overrides.
func configureHTTP2(tr *nethttp.Transport, proxied bool) {
	disable := os.Getenv("DISABLE_HTTP2") == "true" ||
		(proxied && os.Getenv("FORCE_HTTP2") != "true")

	if disable {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
		return
	}

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)
}

// proxyActive trusts the configured mode first and only consults the
// environment in system mode.
func proxyActive(cfg config.ProxyConfig) bool {
	switch strings.ToLower(cfg.Mode) {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return true
	}
}
