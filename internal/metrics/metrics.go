// Package metrics exposes collector activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/draftsight/collector/internal/api"
	"github.com/draftsight/collector/internal/logging"
	"github.com/draftsight/collector/internal/ratelimit"
)

const namespace = "draftsight"

// Metrics holds the collector's Prometheus collectors on a private registry.
// It implements dispatch.Observer and collector.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	KeyCooldowns       *prometheus.CounterVec
	CooldownSeconds    prometheus.Histogram
	MatchesCommitted   prometheus.Counter
	TimelinesCommitted prometheus.Counter
	PlayersProcessed   prometheus.Counter
}

// New creates and registers every metric, plus the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "riot_requests_total",
				Help:      "Riot API requests issued, by quota category and outcome",
			},
			[]string{"category", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "riot_request_duration_seconds",
				Help:      "Latency of Riot API requests",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"category"},
		),
		KeyCooldowns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "key_cooldowns_total",
				Help:      "Cooldowns applied after a 429, by key index",
			},
			[]string{"key_index"},
		),
		CooldownSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "key_cooldown_seconds",
			Help:      "Length of applied key cooldowns",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 60, 120},
		}),
		MatchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_committed_total",
			Help:      "Matches newly written to the store",
		}),
		TimelinesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timelines_committed_total",
			Help:      "Match timelines newly written to the store",
		}),
		PlayersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_processed_total",
			Help:      "Players whose recent matches were collected",
		}),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.KeyCooldowns,
		m.CooldownSeconds,
		m.MatchesCommitted,
		m.TimelinesCommitted,
		m.PlayersProcessed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest counts one issued request.
func (m *Metrics) ObserveRequest(category ratelimit.Category, outcome api.Outcome, _ int, latency time.Duration) {
	m.RequestsTotal.WithLabelValues(string(category), outcome.String()).Inc()
	m.RequestDuration.WithLabelValues(string(category)).Observe(latency.Seconds())
}

// ObserveCooldown counts one cooldown applied to a key.
func (m *Metrics) ObserveCooldown(keyIndex int, cooldown time.Duration) {
	m.KeyCooldowns.WithLabelValues(strconv.Itoa(keyIndex)).Inc()
	m.CooldownSeconds.Observe(cooldown.Seconds())
}

// MatchesStored adds n newly committed matches.
func (m *Metrics) MatchesStored(n int) {
	m.MatchesCommitted.Add(float64(n))
}

// TimelinesStored adds n newly committed timelines.
func (m *Metrics) TimelinesStored(n int) {
	m.TimelinesCommitted.Add(float64(n))
}

// PlayerProcessed counts one finished player.
func (m *Metrics) PlayerProcessed() {
	m.PlayersProcessed.Inc()
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
