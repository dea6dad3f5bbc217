package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/draftsight/collector/internal/api"
	"github.com/draftsight/collector/internal/collector"
	"github.com/draftsight/collector/internal/config"
	"github.com/draftsight/collector/internal/credentials"
	"github.com/draftsight/collector/internal/diskspace"
	"github.com/draftsight/collector/internal/dispatch"
	apihttp "github.com/draftsight/collector/internal/http"
	"github.com/draftsight/collector/internal/logging"
	"github.com/draftsight/collector/internal/metrics"
	"github.com/draftsight/collector/internal/progress"
	"github.com/draftsight/collector/internal/ratelimit"
	"github.com/draftsight/collector/internal/store"
)

// pipelineOptions are the per-command settings layered over the config.
type pipelineOptions struct {
	// KeyIndex pins every request to one key; negative means rotation.
	KeyIndex int
	Elo      collector.Elo
}

// pipeline is the fully wired collection stack of one CLI invocation.
type pipeline struct {
	cfg       *config.Config
	pool      *credentials.Pool
	tracker   *ratelimit.Tracker
	disp      *dispatch.Dispatcher
	store     *store.Store
	metrics   *metrics.Metrics
	collector *collector.Collector
}

// buildRegistry returns the default registry with the configured quota
// overrides applied.
func buildRegistry(cfg *config.Config, logger *logging.Logger) *ratelimit.Registry {
	registry := ratelimit.NewRegistry()
	for name, q := range cfg.Quotas {
		category := ratelimit.Category(name)
		if !slices.Contains(ratelimit.AllCategories(), category) {
			logger.Warn().Str("category", name).Msg("Ignoring quota override for unknown category")
			continue
		}
		registry.SetWindows(category, []ratelimit.Window{
			{Limit: q.ShortLimit, Period: time.Duration(q.ShortSeconds) * time.Second},
			{Limit: q.LongLimit, Period: time.Duration(q.LongSeconds) * time.Second},
		})
	}
	return registry
}

// newPipeline builds the pool, tracker, dispatcher, API client, store and
// collector from cfg. The metrics endpoint, when configured, is served until
// ctx is cancelled.
func newPipeline(ctx context.Context, cfg *config.Config, opts pipelineOptions, logger *logging.Logger) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := credentials.NewPool(cfg.APIKeys,
		credentials.WithBackoff(cfg.BackoffBaseSeconds, cfg.BackoffCap()))
	if err != nil {
		return nil, err
	}

	strategy := dispatch.Rotation()
	keyCount := pool.Len()
	if opts.KeyIndex >= 0 {
		if opts.KeyIndex >= pool.Len() {
			return nil, fmt.Errorf("%w: --api-key-index %d with %d keys", credentials.ErrKeyIndex, opts.KeyIndex, pool.Len())
		}
		strategy = dispatch.FixedKey(opts.KeyIndex)
		// one key's quota, not the pool's
		keyCount = 1
	}

	registry := buildRegistry(cfg, logger)
	tracker := ratelimit.NewTracker(registry, keyCount, ratelimit.WithLogger(logger.Named("ratelimit")))
	m := metrics.New()

	dcfg := dispatch.DefaultConfig()
	dcfg.MaxAttempts = cfg.MaxAttempts
	dcfg.BackoffMax = cfg.BackoffCap()
	dcfg.Strategy = strategy
	disp := dispatch.New(pool, tracker, dcfg,
		dispatch.WithLogger(logger.Named("dispatch")),
		dispatch.WithObserver(m))

	httpClient, err := apihttp.NewClient(cfg.Proxy, api.PlatformURL(cfg.Platform), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	riot := api.NewClient(httpClient, cfg.Platform, cfg.Region,
		api.WithLogger(logger.Named("api")),
		api.WithRegistry(registry))

	st, err := store.Open(cfg.DBPath, store.WithLogger(logger.Named("store")))
	if err != nil {
		return nil, err
	}

	ccfg := collector.DefaultConfig()
	ccfg.PlayersPerBatch = cfg.Players
	ccfg.MatchesPerPlayer = cfg.MatchesPerPlayer
	ccfg.Elo = opts.Elo
	ccfg.Freshness = cfg.RefreshWindow()
	ccfg.Workers = cfg.Workers
	ccfg.QueueID = cfg.QueueID
	ccfg.Queue = cfg.Queue
	ccfg.Tier = cfg.Tier
	ccfg.Division = cfg.Division
	ccfg.MaxPages = cfg.MaxPages
	ccfg.CollectTimelines = cfg.CollectTimelines
	ccfg.MinFreeBytes = int64(cfg.MinFreeMB) * diskspace.MB

	col := collector.New(riot, disp, st, pool, ccfg,
		collector.WithLogger(logger),
		collector.WithRecorder(m),
		collector.WithProgress(progress.New(os.Stderr)))

	if err := col.Resume(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server stopped")
			}
		}()
	}

	logger.Info().
		Int("keys", pool.Len()).
		Str("strategy", strategy.String()).
		Str("db", cfg.DBPath).
		Msg("Collector ready")
	for _, category := range ratelimit.AllCategories() {
		logger.Debug().Msg("Quota " + registry.DisplayString(category))
	}

	return &pipeline{
		cfg:       cfg,
		pool:      pool,
		tracker:   tracker,
		disp:      disp,
		store:     st,
		metrics:   m,
		collector: col,
	}, nil
}

// Close closes the store.
func (p *pipeline) Close() error {
	return p.store.Close()
}
