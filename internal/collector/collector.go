// Package collector drives match ingestion: it discovers ranked players,
// fetches their recent matches through the dispatcher and commits new ones
// to the store, one batch at a time or continuously.
package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/draftsight/collector/internal/api"
	"github.com/draftsight/collector/internal/clock"
	"github.com/draftsight/collector/internal/constants"
	"github.com/draftsight/collector/internal/credentials"
	"github.com/draftsight/collector/internal/diskspace"
	"github.com/draftsight/collector/internal/dispatch"
	"github.com/draftsight/collector/internal/logging"
	"github.com/draftsight/collector/internal/models"
	"github.com/draftsight/collector/internal/progress"
	"github.com/draftsight/collector/internal/ratelimit"
	"github.com/draftsight/collector/internal/store"
)

// RiotAPI is the subset of the Riot API the collector uses. Implemented by
// *api.Client.
type RiotAPI interface {
	LeagueEntries(ctx context.Context, key, queue, tier, division string, page int) ([]models.LeagueEntry, error)
	ApexLeague(ctx context.Context, key string, tier api.ApexTier, queue string) (*models.LeagueList, error)
	SummonerByID(ctx context.Context, key, summonerID string) (*models.Summoner, error)
	MatchIDs(ctx context.Context, key, puuid string, queueID, count int) ([]string, error)
	Match(ctx context.Context, key, matchID string) ([]byte, error)
	Timeline(ctx context.Context, key, matchID string) ([]byte, error)
}

// Recorder receives ingestion events. Implemented by *metrics.Metrics.
type Recorder interface {
	MatchesStored(n int)
	TimelinesStored(n int)
	PlayerProcessed()
}

// Elo restricts which leagues players are discovered from.
type Elo string

const (
	// EloAll discovers apex players first, then pages of the configured tier.
	EloAll Elo = ""
	// EloDiamond discovers paginated league entries only.
	EloDiamond Elo = "diamond"
	// EloMaster discovers challenger, grandmaster and master only.
	EloMaster Elo = "master"
)

// ParseElo accepts "", "all", "diamond" and "master".
func ParseElo(s string) (Elo, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return EloAll, nil
	case "diamond":
		return EloDiamond, nil
	case "master":
		return EloMaster, nil
	default:
		return EloAll, fmt.Errorf("unknown elo %q (expected diamond or master)", s)
	}
}

func (e Elo) String() string {
	if e == EloAll {
		return "all"
	}
	return string(e)
}

func (e Elo) apex() bool  { return e != EloDiamond }
func (e Elo) paged() bool { return e != EloMaster }

// Config holds collection parameters.
type Config struct {
	// PlayersPerBatch is how many new players one batch processes.
	PlayersPerBatch int

	// MatchesPerPlayer is how many recent match ids are requested per player.
	MatchesPerPlayer int

	Elo Elo

	// Freshness is how long a processed player is skipped. Zero or less
	// means processed players are skipped until a reset.
	Freshness time.Duration

	// Workers bounds concurrent match fetches; zero means one per key.
	Workers int

	// QueueID filters committed matches; zero accepts any queue.
	QueueID int

	// Queue, Tier and Division select the paginated league entries.
	Queue    string
	Tier     string
	Division string

	// MaxPages bounds league pagination per batch.
	MaxPages int

	// CollectTimelines fetches the timeline of every newly committed match.
	CollectTimelines bool

	// BatchPause is the delay between continuous batches.
	BatchPause time.Duration

	// StatsEvery logs per-key statistics every n continuous batches.
	StatsEvery int

	// MinFreeBytes is the free disk space a batch requires next to the
	// database; zero disables the check.
	MinFreeBytes int64
}

// DefaultConfig returns the default collection parameters.
func DefaultConfig() Config {
	return Config{
		PlayersPerBatch:  constants.DefaultPlayersPerBatch,
		MatchesPerPlayer: constants.DefaultMatchesPerPlayer,
		Freshness:        constants.DefaultRefreshWindow,
		QueueID:          constants.RankedSoloQueueID,
		Queue:            constants.DefaultQueue,
		Tier:             constants.DefaultTier,
		Division:         constants.DefaultDivision,
		MaxPages:         constants.DefaultMaxPages,
		BatchPause:       constants.ContinuousBatchPause,
		StatsEvery:       constants.ContinuousStatsEvery,
		MinFreeBytes:     diskspace.DefaultMinFree,
	}
}

// BatchResult summarizes one batch.
type BatchResult struct {
	ID           string
	Candidates   int
	Processed    int
	Failed       int
	NewMatches   int
	NewTimelines int
	// LastPlayerIndex is the candidate index of the last processed player,
	// -1 when none was processed. Persisted as last_player_index.
	LastPlayerIndex int
	TotalMatches    int64
	AutoReset    bool
	Duration     time.Duration
}

// Collector is the ingestion driver. One Collector runs one batch at a time.
type Collector struct {
	api      RiotAPI
	disp     *dispatch.Dispatcher
	store    *store.Store
	pool     *credentials.Pool
	cfg      Config
	logger   *logging.Logger
	clock    clock.Clock
	recorder Recorder
	progress progress.Reporter
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// WithClock sets the time source for batch pauses and durations.
func WithClock(clk clock.Clock) Option {
	return func(c *Collector) { c.clock = clk }
}

// WithRecorder registers an ingestion event recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Collector) { c.recorder = r }
}

// WithProgress sets the per-player progress reporter.
func WithProgress(p progress.Reporter) Option {
	return func(c *Collector) { c.progress = p }
}

// New creates a collector. Zero config values fall back to defaults.
func New(riot RiotAPI, disp *dispatch.Dispatcher, st *store.Store, pool *credentials.Pool, cfg Config, opts ...Option) *Collector {
	def := DefaultConfig()
	if cfg.PlayersPerBatch <= 0 {
		cfg.PlayersPerBatch = def.PlayersPerBatch
	}
	if cfg.MatchesPerPlayer <= 0 {
		cfg.MatchesPerPlayer = def.MatchesPerPlayer
	}
	if cfg.Workers <= 0 {
		cfg.Workers = pool.Len()
	}
	if cfg.Queue == "" {
		cfg.Queue = def.Queue
	}
	if cfg.Tier == "" {
		cfg.Tier = def.Tier
	}
	if cfg.Division == "" {
		cfg.Division = def.Division
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}

	c := &Collector{
		api:      riot,
		disp:     disp,
		store:    st,
		pool:     pool,
		cfg:      cfg,
		logger:   logging.Nop(),
		clock:    clock.Real{},
		progress: progress.NewNoOpProgress(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resume seeds the dispatcher counters with the values persisted by earlier runs.
func (c *Collector) Resume(ctx context.Context) error {
	var counters dispatch.Counters
	fields := []struct {
		key string
		dst *int64
	}{
		{store.StatTotalRequests, &counters.TotalRequests},
		{store.StatSuccessfulRequests, &counters.SuccessfulRequests},
		{store.StatRateLimitErrors, &counters.RateLimitErrors},
		{store.StatOtherErrors, &counters.OtherErrors},
	}
	for _, f := range fields {
		v, err := c.store.ReadStat(ctx, f.key, 0)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	c.disp.Seed(counters)

	lastIndex, err := c.store.ReadStat(ctx, store.StatLastPlayerIndex, -1)
	if err != nil {
		return err
	}

	c.logger.Debug().
		Int64("total_requests", counters.TotalRequests).
		Int64("successful_requests", counters.SuccessfulRequests).
		Int64("last_player_index", lastIndex).
		Msg("Resumed request counters")
	return nil
}

func (c *Collector) counterStats() map[string]int64 {
	counters := c.disp.Counters()
	return map[string]int64{
		store.StatTotalRequests:      counters.TotalRequests,
		store.StatSuccessfulRequests: counters.SuccessfulRequests,
		store.StatRateLimitErrors:    counters.RateLimitErrors,
		store.StatOtherErrors:        counters.OtherErrors,
	}
}

// saveCounters persists the dispatcher counters. It runs detached from ctx
// cancellation so the final save of an interrupted batch still lands.
func (c *Collector) saveCounters(ctx context.Context) error {
	return c.store.WriteStats(context.WithoutCancel(ctx), c.counterStats())
}

// saveProgress is saveCounters plus the last processed player index.
func (c *Collector) saveProgress(ctx context.Context, index int) error {
	stats := c.counterStats()
	stats[store.StatLastPlayerIndex] = int64(index)
	return c.store.WriteStats(context.WithoutCancel(ctx), stats)
}

// RunBatch discovers up to PlayersPerBatch unprocessed players and collects
// their recent matches. When discovery finds nobody, progress for the
// configured elo is reset and discovery is retried once without the
// freshness filter. Per-player failures are logged and skipped; a storage
// failure aborts the batch and is returned. Cancelling ctx stops the batch
// between players.
func (c *Collector) RunBatch(ctx context.Context) (BatchResult, error) {
	res := BatchResult{ID: uuid.NewString(), LastPlayerIndex: -1}
	start := c.clock.Now()
	log := c.logger.With().Str("batch", res.ID[:8]).Logger()

	if path := c.store.Path(); path != "" {
		if err := diskspace.Check(path, c.cfg.MinFreeBytes); err != nil {
			log.Error().Err(err).Msg("Not enough disk space to start a batch")
			return res, err
		}
	}

	cands, err := c.discover(ctx, true)
	if err != nil {
		return res, err
	}

	if len(cands) == 0 && ctx.Err() == nil {
		log.Warn().Msg("No new players found, all discovered players have been processed")
		log.Info().Str("elo", c.cfg.Elo.String()).Msg("Auto-resetting to re-check for new matches")
		if _, err := c.Reset(ctx, c.cfg.Elo); err != nil {
			return res, err
		}
		res.AutoReset = true

		if cands, err = c.discover(ctx, false); err != nil {
			return res, err
		}
		if len(cands) == 0 {
			log.Warn().Msg("Still no players found after reset")
		}
	}

	res.Candidates = len(cands)
	if ctx.Err() != nil {
		return c.finishBatch(ctx, res, start)
	}
	if len(cands) > 0 {
		log.Info().Int("players", len(cands)).Msg("Found new players to process")
	}

	existing, err := c.store.CollectedMatchIDs(ctx)
	if err != nil {
		return res, err
	}

	for i, cand := range cands {
		if ctx.Err() != nil {
			log.Info().Int("processed", res.Processed).Msg("Batch interrupted")
			break
		}

		label := fmt.Sprintf("[%d/%d] [%s] %s", i+1, len(cands), cand.Tier, shortID(cand.id()))
		log.Info().Msg("Processing " + label)

		pr, err := c.processPlayer(ctx, cand, existing, label)
		res.NewMatches += pr.newMatches
		res.NewTimelines += pr.newTimelines
		if err != nil {
			if errors.Is(err, store.ErrStorage) {
				if saveErr := c.saveCounters(ctx); saveErr != nil {
					log.Error().Err(saveErr).Msg("Failed to save request counters")
				}
				return res, err
			}
			if ctx.Err() != nil {
				break
			}
			res.Failed++
			log.Error().Err(err).Msg("Failed to process " + shortID(cand.id()))
			continue
		}
		if pr.interrupted {
			log.Info().Int("processed", res.Processed).Msg("Batch interrupted")
			break
		}
		if pr.skipped {
			res.Failed++
			continue
		}
		res.Processed++
		res.LastPlayerIndex = i
		log.Info().Int("new_matches", pr.newMatches).Msg("  + Added matches from " + shortID(pr.puuid))

		if (i+1)%constants.StatsSaveEvery == 0 {
			if err := c.saveProgress(ctx, i); err != nil {
				return res, err
			}
		}
	}

	return c.finishBatch(ctx, res, start)
}

// finishBatch saves the counters and fills in the totals of res.
func (c *Collector) finishBatch(ctx context.Context, res BatchResult, start time.Time) (BatchResult, error) {
	save := c.saveCounters
	if res.LastPlayerIndex >= 0 {
		save = func(ctx context.Context) error { return c.saveProgress(ctx, res.LastPlayerIndex) }
	}
	if err := save(ctx); err != nil {
		return res, err
	}
	total, err := c.store.MatchCount(context.WithoutCancel(ctx))
	if err != nil {
		return res, err
	}
	res.TotalMatches = total
	res.Duration = c.clock.Now().Sub(start)

	c.logger.Info().
		Str("batch", res.ID[:8]).
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Int("new_matches", res.NewMatches).
		Int64("total_matches", res.TotalMatches).
		Dur("duration", res.Duration).
		Msg("Batch complete")
	return res, nil
}

type playerResult struct {
	puuid        string
	newMatches   int
	newTimelines int
	skipped      bool
	// interrupted is set when ctx was cancelled before every match was
	// fetched; the player is left unmarked so a restart picks it up again.
	interrupted bool
}

// processPlayer collects one player's recent matches and marks the player
// processed. Match fetches already started when ctx is cancelled drain.
func (c *Collector) processPlayer(ctx context.Context, cand candidate, existing map[string]struct{}, label string) (playerResult, error) {
	var pr playerResult

	puuid := cand.PUUID
	if puuid == "" && cand.SummonerID != "" {
		s, ok, err := dispatch.Do(ctx, c.disp, ratelimit.CategoryAccount, func(ctx context.Context, key string) (*models.Summoner, error) {
			return c.api.SummonerByID(ctx, key, cand.SummonerID)
		})
		if err != nil {
			return pr, fmt.Errorf("resolve summoner %s: %w", cand.SummonerID, err)
		}
		if !ok || s.PUUID == "" {
			c.logger.Warn().Str("summoner_id", cand.SummonerID).Msg("No PUUID for summoner, skipping")
			pr.skipped = true
			return pr, nil
		}
		puuid = s.PUUID
	}
	if puuid == "" {
		c.logger.Warn().Msg("No PUUID for entry, skipping")
		pr.skipped = true
		return pr, nil
	}
	pr.puuid = puuid

	ids, ok, err := dispatch.Do(ctx, c.disp, ratelimit.CategoryMatch, func(ctx context.Context, key string) ([]string, error) {
		return c.api.MatchIDs(ctx, key, puuid, c.cfg.QueueID, c.cfg.MatchesPerPlayer)
	})
	if err != nil {
		return pr, fmt.Errorf("match ids: %w", err)
	}
	if !ok || len(ids) == 0 {
		c.logger.Debug().Str("puuid", shortID(puuid)).Msg("No match ids")
		pr.skipped = true
		return pr, nil
	}

	toFetch := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, seen := existing[id]; !seen {
			toFetch = append(toFetch, id)
		}
	}

	committed, unstarted, err := c.fetchMatches(ctx, toFetch, cand.Tier, label)
	for _, id := range committed {
		existing[id] = struct{}{}
	}
	pr.newMatches = len(committed)
	if c.recorder != nil {
		c.recorder.MatchesStored(len(committed))
	}
	if err != nil {
		return pr, err
	}
	if unstarted > 0 {
		c.logger.Info().
			Str("puuid", shortID(puuid)).
			Int("unfetched", unstarted).
			Msg("Interrupted before all matches were fetched, player left for the next run")
		pr.interrupted = true
		return pr, nil
	}

	if c.cfg.CollectTimelines && len(committed) > 0 {
		stored, _, err := c.fetchTimelines(ctx, committed)
		pr.newTimelines = stored
		if err != nil {
			return pr, err
		}
		if stored > 0 {
			c.logger.Info().Int("timelines", stored).Msg("    + Collected timelines")
		}
	}

	// processed markers and counters must land even if ctx was cancelled
	// while this player's fetches drained
	dctx := context.WithoutCancel(ctx)
	if err := c.store.MarkProcessed(dctx, puuid); err != nil {
		return pr, err
	}
	if cand.SummonerID != "" {
		if err := c.store.MarkProcessed(dctx, store.SummonerMarker(cand.SummonerID)); err != nil {
			return pr, err
		}
	}
	if c.recorder != nil {
		c.recorder.PlayerProcessed()
	}
	return pr, nil
}

// fetchMatches fetches ids concurrently and commits every match of the
// configured queue. It returns the ids this call committed and how many ids
// were never started because ctx was cancelled. Fetch failures are logged
// and skipped; a storage failure stops the remaining fetches and is returned.
func (c *Collector) fetchMatches(ctx context.Context, ids []string, tier, label string) ([]string, int, error) {
	if len(ids) == 0 {
		return nil, 0, nil
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(c.cfg.Workers)

	var mu sync.Mutex
	var committed []string
	var done, unstarted atomic.Int64

	c.progress.Start(int64(len(ids)), label)
	defer c.progress.Finish()

	for _, id := range ids {
		g.Go(func() error {
			defer func() { c.progress.Update(done.Add(1)) }()
			if gctx.Err() != nil {
				return nil
			}
			if ctx.Err() != nil {
				unstarted.Add(1)
				return nil
			}

			payload, ok, err := dispatch.Do(gctx, c.disp, ratelimit.CategoryMatch, func(ctx context.Context, key string) ([]byte, error) {
				return c.api.Match(ctx, key, id)
			})
			if err != nil {
				if gctx.Err() == nil {
					c.logger.Warn().
						Str("match_id", id).
						Bool("rate_limited", api.IsRateLimited(err)).
						Err(err).
						Msg("Failed to fetch match, skipping")
				}
				return nil
			}
			if !ok {
				c.logger.Debug().Str("match_id", id).Msg("Match not found")
				return nil
			}

			rec, err := models.NewMatchRecord(payload, tier)
			if err != nil {
				c.logger.Warn().Str("match_id", id).Err(err).Msg("Undecodable match payload")
				return nil
			}
			if rec.ID == "" {
				rec.ID = id
			}
			if c.cfg.QueueID > 0 && rec.QueueID != c.cfg.QueueID {
				c.logger.Debug().Str("match_id", id).Int("queue_id", rec.QueueID).Msg("Skipping match from another queue")
				return nil
			}

			inserted, err := c.store.Commit(gctx, rec)
			if err != nil {
				return err
			}
			if inserted {
				mu.Lock()
				committed = append(committed, rec.ID)
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	return committed, int(unstarted.Load()), err
}

// fetchTimelines fetches and stores the timelines of ids concurrently,
// returning how many were stored and how many failed.
func (c *Collector) fetchTimelines(ctx context.Context, ids []string) (stored, failed int, err error) {
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(c.cfg.Workers)

	var storedN, failedN atomic.Int64
	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil || gctx.Err() != nil {
				return nil
			}

			payload, ok, err := dispatch.Do(gctx, c.disp, ratelimit.CategoryMatch, func(ctx context.Context, key string) ([]byte, error) {
				return c.api.Timeline(ctx, key, id)
			})
			if err != nil || !ok {
				failedN.Add(1)
				if err != nil && gctx.Err() == nil {
					c.logger.Debug().Str("match_id", id).Err(err).Msg("Failed to fetch timeline")
				}
				return nil
			}

			inserted, err := c.store.CommitTimeline(gctx, id, payload)
			if err != nil {
				return err
			}
			if inserted {
				storedN.Add(1)
			}
			return nil
		})
	}

	err = g.Wait()
	stored, failed = int(storedN.Load()), int(failedN.Load())
	if c.recorder != nil {
		c.recorder.TimelinesStored(stored)
	}
	return stored, failed, err
}

// RunContinuous runs batches until ctx is cancelled or a storage failure
// occurs, pausing BatchPause between batches. It returns nil on cancellation.
func (c *Collector) RunContinuous(ctx context.Context) error {
	c.logger.Info().
		Str("elo", c.cfg.Elo.String()).
		Str("strategy", c.disp.Strategy().String()).
		Int("players_per_batch", c.cfg.PlayersPerBatch).
		Int("matches_per_player", c.cfg.MatchesPerPlayer).
		Msg("Continuous collection starting")

	for batch := 1; ; batch++ {
		select {
		case <-ctx.Done():
			c.logger.Info().Int("batches", batch-1).Msg("Continuous collection stopped")
			return nil
		default:
		}

		c.logger.Info().Int("batch", batch).Msg("Starting batch")
		res, err := c.RunBatch(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				c.logger.Info().Int("batches", batch).Msg("Continuous collection stopped")
				return nil
			}
			c.logger.Error().Err(err).Int("batch", batch).Msg("Batch failed, stopping")
			return err
		}

		counters := c.disp.Counters()
		c.logger.Info().
			Int("batch", batch).
			Int("new_matches", res.NewMatches).
			Int64("total_matches", res.TotalMatches).
			Int64("requests", counters.TotalRequests).
			Str("success_rate", fmt.Sprintf("%.1f%%", counters.SuccessRate())).
			Int64("rate_limit_errors", counters.RateLimitErrors).
			Int64("other_errors", counters.OtherErrors).
			Msg("Batch finished")

		if _, fixed := c.disp.Strategy().IsFixed(); !fixed && c.cfg.StatsEvery > 0 && batch%c.cfg.StatsEvery == 0 {
			c.LogKeyStats()
		}

		if c.cfg.BatchPause > 0 {
			c.logger.Info().Dur("pause", c.cfg.BatchPause).Msg("Starting next batch after pause")
			if err := c.clock.Sleep(ctx, c.cfg.BatchPause); err != nil {
				c.logger.Info().Int("batches", batch).Msg("Continuous collection stopped")
				return nil
			}
		}
	}
}

// LogKeyStats logs per-key request statistics and the current consumption
// of every quota window.
func (c *Collector) LogKeyStats() {
	now := c.clock.Now()
	for _, s := range c.pool.Stats(now) {
		ev := c.logger.Info().
			Int("key", s.Index).
			Str("fingerprint", s.Fingerprint).
			Int64("success", s.Successes).
			Int64("total", s.Total).
			Int("errors", s.ErrorCount)
		if s.Cooldown > 0 {
			ev = ev.Str("status", "cooldown "+s.Cooldown.Round(time.Second).String())
		} else {
			ev = ev.Str("status", "available")
		}
		ev.Msg("API key statistics")
	}

	tracker := c.disp.Tracker()
	for _, category := range ratelimit.AllCategories() {
		for _, u := range tracker.Usage(category, now) {
			if u.Used == 0 {
				continue
			}
			c.logger.Info().
				Str("category", string(category)).
				Dur("window", u.Window.Period).
				Int("used", u.Used).
				Int("limit", u.Limit).
				Msg("Quota window usage")
		}
	}
}

// Reset clears collection progress for elo. See ResetProgress.
func (c *Collector) Reset(ctx context.Context, elo Elo) (int64, error) {
	return ResetProgress(ctx, c.store, elo, c.logger)
}

// ResetProgress clears collection progress for elo; committed matches and
// timelines are preserved. Diamond rewinds the page cursor. Master clears
// summoner-id markers, falling back to clearing every marker when none
// exist. All rewinds the cursor and clears every marker. Returns the
// markers cleared.
func ResetProgress(ctx context.Context, st *store.Store, elo Elo, logger *logging.Logger) (int64, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	cursors := map[string]int64{store.StatLastPage: 1, store.StatLastPlayerIndex: 0}

	var cleared int64
	var err error
	switch elo {
	case EloDiamond:
		_, err = st.Reset(ctx, store.ResetScope{Cursors: cursors})
		if err == nil {
			logger.Info().Msg("Reset Diamond page tracking")
		}
	case EloMaster:
		cleared, err = st.Reset(ctx, store.ResetScope{ClearMarkers: true, MarkerPrefix: store.SummonerMarkerPrefix})
		if err == nil && cleared == 0 {
			logger.Info().Msg("No summoner-id markers found, clearing every processed marker")
			cleared, err = st.Reset(ctx, store.ResetScope{ClearMarkers: true})
		}
		if err == nil {
			logger.Info().Int64("cleared", cleared).Msg("Reset Master+ player tracking")
		}
	default:
		cleared, err = st.Reset(ctx, store.ResetScope{ClearMarkers: true, Cursors: cursors})
		if err == nil {
			logger.Info().Int64("cleared", cleared).Msg("Reset all progress")
		}
	}
	if err != nil {
		return 0, err
	}

	logger.Info().Msg("Progress reset. Existing matches are preserved.")
	return cleared, nil
}

// shortID truncates a PUUID or summoner id for logs.
func shortID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16] + "..."
}
