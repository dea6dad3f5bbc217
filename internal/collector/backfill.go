package collector

import (
	"context"
	"fmt"
	"time"
)

// BackfillResult summarizes a timeline backfill.
type BackfillResult struct {
	Total     int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// backfillSaveEvery is how many processed matches pass between counter saves.
const backfillSaveEvery = 500

// BackfillTimelines fetches timelines for committed matches that have none,
// at most limit of them (limit <= 0 means all). Matches are processed in
// batches of two per key; progress, rate and ETA are logged after each
// batch. Cancelling ctx stops between batches.
func (c *Collector) BackfillTimelines(ctx context.Context, limit int) (BackfillResult, error) {
	var res BackfillResult
	start := c.clock.Now()

	ids, err := c.store.MatchesWithoutTimeline(ctx, limit)
	if err != nil {
		return res, err
	}
	res.Total = len(ids)

	batchSize := 2 * c.pool.Len()
	c.logger.Info().
		Int("matches", res.Total).
		Int("keys", c.pool.Len()).
		Int("batch_size", batchSize).
		Msg("Starting timeline backfill")
	if res.Total == 0 {
		c.logger.Info().Msg("All matches already have timeline data")
		return res, nil
	}

	c.progress.Start(int64(res.Total), "timelines")
	defer c.progress.Finish()

	processed := 0
	lastSave := 0
	for begin := 0; begin < len(ids); begin += batchSize {
		if ctx.Err() != nil {
			c.logger.Info().Int("processed", processed).Msg("Backfill interrupted")
			break
		}

		end := min(begin+batchSize, len(ids))
		stored, failed, err := c.fetchTimelines(ctx, ids[begin:end])
		res.Succeeded += stored
		res.Failed += failed
		processed += end - begin
		c.progress.Update(int64(processed))
		if err != nil {
			if saveErr := c.saveCounters(ctx); saveErr != nil {
				c.logger.Error().Err(saveErr).Msg("Failed to save request counters")
			}
			return res, err
		}

		elapsed := c.clock.Now().Sub(start)
		var rate float64
		var eta time.Duration
		if elapsed > 0 {
			rate = float64(processed) / elapsed.Seconds()
		}
		if rate > 0 {
			eta = time.Duration(float64(res.Total-processed) / rate * float64(time.Second))
		}
		c.logger.Info().
			Int("processed", processed).
			Int("total", res.Total).
			Int("success", res.Succeeded).
			Int("failed", res.Failed).
			Str("rate", formatRate(rate)).
			Dur("eta", eta.Round(time.Second)).
			Msg("Backfill progress")

		if processed-lastSave >= backfillSaveEvery {
			lastSave = processed
			if err := c.saveCounters(ctx); err != nil {
				return res, err
			}
		}
	}

	if err := c.saveCounters(ctx); err != nil {
		return res, err
	}
	res.Duration = c.clock.Now().Sub(start)

	c.logger.Info().
		Int("success", res.Succeeded).
		Int("total", res.Total).
		Int("failed", res.Failed).
		Dur("duration", res.Duration.Round(time.Second)).
		Msg("Timeline backfill complete")
	return res, nil
}

func formatRate(perSecond float64) string {
	return fmt.Sprintf("%.1f matches/sec", perSecond)
}
