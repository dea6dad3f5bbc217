package collector

import (
	"context"
	"strings"

	"github.com/draftsight/collector/internal/api"
	"github.com/draftsight/collector/internal/dispatch"
	"github.com/draftsight/collector/internal/models"
	"github.com/draftsight/collector/internal/ratelimit"
	"github.com/draftsight/collector/internal/store"
)

// candidate is a discovered player. Entries from older league responses
// carry only a summoner id; the PUUID is resolved when the player is
// processed.
type candidate struct {
	PUUID      string
	SummonerID string
	Tier       string
}

func (c candidate) id() string {
	if c.PUUID != "" {
		return c.PUUID
	}
	return c.SummonerID
}

// discover returns up to PlayersPerBatch players: apex leagues first, then
// league pages starting at the persisted cursor. With fresh set, players
// processed within the freshness window are skipped and pagination resumes
// from the cursor; without it, pagination restarts at page 1. Remote
// failures end discovery of that source; storage failures are returned.
func (c *Collector) discover(ctx context.Context, fresh bool) ([]candidate, error) {
	want := c.cfg.PlayersPerBatch
	out := make([]candidate, 0, want)
	seen := make(map[string]struct{})

	add := func(e models.LeagueEntry, tier string) error {
		cand := candidate{PUUID: e.PUUID, SummonerID: e.SummonerID, Tier: strings.ToUpper(tier)}
		if cand.id() == "" {
			return nil
		}
		if _, dup := seen[cand.id()]; dup {
			return nil
		}
		if fresh {
			marker := cand.PUUID
			if marker == "" {
				marker = store.SummonerMarker(cand.SummonerID)
			}
			done, err := c.store.IsProcessed(ctx, marker, c.cfg.Freshness)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
		seen[cand.id()] = struct{}{}
		out = append(out, cand)
		return nil
	}

	if c.cfg.Elo.apex() {
		c.logger.Info().Msg("Fetching high elo players (Challenger/GM/Master)...")
		for _, tier := range api.ApexTiers {
			if len(out) >= want || ctx.Err() != nil {
				break
			}
			league, ok, err := dispatch.Do(ctx, c.disp, ratelimit.CategoryLeague, func(ctx context.Context, key string) (*models.LeagueList, error) {
				return c.api.ApexLeague(ctx, key, tier, c.cfg.Queue)
			})
			if err != nil {
				c.logger.Error().Err(err).Str("tier", string(tier)).Msg("Error fetching apex league")
				continue
			}
			if !ok || league == nil {
				continue
			}

			name := league.Tier
			if name == "" {
				name = string(tier)
			}
			before := len(out)
			for _, e := range league.Entries {
				if err := add(e, name); err != nil {
					return nil, err
				}
			}
			c.logger.Info().
				Str("tier", strings.ToUpper(name)).
				Int("entries", len(league.Entries)).
				Int("new", len(out)-before).
				Msg("Apex league fetched")
		}
	}

	if c.cfg.Elo.paged() && len(out) < want && ctx.Err() == nil {
		c.logger.Info().Str("tier", c.cfg.Tier).Str("division", c.cfg.Division).Msg("Fetching league entries...")

		page := int64(1)
		if fresh {
			p, err := c.store.ReadStat(ctx, store.StatLastPage, 1)
			if err != nil {
				return nil, err
			}
			page = max(p, 1)
		}

		for ; len(out) < want && page <= int64(c.cfg.MaxPages) && ctx.Err() == nil; page++ {
			entries, ok, err := dispatch.Do(ctx, c.disp, ratelimit.CategoryLeague, func(ctx context.Context, key string) ([]models.LeagueEntry, error) {
				return c.api.LeagueEntries(ctx, key, c.cfg.Queue, c.cfg.Tier, c.cfg.Division, int(page))
			})
			if err != nil {
				c.logger.Error().Err(err).Int64("page", page).Msg("Error fetching league entries")
				break
			}
			if !ok || len(entries) == 0 {
				c.logger.Warn().Int64("page", page).Msg("No more entries found")
				break
			}

			for _, e := range entries {
				if e.PUUID == "" {
					continue
				}
				if err := add(e, c.cfg.Tier); err != nil {
					return nil, err
				}
			}
			c.logger.Info().
				Int64("page", page).
				Int("players", len(entries)).
				Int("new_so_far", len(out)).
				Msg("League page fetched")

			if err := c.store.WriteStat(ctx, store.StatLastPage, page); err != nil {
				return nil, err
			}
		}
	}

	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}
