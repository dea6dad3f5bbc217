package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/draftsight/collector/internal/collector"
	"github.com/draftsight/collector/internal/store"
	"github.com/draftsight/collector/internal/version"
)

// newCollectCmd creates the 'collect' command.
func newCollectCmd() *cobra.Command {
	var (
		players          int
		matches          int
		elo              string
		keyIndex         int
		continuous       bool
		collectTimelines bool
		refreshHours     int
		workers          int
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect ranked matches",
		Long: `Discover ranked players and store their recent ranked solo matches.

One batch is run by default; --continuous keeps running batches until
interrupted. Players processed within the refresh window are skipped, and
when every discovered player is fresh the progress is reset automatically.

Running several processes against one database:
  draftsight collect --continuous --elo diamond --api-key-index 0
  draftsight collect --continuous --elo master  --api-key-index 1

Examples:
  draftsight collect --players 100 --matches 20
  draftsight collect --continuous --collect-timelines`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			ctx := GetContext()

			cfg, source, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("players") {
				cfg.Players = players
			}
			if cmd.Flags().Changed("matches") {
				cfg.MatchesPerPlayer = matches
			}
			if cmd.Flags().Changed("refresh-hours") {
				cfg.RefreshHours = refreshHours
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if collectTimelines {
				cfg.CollectTimelines = true
			}

			parsedElo, err := collector.ParseElo(elo)
			if err != nil {
				return err
			}

			if source != "" {
				logger.Info().Str("source", source).Int("keys", len(cfg.APIKeys)).Msg("Loaded API keys")
			}

			p, err := newPipeline(ctx, cfg, pipelineOptions{KeyIndex: keyIndex, Elo: parsedElo}, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			if continuous {
				return p.collector.RunContinuous(ctx)
			}

			res, err := p.collector.RunBatch(ctx)
			if err != nil {
				return err
			}
			counters := p.disp.Counters()
			fmt.Println()
			fmt.Println("Batch Summary")
			fmt.Println("=============")
			fmt.Printf("  Players processed: %d (%d failed)\n", res.Processed, res.Failed)
			fmt.Printf("  New matches:       %d\n", res.NewMatches)
			if cfg.CollectTimelines {
				fmt.Printf("  New timelines:     %d\n", res.NewTimelines)
			}
			fmt.Printf("  Total matches:     %d\n", res.TotalMatches)
			fmt.Printf("  Requests:          %d (%.1f%% success, %d rate limited)\n",
				counters.TotalRequests, counters.SuccessRate(), counters.RateLimitErrors)
			fmt.Printf("  Duration:          %s\n", res.Duration.Round(time.Second))
			if _, fixed := p.disp.Strategy().IsFixed(); !fixed {
				p.collector.LogKeyStats()
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&players, "players", "p", 0, "Players per batch (default from config, 50)")
	cmd.Flags().IntVarP(&matches, "matches", "m", 0, "Recent matches requested per player (default from config, 20)")
	cmd.Flags().StringVar(&elo, "elo", "", "Only discover from one bracket: diamond or master")
	cmd.Flags().IntVar(&keyIndex, "api-key-index", -1, "Use only the key at this index (for running parallel processes)")
	cmd.Flags().BoolVar(&continuous, "continuous", false, "Run batches until interrupted")
	cmd.Flags().BoolVar(&collectTimelines, "collect-timelines", false, "Also store the timeline of every new match")
	cmd.Flags().IntVar(&refreshHours, "refresh-hours", 0, "Skip players processed within this many hours (0 = until reset)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent match fetches (default one per key)")

	return cmd
}

// newResetCmd creates the 'reset' command.
func newResetCmd() *cobra.Command {
	var elo string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset collection progress",
		Long: `Reset player and page progress so players are collected again.

Stored matches and timelines are never deleted.

  --elo diamond  rewind league pagination to page 1
  --elo master   forget processed apex players
  (no flag)      rewind pagination and forget every processed player`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			parsedElo, err := collector.ParseElo(elo)
			if err != nil {
				return err
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.DBPath, store.WithLogger(logger.Named("store")))
			if err != nil {
				return err
			}
			defer st.Close()

			cleared, err := collector.ResetProgress(GetContext(), st, parsedElo, logger)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Reset %s progress (%d player markers cleared)\n", parsedElo, cleared)
			return nil
		},
	}

	cmd.Flags().StringVar(&elo, "elo", "", "Bracket to reset: diamond or master (default all)")

	return cmd
}

// newStatsCmd creates the 'stats' command.
func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show stored match counts, processed players and the persisted request counters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				return fmt.Errorf("database not found: %s", cfg.DBPath)
			}

			st, err := store.Open(cfg.DBPath, store.WithLogger(GetLogger().Named("store")))
			if err != nil {
				return err
			}
			defer st.Close()

			sum, err := st.Summary(GetContext())
			if err != nil {
				return err
			}
			printSummary(cfg.DBPath, sum)
			return nil
		},
	}

	return cmd
}

// printSummary writes the stats command output.
func printSummary(path string, sum store.Summary) {
	fmt.Println("Database Statistics")
	fmt.Println("===================")
	fmt.Printf("  Database:          %s\n", path)
	fmt.Printf("  Matches:           %d\n", sum.Matches)
	fmt.Printf("  Timelines:         %d\n", sum.Timelines)
	fmt.Printf("  Processed players: %d\n", sum.ProcessedPlayers)
	if !sum.LastCollected.IsZero() {
		fmt.Printf("  Last collected:    %s\n", sum.LastCollected.Local().Format(time.DateTime))
	}

	if len(sum.Stats) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Counters:")
	keys := make([]string, 0, len(sum.Stats))
	for k := range sum.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k+":", sum.Stats[k])
	}
	if total := sum.Stats[store.StatTotalRequests]; total > 0 {
		fmt.Printf("  %-20s %.1f%%\n", "success rate:", float64(sum.Stats[store.StatSuccessfulRequests])/float64(total)*100)
	}
}

// newBackfillCmd creates the 'backfill-timelines' command.
func newBackfillCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "backfill-timelines",
		Short: "Fetch timelines for stored matches that have none",
		Long: `Fetch the timeline of every stored match that does not have one yet.

Matches are processed oldest first in batches of two per API key. Progress,
rate and ETA are logged after each batch. Interrupting keeps every timeline
stored so far; run the command again to continue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			ctx := GetContext()

			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			p, err := newPipeline(ctx, cfg, pipelineOptions{KeyIndex: -1}, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.collector.BackfillTimelines(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Stored %d of %d timelines (%d failed) in %s\n",
				res.Succeeded, res.Total, res.Failed, res.Duration.Round(time.Second))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum matches to backfill (0 = all)")

	return cmd
}

// newVersionCmd creates the 'version' command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "draftsight %s\n", version.String())
		},
	}
}
