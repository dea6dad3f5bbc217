// Package cli provides configuration management commands.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/draftsight/collector/internal/api"
	"github.com/draftsight/collector/internal/config"
	apihttp "github.com/draftsight/collector/internal/http"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage draftsight configuration",
		Long: `Configuration management commands for draftsight.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Check every API key against the Riot API
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns --config or the default path.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// prompt prints question with its default and returns the trimmed answer,
// or def when the answer is empty.
func prompt(reader *bufio.Reader, question, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", question, def)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	if input = strings.TrimSpace(input); input == "" {
		return def
	}
	return input
}

// promptInt is prompt for positive integers; invalid answers keep def.
func promptInt(reader *bufio.Reader, question string, def int) int {
	v, err := strconv.Atoi(prompt(reader, question, strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var (
		force    bool
		withKeys bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for draftsight.

The configuration is saved to ~/.config/draftsight/config unless --config is
given. API keys are not written to the file unless --with-keys is set; keep
them in RIOT_API_KEYS, a .env file or a --key-file instead.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			path, err := configPath()
			if err != nil {
				return err
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", path)
					fmt.Println("Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Println("Draftsight Configuration Setup")
			fmt.Println("==============================")
			fmt.Println()

			reader := bufio.NewReader(os.Stdin)
			cfg := config.Default()

			if withKeys {
				for len(cfg.APIKeys) == 0 {
					cfg.APIKeys = config.SplitKeys(prompt(reader, "Riot API keys (comma separated)", ""))
					if len(cfg.APIKeys) == 0 {
						fmt.Println("  Error: at least one key is required")
					}
				}
			}

			cfg.Platform = prompt(reader, "Platform routing (kr, euw1, na1, ...)", cfg.Platform)
			cfg.Region = prompt(reader, "Regional routing (asia, europe, americas)", cfg.Region)
			cfg.DBPath = prompt(reader, "Database path", cfg.DBPath)

			fmt.Println()
			fmt.Println("Collection Settings (press Enter for defaults)")
			fmt.Println("----------------------------------------------")
			cfg.Players = promptInt(reader, "Players per batch", cfg.Players)
			cfg.MatchesPerPlayer = promptInt(reader, "Matches per player", cfg.MatchesPerPlayer)
			cfg.RefreshHours = promptInt(reader, "Refresh window (hours)", cfg.RefreshHours)

			fmt.Println()
			answer := strings.ToLower(prompt(reader, "Configure proxy? [y/N]", ""))
			if answer == "y" || answer == "yes" {
				fmt.Println("Proxy modes: no-proxy, system, basic, ntlm")
				cfg.Proxy.Mode = prompt(reader, "Proxy mode", "system")
				if cfg.Proxy.Mode != "no-proxy" {
					cfg.Proxy.Host = prompt(reader, "Proxy host", "")
					cfg.Proxy.Port = promptInt(reader, "Proxy port", 8080)
				}
			}

			if err := config.Save(cfg, path, withKeys); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			logger.Info().Str("path", path).Msg("Configuration saved")

			fmt.Println()
			fmt.Printf("✓ Configuration saved to: %s\n", path)
			if !withKeys {
				fmt.Println()
				fmt.Println("API keys were not saved. Provide them with one of:")
				fmt.Println("  export RIOT_API_KEYS=RGAPI-...,RGAPI-...")
				fmt.Println("  draftsight --key-file keys.txt collect")
			}
			fmt.Println()
			fmt.Println("Test your keys with: draftsight config test")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&withKeys, "with-keys", false, "Prompt for API keys and store them in the config file")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/draftsight/config)
  2. .env file and environment variables (RIOT_API_KEYS, DRAFTSIGHT_DB_PATH, ...)
  3. Command-line flags (--api-key, --key-file, --db, ...)

API keys are masked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, source, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Println("Current Configuration")
			fmt.Println("=====================")
			fmt.Println()
			fmt.Print(cfg.Redacted())
			if source != "" {
				fmt.Printf("Key source:        %s\n", source)
			}
			fmt.Println()

			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Printf("Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Println("  (file does not exist - using defaults)")
			}
			return nil
		},
	}

	return cmd
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check every API key",
		Long: `Request one page of league entries with every configured key.

Use this to verify your keys and network connectivity. A rate-limited key
is reported as valid.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			fmt.Println("Testing API Keys")
			fmt.Println("================")
			fmt.Println()

			httpClient, err := apihttp.NewClient(cfg.Proxy, api.PlatformURL(cfg.Platform), logger)
			if err != nil {
				return fmt.Errorf("failed to create HTTP client: %w", err)
			}
			riot := api.NewClient(httpClient, cfg.Platform, cfg.Region, api.WithLogger(logger))

			failed := 0
			for i, key := range cfg.APIKeys {
				ctx, cancel := context.WithTimeout(GetContext(), 15*time.Second)
				_, err := riot.LeagueEntries(ctx, key, cfg.Queue, cfg.Tier, cfg.Division, 1)
				cancel()

				outcome, _ := api.Classify(err)
				switch outcome {
				case api.OutcomeSuccess, api.OutcomeRateLimited:
					fmt.Printf("  ✓ [%d] %s %s\n", i, config.MaskKey(key), outcome)
				default:
					failed++
					fmt.Printf("  ✗ [%d] %s %v\n", i, config.MaskKey(key), err)
					logger.Error().Err(err).Int("key", i).Msg("Key test failed")
				}
			}

			fmt.Println()
			if failed > 0 {
				return fmt.Errorf("%d of %d keys failed", failed, len(cfg.APIKeys))
			}
			fmt.Println("All keys are working!")
			return nil
		},
	}

	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if cfgFile == "" {
				fmt.Println("Default configuration path:")
			} else {
				fmt.Println("Configuration path (from --config flag):")
			}

			fmt.Printf("  %s\n", path)
			fmt.Println()

			if fileInfo, err := os.Stat(path); err == nil {
				fmt.Println("Status: ✓ File exists")
				fmt.Printf("Size:   %d bytes\n", fileInfo.Size())
				fmt.Printf("Modified: %s\n", fileInfo.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Println("Status: File does not exist")
				fmt.Println()
				fmt.Println("Create a configuration file with: draftsight config init")
			}

			return nil
		},
	}

	return cmd
}
