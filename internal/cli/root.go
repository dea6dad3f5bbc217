// Package cli provides the command-line interface for draftsight.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/draftsight/collector/internal/config"
	"github.com/draftsight/collector/internal/logging"
	"github.com/draftsight/collector/internal/pathutil"
	"github.com/draftsight/collector/internal/version"
)

var (
	// Global flags
	cfgFile     string
	envFile     string
	apiKeys     []string
	keyFile     string // one key per line
	dbPath      string
	verbose     bool
	logFile     string
	metricsAddr string

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "draftsight",
		Short: "Draftsight - ranked match collector for the Riot API",
		Long: `Draftsight ` + version.Version + ` - Built: ` + version.BuildTime + `
Collects ranked League of Legends matches into a local SQLite database.

Requests are spread over every configured API key. Each key's quota windows
are tracked locally, a key that hits a rate limit cools down with
exponential backoff and the next available key takes over.

API keys are read from (highest priority first):
  --api-key flags, --key-file, the config file, RIOT_API_KEYS / RIOT_API_KEY.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger; the log file flag wins over the config file
			path := logFile
			if path == "" {
				if cfg, err := config.Load(cfgFile, envFile); err == nil {
					path = cfg.LogFile
					verbose = verbose || cfg.Verbose
				}
			}
			logger = logging.NewCLILogger(path)
			if verbose {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default ~/.config/draftsight/config)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Environment file loaded before reading RIOT_API_KEYS (default .env)")
	rootCmd.PersistentFlags().StringSliceVar(&apiKeys, "api-key", nil, "Riot API key; repeat or comma-separate for several (overrides all other sources)")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key-file", "", "Path to a file with one API key per line")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this rotating file")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.Version = version.String()

	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Enable tab-completion for draftsight commands",
		Long: `Generate shell completion scripts to enable tab-completion for draftsight.

QUICK START:

  zsh:
    mkdir -p ~/.zsh/completions
    draftsight completion zsh > ~/.zsh/completions/_draftsight
    # Then add to ~/.zshrc: fpath=(~/.zsh/completions $fpath)

  Linux with bash:
    draftsight completion bash | sudo tee /etc/bash_completion.d/draftsight

For detailed instructions, use: draftsight completion [shell] --help`,
	}
	rootCmd.AddCommand(completionCmd)

	completionCmd.AddCommand(&cobra.Command{
		Use:   "bash",
		Short: "Generate bash completion script",
		Long: `Generate the autocompletion script for bash.

QUICK TEST (temporary, current session only):
  source <(draftsight completion bash)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenBashCompletion(cmd.OutOrStdout())
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "zsh",
		Short: "Generate zsh completion script",
		Long: `Generate the autocompletion script for zsh.

QUICK TEST (temporary, current session only):
  source <(draftsight completion zsh)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenZshCompletion(cmd.OutOrStdout())
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "fish",
		Short: "Generate fish completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "powershell",
		Short: "Generate PowerShell completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenPowerShellCompletion(cmd.OutOrStdout())
		},
	})

	// Disable default completion command (we're adding our own above)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so repeated Ctrl+C presses don't block the sender
	go func() {
		for sig := range sigChan {
			// channel close yields nil
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\n\nReceived signal %v, finishing in-flight requests...\n", sig)
				fmt.Fprintf(os.Stderr, "   Progress is saved; run collect again to resume.\n\n")
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	// Clean up signal handler
	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newCollectCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newBackfillCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		// Fallback to background context if called before Execute()
		return context.Background()
	}
	return rootContext
}

// loadConfig loads the config file and environment, then applies the
// global flag overrides and resolves API keys. Keys are not required here;
// commands that call the API validate them.
func loadConfig() (*config.Config, string, error) {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}

	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if verbose {
		cfg.Verbose = true
	}
	if cfg.DBPath, err = pathutil.ResolveAbsolutePath(cfg.DBPath); err != nil {
		return nil, "", fmt.Errorf("invalid database path: %w", err)
	}
	if cfg.LogFile, err = pathutil.ResolveAbsolutePath(cfg.LogFile); err != nil {
		return nil, "", fmt.Errorf("invalid log file path: %w", err)
	}

	keys, source, err := config.ResolveAPIKeys(apiKeys, keyFile, cfg)
	if err != nil {
		return nil, "", err
	}
	cfg.APIKeys = keys
	return cfg, source, nil
}
