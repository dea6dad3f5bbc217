// Package config provides configuration management for the match collector.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/draftsight/collector/internal/constants"
)

// Config holds every setting of a collector run.
//
// Config file location: ~/.config/draftsight/config
//
// INI format:
//
//	[riot]
//	api_keys = RGAPI-aaa, RGAPI-bbb
//	platform = kr
//	region = asia
//
//	[collector]
//	db_path = data/lol_matches.db
//	players = 50
//	matches = 20
//	refresh_hours = 24
//
//	[quota.match]
//	short_limit = 20
//	short_seconds = 1
//	long_limit = 100
//	long_seconds = 120
//
//	[proxy]
//	mode = no-proxy
type Config struct {
	// Riot connection settings
	APIKeys  []string
	Platform string
	Region   string
	Queue    string
	Tier     string
	Division string
	QueueID  int

	// Collection settings
	DBPath           string
	Players          int
	MatchesPerPlayer int
	RefreshHours     int
	Workers          int // 0 = one per key
	MaxPages         int
	CollectTimelines bool
	MinFreeMB        int

	// Dispatcher settings
	MaxAttempts        int
	BackoffBaseSeconds int
	BackoffCapSeconds  int

	// Quotas overrides per category name ("match", "league", "account", "default")
	Quotas map[string]QuotaConfig

	Proxy ProxyConfig

	LogFile     string
	Verbose     bool
	MetricsAddr string
}

// QuotaConfig overrides the per-key windows of one category.
type QuotaConfig struct {
	ShortLimit   int
	ShortSeconds int
	LongLimit    int
	LongSeconds  int
}

// ProxyConfig configures outbound proxying of Riot API traffic.
type ProxyConfig struct {
	Mode     string // no-proxy, system, basic, ntlm
	Host     string
	Port     int
	User     string
	Password string
	NoProxy  string
	Warmup   bool
}

// Validation errors
var (
	ErrMissingAPIKeys     = errors.New("at least one Riot API key is required")
	ErrInvalidPlayers     = errors.New("players must be at least 1")
	ErrInvalidMatches     = errors.New("matches must be between 1 and 100")
	ErrInvalidAttempts    = errors.New("max_attempts must be at least 1")
	ErrInvalidBackoff     = errors.New("backoff_base_seconds must be at least 2 and backoff_cap_seconds at least 1")
	ErrInvalidProxyMode   = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingDBPath      = errors.New("db_path is required")
	ErrInvalidQuotaWindow = errors.New("quota windows need a positive limit and period")
)

// Environment variables read after the optional .env file is loaded.
const (
	EnvAPIKeys     = "RIOT_API_KEYS" // comma separated
	EnvAPIKey      = "RIOT_API_KEY"
	EnvDBPath      = "DRAFTSIGHT_DB_PATH"
	EnvLogFile     = "DRAFTSIGHT_LOG_FILE"
	EnvMetricsAddr = "DRAFTSIGHT_METRICS_ADDR"
	EnvPlatform    = "DRAFTSIGHT_PLATFORM"
	EnvRegion      = "DRAFTSIGHT_REGION"
)

// Default returns a Config with default values and no keys.
func Default() *Config {
	return &Config{
		Platform:           constants.DefaultPlatform,
		Region:             constants.DefaultRegion,
		Queue:              constants.DefaultQueue,
		Tier:               constants.DefaultTier,
		Division:           constants.DefaultDivision,
		QueueID:            constants.RankedSoloQueueID,
		DBPath:             constants.DefaultDBPath,
		Players:            constants.DefaultPlayersPerBatch,
		MatchesPerPlayer:   constants.DefaultMatchesPerPlayer,
		RefreshHours:       int(constants.DefaultRefreshWindow / time.Hour),
		MaxPages:           constants.DefaultMaxPages,
		MinFreeMB:          constants.DefaultMinFreeMB,
		MaxAttempts:        constants.MaxAttempts,
		BackoffBaseSeconds: 2,
		BackoffCapSeconds:  60,
		Quotas:             make(map[string]QuotaConfig),
		Proxy:              ProxyConfig{Mode: "no-proxy"},
	}
}

// DefaultConfigPath returns ~/.config/draftsight/config.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "draftsight", "config"), nil
}

// Load builds the configuration from defaults, the INI file at path (the
// default path when empty; a missing file is not an error), the optional
// .env file and the environment, in increasing priority.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if p, err := DefaultConfigPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.loadINI(path); err != nil {
			return nil, err
		}
	}

	if envFile == "" {
		envFile = ".env"
	}
	// .env is optional
	_ = godotenv.Load(envFile)
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) loadINI(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}

	riot := f.Section("riot")
	if keys := riot.Key("api_keys").String(); keys != "" {
		c.APIKeys = SplitKeys(keys)
	}
	c.Platform = riot.Key("platform").MustString(c.Platform)
	c.Region = riot.Key("region").MustString(c.Region)
	c.Queue = riot.Key("queue").MustString(c.Queue)
	c.Tier = riot.Key("tier").MustString(c.Tier)
	c.Division = riot.Key("division").MustString(c.Division)
	c.QueueID = riot.Key("queue_id").MustInt(c.QueueID)

	col := f.Section("collector")
	c.DBPath = col.Key("db_path").MustString(c.DBPath)
	c.Players = col.Key("players").MustInt(c.Players)
	c.MatchesPerPlayer = col.Key("matches").MustInt(c.MatchesPerPlayer)
	c.RefreshHours = col.Key("refresh_hours").MustInt(c.RefreshHours)
	c.Workers = col.Key("workers").MustInt(c.Workers)
	c.MaxPages = col.Key("max_pages").MustInt(c.MaxPages)
	c.CollectTimelines = col.Key("collect_timelines").MustBool(c.CollectTimelines)
	c.MinFreeMB = col.Key("min_free_mb").MustInt(c.MinFreeMB)
	c.MaxAttempts = col.Key("max_attempts").MustInt(c.MaxAttempts)
	c.BackoffBaseSeconds = col.Key("backoff_base_seconds").MustInt(c.BackoffBaseSeconds)
	c.BackoffCapSeconds = col.Key("backoff_cap_seconds").MustInt(c.BackoffCapSeconds)

	for _, sec := range f.Sections() {
		name, ok := strings.CutPrefix(sec.Name(), "quota.")
		if !ok || name == "" {
			continue
		}
		c.Quotas[name] = QuotaConfig{
			ShortLimit:   sec.Key("short_limit").MustInt(0),
			ShortSeconds: sec.Key("short_seconds").MustInt(0),
			LongLimit:    sec.Key("long_limit").MustInt(0),
			LongSeconds:  sec.Key("long_seconds").MustInt(0),
		}
	}

	px := f.Section("proxy")
	c.Proxy.Mode = px.Key("mode").MustString(c.Proxy.Mode)
	c.Proxy.Host = px.Key("host").String()
	c.Proxy.Port = px.Key("port").MustInt(0)
	c.Proxy.User = px.Key("user").String()
	c.Proxy.Password = px.Key("password").String()
	c.Proxy.NoProxy = px.Key("no_proxy").String()
	c.Proxy.Warmup = px.Key("warmup").MustBool(false)

	lg := f.Section("logging")
	c.LogFile = lg.Key("file").MustString(c.LogFile)
	c.Verbose = lg.Key("verbose").MustBool(c.Verbose)

	c.MetricsAddr = f.Section("metrics").Key("addr").MustString(c.MetricsAddr)

	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv(EnvPlatform); v != "" {
		c.Platform = v
	}
	if v := os.Getenv(EnvRegion); v != "" {
		c.Region = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.APIKeys) == 0 {
		return ErrMissingAPIKeys
	}
	if c.DBPath == "" {
		return ErrMissingDBPath
	}
	if c.Players < 1 {
		return ErrInvalidPlayers
	}
	if c.MatchesPerPlayer < 1 || c.MatchesPerPlayer > 100 {
		return ErrInvalidMatches
	}
	if c.MaxAttempts < 1 {
		return ErrInvalidAttempts
	}
	if c.BackoffBaseSeconds < 2 || c.BackoffCapSeconds < 1 {
		return ErrInvalidBackoff
	}
	switch strings.ToLower(c.Proxy.Mode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProxyMode, c.Proxy.Mode)
	}
	for name, q := range c.Quotas {
		if (q.ShortLimit > 0) != (q.ShortSeconds > 0) || (q.LongLimit > 0) != (q.LongSeconds > 0) {
			return fmt.Errorf("%w: [quota.%s]", ErrInvalidQuotaWindow, name)
		}
	}
	return nil
}

// RefreshWindow returns the player freshness window.
func (c *Config) RefreshWindow() time.Duration {
	return time.Duration(c.RefreshHours) * time.Hour
}

// BackoffCap returns the rate-limit cooldown cap.
func (c *Config) BackoffCap() time.Duration {
	return time.Duration(c.BackoffCapSeconds) * time.Second
}

// SplitKeys splits a comma or whitespace separated key list.
func SplitKeys(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			keys = append(keys, f)
		}
	}
	return keys
}

// Redacted returns a printable view of the config with keys and passwords masked.
func (c *Config) Redacted() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "API keys:          %d configured\n", len(c.APIKeys))
	for i, k := range c.APIKeys {
		fmt.Fprintf(&sb, "  [%d] %s\n", i, MaskKey(k))
	}
	fmt.Fprintf(&sb, "Platform/Region:   %s / %s\n", c.Platform, c.Region)
	fmt.Fprintf(&sb, "Discovery:         %s %s %s (queue %d)\n", c.Queue, c.Tier, c.Division, c.QueueID)
	fmt.Fprintf(&sb, "Database:          %s\n", c.DBPath)
	fmt.Fprintf(&sb, "Players/Matches:   %d / %d\n", c.Players, c.MatchesPerPlayer)
	fmt.Fprintf(&sb, "Refresh window:    %dh\n", c.RefreshHours)
	workers := "one per key"
	if c.Workers > 0 {
		workers = strconv.Itoa(c.Workers)
	}
	fmt.Fprintf(&sb, "Workers:           %s\n", workers)
	fmt.Fprintf(&sb, "Max attempts:      %d\n", c.MaxAttempts)
	fmt.Fprintf(&sb, "Backoff:           %d^n s, cap %ds\n", c.BackoffBaseSeconds, c.BackoffCapSeconds)
	fmt.Fprintf(&sb, "Timelines:         %t\n", c.CollectTimelines)
	fmt.Fprintf(&sb, "Min free disk:     %d MB\n", c.MinFreeMB)
	proxy := c.Proxy.Mode
	if c.Proxy.Host != "" {
		proxy = fmt.Sprintf("%s %s:%d", proxy, c.Proxy.Host, c.Proxy.Port)
	}
	if c.Proxy.Password != "" {
		proxy += " (password set)"
	}
	fmt.Fprintf(&sb, "Proxy:             %s\n", proxy)
	if c.LogFile != "" {
		fmt.Fprintf(&sb, "Log file:          %s\n", c.LogFile)
	}
	if c.MetricsAddr != "" {
		fmt.Fprintf(&sb, "Metrics:           %s\n", c.MetricsAddr)
	}
	return sb.String()
}

// MaskKey keeps the first 8 and last 4 characters of a key.
func MaskKey(key string) string {
	if len(key) <= 12 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + strings.Repeat("*", len(key)-12) + key[len(key)-4:]
}

// Save writes the non-secret settings to an INI file, creating parent
// directories. API keys are written only when includeKeys is set.
func Save(cfg *Config, path string, includeKeys bool) error {
	f := ini.Empty()

	riot := f.Section("riot")
	if includeKeys && len(cfg.APIKeys) > 0 {
		riot.Key("api_keys").SetValue(strings.Join(cfg.APIKeys, ","))
	}
	riot.Key("platform").SetValue(cfg.Platform)
	riot.Key("region").SetValue(cfg.Region)
	riot.Key("queue").SetValue(cfg.Queue)
	riot.Key("tier").SetValue(cfg.Tier)
	riot.Key("division").SetValue(cfg.Division)
	riot.Key("queue_id").SetValue(strconv.Itoa(cfg.QueueID))

	col := f.Section("collector")
	col.Key("db_path").SetValue(cfg.DBPath)
	col.Key("players").SetValue(strconv.Itoa(cfg.Players))
	col.Key("matches").SetValue(strconv.Itoa(cfg.MatchesPerPlayer))
	col.Key("refresh_hours").SetValue(strconv.Itoa(cfg.RefreshHours))
	col.Key("workers").SetValue(strconv.Itoa(cfg.Workers))
	col.Key("max_pages").SetValue(strconv.Itoa(cfg.MaxPages))
	col.Key("collect_timelines").SetValue(strconv.FormatBool(cfg.CollectTimelines))
	col.Key("min_free_mb").SetValue(strconv.Itoa(cfg.MinFreeMB))
	col.Key("max_attempts").SetValue(strconv.Itoa(cfg.MaxAttempts))
	col.Key("backoff_base_seconds").SetValue(strconv.Itoa(cfg.BackoffBaseSeconds))
	col.Key("backoff_cap_seconds").SetValue(strconv.Itoa(cfg.BackoffCapSeconds))

	px := f.Section("proxy")
	px.Key("mode").SetValue(cfg.Proxy.Mode)
	if cfg.Proxy.Host != "" {
		px.Key("host").SetValue(cfg.Proxy.Host)
		px.Key("port").SetValue(strconv.Itoa(cfg.Proxy.Port))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return os.Chmod(path, 0600)
}
