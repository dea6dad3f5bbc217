package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIKeys, EnvAPIKey, EnvDBPath, EnvLogFile, EnvMetricsAddr, EnvPlatform, EnvRegion} {
		t.Setenv(k, "") // restores the original value after the test
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Platform != "kr" || cfg.Region != "asia" {
		t.Errorf("unexpected routing %s/%s", cfg.Platform, cfg.Region)
	}
	if cfg.QueueID != 420 {
		t.Errorf("QueueID = %d, want 420", cfg.QueueID)
	}
	if cfg.Players != 50 || cfg.MatchesPerPlayer != 20 || cfg.RefreshHours != 24 {
		t.Errorf("unexpected collection defaults %+v", cfg)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "nope"), filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != Default().DBPath {
		t.Errorf("DBPath = %q, want default", cfg.DBPath)
	}
}

func TestLoadINI(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	writeFile(t, path, `
[riot]
api_keys = RGAPI-one, RGAPI-two
platform = euw1
region = europe

[collector]
db_path = /tmp/x.db
players = 10
matches = 5
refresh_hours = 6
workers = 3
collect_timelines = true

[quota.match]
short_limit = 10
short_seconds = 1
long_limit = 50
long_seconds = 60

[proxy]
mode = basic
host = proxy.local
port = 3128
`)

	cfg, err := Load(path, filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.APIKeys) != 2 || cfg.APIKeys[1] != "RGAPI-two" {
		t.Errorf("APIKeys = %v", cfg.APIKeys)
	}
	if cfg.Platform != "euw1" || cfg.Region != "europe" {
		t.Errorf("routing = %s/%s", cfg.Platform, cfg.Region)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.Players != 10 || cfg.MatchesPerPlayer != 5 || cfg.RefreshHours != 6 || cfg.Workers != 3 {
		t.Errorf("collector section not applied: %+v", cfg)
	}
	if !cfg.CollectTimelines {
		t.Error("CollectTimelines should be true")
	}
	q, ok := cfg.Quotas["match"]
	if !ok || q.ShortLimit != 10 || q.LongSeconds != 60 {
		t.Errorf("quota.match = %+v (present=%v)", q, ok)
	}
	if cfg.Proxy.Mode != "basic" || cfg.Proxy.Host != "proxy.local" || cfg.Proxy.Port != 3128 {
		t.Errorf("proxy = %+v", cfg.Proxy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

// TestEnvOverridesINI verifies the .env file and environment win over the INI file.
func TestEnvOverridesINI(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	writeFile(t, path, "[collector]\ndb_path = /from/ini.db\n")

	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "DRAFTSIGHT_METRICS_ADDR=:9100\n")
	t.Setenv(EnvDBPath, "/from/env.db")

	cfg, err := Load(path, envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/from/env.db" {
		t.Errorf("DBPath = %q, want /from/env.db", cfg.DBPath)
	}
	if cfg.MetricsAddr != ":9100" {
		t.Errorf("MetricsAddr = %q, want :9100 from .env", cfg.MetricsAddr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"valid", func(c *Config) {}, nil},
		{"no keys", func(c *Config) { c.APIKeys = nil }, ErrMissingAPIKeys},
		{"no db", func(c *Config) { c.DBPath = "" }, ErrMissingDBPath},
		{"players", func(c *Config) { c.Players = 0 }, ErrInvalidPlayers},
		{"matches", func(c *Config) { c.MatchesPerPlayer = 101 }, ErrInvalidMatches},
		{"attempts", func(c *Config) { c.MaxAttempts = 0 }, ErrInvalidAttempts},
		{"backoff", func(c *Config) { c.BackoffBaseSeconds = 1 }, ErrInvalidBackoff},
		{"proxy", func(c *Config) { c.Proxy.Mode = "socks" }, ErrInvalidProxyMode},
		{"quota", func(c *Config) { c.Quotas["match"] = QuotaConfig{ShortLimit: 5} }, ErrInvalidQuotaWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.APIKeys = []string{"RGAPI-x"}
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolveAPIKeysPriority(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "keys.txt")
	writeFile(t, keyFile, "# production keys\nRGAPI-file-1\n\nRGAPI-file-2\n")

	cfg := Default()
	cfg.APIKeys = []string{"RGAPI-ini"}
	t.Setenv(EnvAPIKeys, "RGAPI-env-1,RGAPI-env-2")

	keys, src, err := ResolveAPIKeys([]string{"RGAPI-flag"}, keyFile, cfg)
	if err != nil || src != "flag" || len(keys) != 1 {
		t.Errorf("flag: keys=%v src=%q err=%v", keys, src, err)
	}

	keys, src, _ = ResolveAPIKeys(nil, keyFile, cfg)
	if src != "key-file" || len(keys) != 2 || keys[0] != "RGAPI-file-1" {
		t.Errorf("key-file: keys=%v src=%q", keys, src)
	}

	keys, src, _ = ResolveAPIKeys(nil, "", cfg)
	if src != "config" || keys[0] != "RGAPI-ini" {
		t.Errorf("config: keys=%v src=%q", keys, src)
	}

	keys, src, _ = ResolveAPIKeys(nil, "", Default())
	if src != "environment" || len(keys) != 2 {
		t.Errorf("environment: keys=%v src=%q", keys, src)
	}

	t.Setenv(EnvAPIKeys, "")
	keys, src, _ = ResolveAPIKeys(nil, "", Default())
	if keys != nil || src != "" {
		t.Errorf("expected no keys, got %v from %q", keys, src)
	}
}

func TestResolveAPIKeysMissingFile(t *testing.T) {
	_, _, err := ResolveAPIKeys(nil, filepath.Join(t.TempDir(), "missing"), Default())
	if err == nil {
		t.Error("expected error for missing key file")
	}
}

func TestSaveOmitsKeysByDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config")

	cfg := Default()
	cfg.APIKeys = []string{"RGAPI-secret"}
	cfg.Players = 7

	if err := Save(cfg, path, false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.APIKeys) != 0 {
		t.Errorf("keys should not be saved, got %v", loaded.APIKeys)
	}
	if loaded.Players != 7 {
		t.Errorf("Players = %d, want 7", loaded.Players)
	}
}

func TestMaskKey(t *testing.T) {
	got := MaskKey("RGAPI-12345678-abcd-efgh")
	if got != "RGAPI-12************efgh" {
		t.Errorf("MaskKey = %q", got)
	}
	if MaskKey("short") != "*****" {
		t.Errorf("short keys should be fully masked")
	}
}
