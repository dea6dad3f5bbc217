package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ResolveAPIKeys returns the key list and where it came from, checking
// sources in priority order:
//  1. flagKeys (one or more --api-key flags)
//  2. keyFile (one key per line, '#' comments ignored)
//  3. api_keys from the INI config already loaded into cfg
//  4. RIOT_API_KEYS (comma separated) or RIOT_API_KEY environment variables
//
// Returns a nil slice and empty source when no key is found.
func ResolveAPIKeys(flagKeys []string, keyFile string, cfg *Config) ([]string, string, error) {
	if keys := normalizeKeys(flagKeys); len(keys) > 0 {
		return keys, "flag", nil
	}

	if keyFile != "" {
		keys, err := ReadKeyFile(keyFile)
		if err != nil {
			return nil, "", err
		}
		if len(keys) > 0 {
			return keys, "key-file", nil
		}
	}

	if cfg != nil && len(cfg.APIKeys) > 0 {
		return normalizeKeys(cfg.APIKeys), "config", nil
	}

	if v := os.Getenv(EnvAPIKeys); v != "" {
		return SplitKeys(v), "environment", nil
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		return []string{v}, "environment", nil
	}

	return nil, "", nil
}

// ReadKeyFile reads one key per line. Blank lines and lines starting with
// '#' are skipped.
func ReadKeyFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()

	var keys []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return keys, nil
}

func normalizeKeys(in []string) []string {
	var out []string
	for _, k := range in {
		out = append(out, SplitKeys(k)...)
	}
	return out
}
