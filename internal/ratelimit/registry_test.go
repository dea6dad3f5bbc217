package ratelimit

import (
	"testing"
	"time"
)

func TestResolveCategory(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		path string
		want Category
	}{
		{"/lol/match/v5/matches/KR_123", CategoryMatch},
		{"/lol/match/v5/matches/KR_123/timeline", CategoryMatch},
		{"/lol/match/v5/matches/by-puuid/abc/ids", CategoryMatch},
		{"/lol/league/v4/entries/RANKED_SOLO_5x5/DIAMOND/I", CategoryLeague},
		{"/lol/league/v4/challengerleagues/by-queue/RANKED_SOLO_5x5", CategoryLeague},
		{"/lol/league-exp/v4/entries/RANKED_SOLO_5x5/DIAMOND/I", CategoryLeague},
		{"/lol/summoner/v4/summoners/abc", CategoryAccount},
		{"/riot/account/v1/accounts/by-puuid/abc", CategoryAccount},
		{"/lol/status/v4/platform-data", CategoryDefault},
		{"", CategoryDefault},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := r.Resolve(tt.path)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestDefaultWindowsForEveryCategory(t *testing.T) {
	r := NewRegistry()

	for _, c := range AllCategories() {
		cfg := r.Config(c)
		if len(cfg.Windows) != 2 {
			t.Fatalf("%s: expected 2 windows, got %d", c, len(cfg.Windows))
		}
		if cfg.Windows[0].Limit != ShortWindowLimit || cfg.Windows[0].Period != ShortWindowPeriod {
			t.Errorf("%s: short window = %+v", c, cfg.Windows[0])
		}
		if cfg.Windows[1].Limit != LongWindowLimit || cfg.Windows[1].Period != LongWindowPeriod {
			t.Errorf("%s: long window = %+v", c, cfg.Windows[1])
		}
	}
}

// TestSetWindowsSortsAndFilters verifies overrides are sorted shortest first
// and invalid windows are dropped.
func TestSetWindowsSortsAndFilters(t *testing.T) {
	r := NewRegistry()
	r.SetWindows(CategoryMatch, []Window{
		{Limit: 500, Period: 10 * time.Minute},
		{Limit: 0, Period: time.Second},
		{Limit: 10, Period: 10 * time.Second},
	})

	cfg := r.Config(CategoryMatch)
	if len(cfg.Windows) != 2 {
		t.Fatalf("expected 2 windows, got %+v", cfg.Windows)
	}
	if cfg.Windows[0].Period != 10*time.Second || cfg.Windows[1].Period != 10*time.Minute {
		t.Errorf("windows not sorted: %+v", cfg.Windows)
	}

	// All-invalid override leaves the category untouched
	r.SetWindows(CategoryLeague, []Window{{Limit: -1, Period: time.Second}})
	if got := r.Config(CategoryLeague).Windows[0].Limit; got != ShortWindowLimit {
		t.Errorf("league short limit = %d, want %d", got, ShortWindowLimit)
	}
}

func TestConfigUnknownCategoryFallsBack(t *testing.T) {
	r := NewRegistry()
	cfg := r.Config(Category("nonexistent"))
	if cfg.Category != CategoryDefault {
		t.Errorf("unknown category should fall back to default, got %q", cfg.Category)
	}
}

func TestDisplayString(t *testing.T) {
	r := NewRegistry()

	got := r.DisplayString(CategoryMatch)
	want := "match (20/1s, 100/2m0s per key)"
	if got != want {
		t.Errorf("DisplayString(match) = %q, want %q", got, want)
	}

	if got := r.DisplayString(Category("x")); got != "x (unknown category)" {
		t.Errorf("DisplayString(x) = %q", got)
	}
}
