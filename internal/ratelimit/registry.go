package ratelimit

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Category identifies a Riot API method category. Requests in the same
// category share one set of quota windows.
type Category string

const (
	// CategoryDefault is used for any path no rule matches.
	CategoryDefault Category = "default"

	// CategoryMatch covers match-v5 (match ids, match details, timelines).
	CategoryMatch Category = "match"

	// CategoryLeague covers league-v4 (paginated entries, apex leagues).
	CategoryLeague Category = "league"

	// CategoryAccount covers summoner-v4 and account-v1 identity lookups.
	CategoryAccount Category = "account"
)

// Window is a rolling quota window: at most Limit requests per Period, per key.
type Window struct {
	Limit  int
	Period time.Duration
}

// CategoryConfig holds the quota windows of a single category. Windows are
// kept sorted by period, shortest first.
type CategoryConfig struct {
	Category Category
	Windows  []Window
}

// longest returns the longest period among the windows.
func (c CategoryConfig) longest() time.Duration {
	if len(c.Windows) == 0 {
		return 0
	}
	return c.Windows[len(c.Windows)-1].Period
}

// PathRule maps a request path fragment to its category.
// Rules are matched in order of specificity: longer patterns win.
type PathRule struct {
	// Pattern is matched using strings.Contains so path parameters don't matter.
	Pattern string

	// Category is the quota category this path belongs to.
	Category Category
}

// Registry is the single source of truth for path-to-category mapping and
// per-category quota configuration.
type Registry struct {
	// rules sorted by specificity descending (most specific first)
	rules []PathRule

	configs map[Category]CategoryConfig

	defaultCategory Category
}

// DefaultWindows returns the per-key Riot application limits.
func DefaultWindows() []Window {
	return []Window{
		{Limit: ShortWindowLimit, Period: ShortWindowPeriod},
		{Limit: LongWindowLimit, Period: LongWindowPeriod},
	}
}

// NewRegistry creates a registry with the known Riot endpoint rules and the
// default limits for every category.
func NewRegistry() *Registry {
	r := &Registry{
		defaultCategory: CategoryDefault,
		configs:         make(map[Category]CategoryConfig),
	}
	for _, c := range AllCategories() {
		r.configs[c] = CategoryConfig{Category: c, Windows: DefaultWindows()}
	}

	r.rules = []PathRule{
		{Pattern: "/lol/match/", Category: CategoryMatch},
		{Pattern: "/lol/league/", Category: CategoryLeague},
		{Pattern: "/lol/league-exp/", Category: CategoryLeague},
		{Pattern: "/lol/summoner/", Category: CategoryAccount},
		{Pattern: "/riot/account/", Category: CategoryAccount},
	}

	sort.SliceStable(r.rules, func(i, j int) bool {
		return len(r.rules[i].Pattern) > len(r.rules[j].Pattern)
	})

	return r
}

// AllCategories returns every known category in a stable order.
func AllCategories() []Category {
	return []Category{CategoryDefault, CategoryMatch, CategoryLeague, CategoryAccount}
}

// Resolve determines the category for a request path.
func (r *Registry) Resolve(path string) Category {
	for _, rule := range r.rules {
		if strings.Contains(path, rule.Pattern) {
			return rule.Category
		}
	}
	return r.defaultCategory
}

// SetWindows overrides the windows of a category. Windows with a non-positive
// limit or period are ignored; an empty result leaves the category unchanged.
func (r *Registry) SetWindows(category Category, windows []Window) {
	valid := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Limit > 0 && w.Period > 0 {
			valid = append(valid, w)
		}
	}
	if len(valid) == 0 {
		return
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Period < valid[j].Period })
	r.configs[category] = CategoryConfig{Category: category, Windows: valid}
}

// Config returns the quota configuration for a category.
// Returns the default category config if the category is not found.
func (r *Registry) Config(category Category) CategoryConfig {
	if cfg, ok := r.configs[category]; ok {
		return cfg
	}
	return r.configs[r.defaultCategory]
}

// DisplayString returns a human-readable description of the category for logging.
// Example: "match (20/1s, 100/2m0s per key)"
func (r *Registry) DisplayString(category Category) string {
	cfg, ok := r.configs[category]
	if !ok {
		return string(category) + " (unknown category)"
	}
	parts := make([]string, 0, len(cfg.Windows))
	for _, w := range cfg.Windows {
		parts = append(parts, fmt.Sprintf("%d/%s", w.Limit, w.Period))
	}
	return fmt.Sprintf("%s (%s per key)", category, strings.Join(parts, ", "))
}
