// Package ratelimit provides rate limiting constants for Riot API method categories.
package ratelimit

import "time"

// Riot API Rate Limits
//
// Riot enforces two application rate limits per API key, both counted over
// rolling windows. A personal/development key allows 20 requests per second
// and 100 requests per two minutes. Every key has its own budget, so a pool of
// N keys can sustain N times the single-key rate as long as requests are spread
// across keys.
//
// Source: Riot Developer Portal, application rate limits
const (
	// ShortWindowLimit is the per-key request budget of the short window.
	ShortWindowLimit = 20

	// ShortWindowPeriod is the duration of the short window.
	ShortWindowPeriod = 1 * time.Second

	// LongWindowLimit is the per-key request budget of the long window.
	LongWindowLimit = 100

	// LongWindowPeriod is the duration of the long window.
	LongWindowPeriod = 120 * time.Second
)

// DefaultSafetyMargin is added to every computed wait so the request lands
// strictly after the blocking timestamp has left its window.
const DefaultSafetyMargin = 100 * time.Millisecond

