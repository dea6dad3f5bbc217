package constants

import (
	"time"
)

// Riot API routing
const (
	// DefaultPlatform - platform routing value for league/summoner endpoints (Korea)
	DefaultPlatform = "kr"

	// DefaultRegion - regional routing value for match/account endpoints
	// kr, jp1 route through asia; na1, br1, la1, la2 through americas; euw1, eun1, tr1, ru through europe
	DefaultRegion = "asia"

	// DefaultQueue - ranked queue name used by league-v4
	DefaultQueue = "RANKED_SOLO_5x5"

	// DefaultTier / DefaultDivision - paginated discovery bracket
	DefaultTier     = "DIAMOND"
	DefaultDivision = "I"

	// RankedSoloQueueID - match-v5 queueId of ranked solo/duo games, the only queue committed
	RankedSoloQueueID = 420

	// APIKeyHeader - header carrying the key on every request
	APIKeyHeader = "X-Riot-Token"
)

// Collection defaults
const (
	// DefaultPlayersPerBatch - players processed per batch
	DefaultPlayersPerBatch = 50

	// DefaultMatchesPerPlayer - match ids requested per player
	DefaultMatchesPerPlayer = 20

	// DefaultRefreshWindow - a player processed within this window is skipped
	DefaultRefreshWindow = 24 * time.Hour

	// DefaultMaxPages - maximum league-entry pages scanned per discovery
	DefaultMaxPages = 50

	// StatsSaveEvery - counters are persisted after this many players
	StatsSaveEvery = 5

	// ContinuousBatchPause - pause between batches in continuous mode
	ContinuousBatchPause = 5 * time.Second

	// ContinuousStatsEvery - per-key statistics are logged every N batches
	ContinuousStatsEvery = 10

	// DefaultDBPath - SQLite database location
	DefaultDBPath = "data/lol_matches.db"

	// DefaultMinFreeMB - free disk space next to the database required to start a batch
	DefaultMinFreeMB = 256
)

// Dispatcher retry configuration
const (
	// MaxAttempts - maximum attempts per logical request (rate-limit and transient outcomes both count)
	MaxAttempts = 5

	// TransientBackoffUnit - backoff after a transient failure is unit * 2^attempt
	TransientBackoffUnit = 1 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPRequestTimeout - bound on every Riot API call, including body read
	HTTPRequestTimeout = 30 * time.Second

	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake
	HTTPTLSHandshakeTimeout = 15 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection
	HTTPDialTimeout = 10 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPConnectRetries - retries of connection-level failures inside the HTTP client.
	// Status-code outcomes are never retried there; the dispatcher owns those.
	HTTPConnectRetries = 2
)
