// Package store persists committed matches, timelines, per-player progress
// markers and collection counters in a single SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/draftsight/collector/internal/logging"
	"github.com/draftsight/collector/internal/models"
)

const driverName = "sqlite"

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// Stat keys persisted in collection_stats.
const (
	StatTotalRequests      = "total_requests"
	StatSuccessfulRequests = "successful_requests"
	StatRateLimitErrors    = "rate_limit_errors"
	StatOtherErrors        = "other_errors"
	StatLastPage           = "last_page"
	StatLastPlayerIndex    = "last_player_index"
)

// SummonerMarkerPrefix prefixes markers keyed by encrypted summoner id.
const SummonerMarkerPrefix = "sid_"

// SummonerMarker returns the processed marker name of a summoner id.
func SummonerMarker(summonerID string) string {
	return SummonerMarkerPrefix + summonerID
}

// ErrStorage matches every error returned by Store via errors.Is.
var ErrStorage = errors.New("storage failure")

// Error is a failed store operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorage) true.
func (e *Error) Is(target error) bool {
	return target == ErrStorage
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	match_id      TEXT PRIMARY KEY,
	queue_id      INTEGER NOT NULL DEFAULT 420,
	game_version  TEXT,
	game_creation INTEGER,
	game_duration INTEGER,
	tier          TEXT,
	payload       BLOB NOT NULL,
	collected_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_matches_game_creation ON matches(game_creation);

CREATE TABLE IF NOT EXISTS match_timelines (
	match_id     TEXT PRIMARY KEY,
	payload      BLOB NOT NULL,
	collected_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS collection_progress (
	name         TEXT PRIMARY KEY,
	processed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS collection_stats (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

// Store is safe for concurrent use. It holds a single connection, so writes
// are serialized by database/sql and every commit is an atomic
// check-and-insert.
type Store struct {
	db     *sqlx.DB
	path   string
	now    func() time.Time
	logger *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for processed markers and commit times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, wrap("open", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, wrap("open", err)
	}
	db.SetMaxOpenConns(1)

	s := newStore(db, opts)
	s.path = path
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Debug().Str("path", path).Msg("Database opened")
	return s, nil
}

// NewWithDB wraps an existing connection without migrating it.
func NewWithDB(db *sql.DB, opts ...Option) *Store {
	return newStore(sqlx.NewDb(db, driverName), opts)
}

func newStore(db *sqlx.DB, opts []Option) *Store {
	s := &Store{db: db, now: time.Now, logger: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the database file path, empty for a store built with NewWithDB.
func (s *Store) Path() string {
	return s.path
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return wrap("migrate", err)
}

// Close closes the database.
func (s *Store) Close() error {
	return wrap("close", s.db.Close())
}

// Exists reports whether matchID has been committed.
func (s *Store) Exists(ctx context.Context, matchID string) (bool, error) {
	var one int
	err := s.db.GetContext(ctx, &one, `SELECT 1 FROM matches WHERE match_id = ?`, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("exists", err)
	}
	return true, nil
}

type matchRow struct {
	models.MatchRecord
	CollectedAt int64 `db:"collected_at"`
}

const insertMatch = `INSERT OR IGNORE INTO matches
	(match_id, queue_id, game_version, game_creation, game_duration, tier, payload, collected_at)
	VALUES (:match_id, :queue_id, :game_version, :game_creation, :game_duration, :tier, :payload, :collected_at)`

// Commit stores rec unless a match with the same id is already committed.
// It returns true only when this call inserted the record; a duplicate is a
// no-op and the first write wins.
func (s *Store) Commit(ctx context.Context, rec models.MatchRecord) (bool, error) {
	n, err := s.CommitBatch(ctx, []models.MatchRecord{rec})
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CommitBatch stores every new record of recs in one transaction and returns
// how many were inserted.
func (s *Store) CommitBatch(ctx context.Context, recs []models.MatchRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, wrap("commit", err)
	}
	defer tx.Rollback()

	collectedAt := s.now().UnixMilli()
	inserted := 0
	for _, rec := range recs {
		res, err := tx.NamedExecContext(ctx, insertMatch, matchRow{MatchRecord: rec, CollectedAt: collectedAt})
		if err != nil {
			return 0, wrap("commit", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, wrap("commit", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrap("commit", err)
	}
	return inserted, nil
}

// CollectedMatchIDs returns the ids of every committed match.
func (s *Store) CollectedMatchIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT match_id FROM matches`); err != nil {
		return nil, wrap("collected ids", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// MatchCount returns the number of committed matches.
func (s *Store) MatchCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM matches`)
	return n, wrap("match count", err)
}

// MarkProcessed records that name (a PUUID or an sid_ marker) was processed now.
// Marking again refreshes the timestamp.
func (s *Store) MarkProcessed(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_progress (name, processed_at) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET processed_at = excluded.processed_at`,
		name, s.now().UnixMilli())
	return wrap("mark processed", err)
}

// IsProcessed reports whether name was marked within freshness of now. A
// non-positive freshness means a marker never expires.
func (s *Store) IsProcessed(ctx context.Context, name string, freshness time.Duration) (bool, error) {
	var processedAt int64
	err := s.db.GetContext(ctx, &processedAt, `SELECT processed_at FROM collection_progress WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("is processed", err)
	}
	if freshness <= 0 {
		return true, nil
	}
	return s.now().Before(time.UnixMilli(processedAt).Add(freshness)), nil
}

// ReadStat returns the value of key, or def when it was never written.
func (s *Store) ReadStat(ctx context.Context, key string, def int64) (int64, error) {
	var v int64
	err := s.db.GetContext(ctx, &v, `SELECT value FROM collection_stats WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, wrap("read stat", err)
	}
	return v, nil
}

const upsertStat = `INSERT INTO collection_stats (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`

// WriteStat sets key to value.
func (s *Store) WriteStat(ctx context.Context, key string, value int64) error {
	_, err := s.db.ExecContext(ctx, upsertStat, key, value)
	return wrap("write stat", err)
}

// WriteStats sets every key of stats in one transaction.
func (s *Store) WriteStats(ctx context.Context, stats map[string]int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrap("write stats", err)
	}
	defer tx.Rollback()

	for k, v := range stats {
		if _, err := tx.ExecContext(ctx, upsertStat, k, v); err != nil {
			return wrap("write stats", err)
		}
	}
	return wrap("write stats", tx.Commit())
}

// ResetScope selects what Reset clears.
type ResetScope struct {
	// ClearMarkers deletes processed markers; when MarkerPrefix is set only
	// markers starting with it are deleted.
	ClearMarkers bool
	MarkerPrefix string

	// Cursors are written as stats (e.g. last_page=1).
	Cursors map[string]int64
}

// Reset clears processed markers and rewrites cursors in one transaction,
// returning the number of markers deleted. Committed matches and timelines
// are never touched.
func (s *Store) Reset(ctx context.Context, scope ResetScope) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, wrap("reset", err)
	}
	defer tx.Rollback()

	var cleared int64
	if scope.ClearMarkers {
		var res sql.Result
		if scope.MarkerPrefix != "" {
			// substr instead of LIKE: marker prefixes contain '_'
			res, err = tx.ExecContext(ctx,
				`DELETE FROM collection_progress WHERE substr(name, 1, length(?)) = ?`,
				scope.MarkerPrefix, scope.MarkerPrefix)
		} else {
			res, err = tx.ExecContext(ctx, `DELETE FROM collection_progress`)
		}
		if err != nil {
			return 0, wrap("reset", err)
		}
		if cleared, err = res.RowsAffected(); err != nil {
			return 0, wrap("reset", err)
		}
	}

	for k, v := range scope.Cursors {
		if _, err := tx.ExecContext(ctx, upsertStat, k, v); err != nil {
			return 0, wrap("reset", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, wrap("reset", err)
	}
	return cleared, nil
}

// CommitTimeline stores the timeline of matchID unless one is already stored.
func (s *Store) CommitTimeline(ctx context.Context, matchID string, payload []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO match_timelines (match_id, payload, collected_at) VALUES (?, ?, ?)`,
		matchID, payload, s.now().UnixMilli())
	if err != nil {
		return false, wrap("commit timeline", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("commit timeline", err)
	}
	return n == 1, nil
}

// MatchesWithoutTimeline returns ids of committed matches with no stored
// timeline, oldest game first. limit <= 0 means no limit.
func (s *Store) MatchesWithoutTimeline(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT m.match_id FROM matches m
		LEFT JOIN match_timelines t ON m.match_id = t.match_id
		WHERE t.match_id IS NULL
		ORDER BY m.game_creation, m.match_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, wrap("matches without timeline", err)
	}
	return ids, nil
}

// Summary is a snapshot of the database contents.
type Summary struct {
	Matches          int64
	ProcessedPlayers int64
	Timelines        int64
	LastCollected    time.Time // zero when no match is stored
	Stats            map[string]int64
}

// Summary returns counts, the newest commit time and every persisted stat.
// Processed players count PUUID markers only, not sid_ markers.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var sum Summary

	var counts struct {
		Matches       int64         `db:"matches"`
		Players       int64         `db:"players"`
		Timelines     int64         `db:"timelines"`
		LastCollected sql.NullInt64 `db:"last_collected"`
	}
	err := s.db.GetContext(ctx, &counts, `SELECT
		(SELECT COUNT(*) FROM matches) AS matches,
		(SELECT COUNT(*) FROM collection_progress WHERE substr(name, 1, length(?)) != ?) AS players,
		(SELECT COUNT(*) FROM match_timelines) AS timelines,
		(SELECT MAX(collected_at) FROM matches) AS last_collected`,
		SummonerMarkerPrefix, SummonerMarkerPrefix)
	if err != nil {
		return sum, wrap("summary", err)
	}
	sum.Matches = counts.Matches
	sum.ProcessedPlayers = counts.Players
	sum.Timelines = counts.Timelines
	if counts.LastCollected.Valid {
		sum.LastCollected = time.UnixMilli(counts.LastCollected.Int64)
	}

	var rows []struct {
		Key   string `db:"key"`
		Value int64  `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value FROM collection_stats`); err != nil {
		return sum, wrap("summary", err)
	}
	sum.Stats = make(map[string]int64, len(rows))
	for _, r := range rows {
		sum.Stats[r.Key] = r.Value
	}
	return sum, nil
}
