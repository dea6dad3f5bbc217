package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/draftsight/collector/internal/models"
)

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()
	clk := &testClock{now: epoch}
	s, err := Open(filepath.Join(t.TempDir(), "data", "matches.db"), WithClock(clk.Now))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clk
}

func record(id, payload string) models.MatchRecord {
	return models.MatchRecord{
		ID:           id,
		QueueID:      420,
		GameVersion:  "14.11.589.9418",
		GameCreation: 1717000000000,
		GameDuration: 1800,
		Tier:         "DIAMOND",
		Payload:      []byte(payload),
	}
}

// TestCommitIsIdempotent commits the same match twice: the second commit is
// a no-op and the first payload is kept.
func TestCommitIsIdempotent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	ok, err := s.Commit(ctx, record("KR_1", `{"v":1}`))
	if err != nil || !ok {
		t.Fatalf("first Commit = %v, %v", ok, err)
	}
	ok, err = s.Commit(ctx, record("KR_1", `{"v":2}`))
	if err != nil || ok {
		t.Fatalf("second Commit = %v, %v; want false, nil", ok, err)
	}

	n, err := s.MatchCount(ctx)
	if err != nil || n != 1 {
		t.Fatalf("MatchCount = %d, %v", n, err)
	}

	var payload []byte
	if err := s.db.GetContext(ctx, &payload, `SELECT payload FROM matches WHERE match_id = ?`, "KR_1"); err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if string(payload) != `{"v":1}` {
		t.Errorf("payload = %s, want first write", payload)
	}

	exists, err := s.Exists(ctx, "KR_1")
	if err != nil || !exists {
		t.Errorf("Exists(KR_1) = %v, %v", exists, err)
	}
	exists, err = s.Exists(ctx, "KR_2")
	if err != nil || exists {
		t.Errorf("Exists(KR_2) = %v, %v", exists, err)
	}
}

// TestConcurrentCommitsHaveOneWinner races workers committing one id.
func TestConcurrentCommitsHaveOneWinner(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Commit(ctx, record("KR_race", `{}`))
			if err != nil {
				t.Errorf("Commit: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}
}

func TestCommitBatch(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Commit(ctx, record("KR_1", `{}`)); err != nil {
		t.Fatal(err)
	}
	n, err := s.CommitBatch(ctx, []models.MatchRecord{record("KR_1", `{}`), record("KR_2", `{}`), record("KR_3", `{}`)})
	if err != nil || n != 2 {
		t.Fatalf("CommitBatch = %d, %v; want 2", n, err)
	}

	ids, err := s.CollectedMatchIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"KR_1", "KR_2", "KR_3"} {
		if _, ok := ids[id]; !ok {
			t.Errorf("missing %s", id)
		}
	}
}

// TestProcessedFreshness marks a player and checks the marker against the
// 24h freshness window.
func TestProcessedFreshness(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()
	fresh := 24 * time.Hour

	if ok, err := s.IsProcessed(ctx, "puuid-1", fresh); err != nil || ok {
		t.Fatalf("unmarked IsProcessed = %v, %v", ok, err)
	}
	if err := s.MarkProcessed(ctx, "puuid-1"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	clk.Set(epoch.Add(23 * time.Hour))
	if ok, _ := s.IsProcessed(ctx, "puuid-1", fresh); !ok {
		t.Error("expected processed at +23h")
	}

	clk.Set(epoch.Add(24 * time.Hour))
	if ok, _ := s.IsProcessed(ctx, "puuid-1", fresh); ok {
		t.Error("expected not processed at +24h")
	}
	if ok, _ := s.IsProcessed(ctx, "puuid-1", 0); !ok {
		t.Error("zero freshness should mean processed forever")
	}

	// re-marking refreshes the window
	if err := s.MarkProcessed(ctx, "puuid-1"); err != nil {
		t.Fatal(err)
	}
	clk.Set(epoch.Add(30 * time.Hour))
	if ok, _ := s.IsProcessed(ctx, "puuid-1", fresh); !ok {
		t.Error("expected processed after re-mark")
	}
}

func TestStats(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if v, err := s.ReadStat(ctx, StatLastPage, 1); err != nil || v != 1 {
		t.Fatalf("default ReadStat = %d, %v", v, err)
	}
	if err := s.WriteStat(ctx, StatLastPage, 7); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.ReadStat(ctx, StatLastPage, 1); v != 7 {
		t.Errorf("last_page = %d, want 7", v)
	}

	err := s.WriteStats(ctx, map[string]int64{StatSuccessfulRequests: 40, StatOtherErrors: 2})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := s.ReadStat(ctx, StatSuccessfulRequests, 0); v != 40 {
		t.Errorf("successful_requests = %d", v)
	}
}

// TestResetPreservesMatches clears markers by prefix and entirely, and
// checks committed matches survive both.
func TestResetPreservesMatches(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Commit(ctx, record("KR_1", `{}`)); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"puuid-1", SummonerMarker("a"), SummonerMarker("b")} {
		if err := s.MarkProcessed(ctx, name); err != nil {
			t.Fatal(err)
		}
	}
	// an '_' in a LIKE pattern would also match this one
	if err := s.MarkProcessed(ctx, "sidX"); err != nil {
		t.Fatal(err)
	}

	cleared, err := s.Reset(ctx, ResetScope{ClearMarkers: true, MarkerPrefix: SummonerMarkerPrefix})
	if err != nil || cleared != 2 {
		t.Fatalf("prefix Reset = %d, %v; want 2", cleared, err)
	}
	if ok, _ := s.IsProcessed(ctx, "puuid-1", 0); !ok {
		t.Error("puuid marker should survive a sid_ reset")
	}
	if ok, _ := s.IsProcessed(ctx, "sidX", 0); !ok {
		t.Error("sidX should survive a sid_ reset")
	}

	cleared, err = s.Reset(ctx, ResetScope{
		ClearMarkers: true,
		Cursors:      map[string]int64{StatLastPage: 1, StatLastPlayerIndex: 0},
	})
	if err != nil || cleared != 2 {
		t.Fatalf("full Reset = %d, %v; want 2", cleared, err)
	}
	if v, _ := s.ReadStat(ctx, StatLastPage, -1); v != 1 {
		t.Errorf("last_page = %d, want 1", v)
	}

	if n, _ := s.MatchCount(ctx); n != 1 {
		t.Errorf("MatchCount = %d, matches must survive reset", n)
	}
}

func TestTimelines(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"KR_3", "KR_1", "KR_2"} {
		rec := record(id, `{}`)
		rec.GameCreation = int64(i)
		if _, err := s.Commit(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	ok, err := s.CommitTimeline(ctx, "KR_1", []byte(`{"frames":[]}`))
	if err != nil || !ok {
		t.Fatalf("CommitTimeline = %v, %v", ok, err)
	}
	if ok, _ := s.CommitTimeline(ctx, "KR_1", []byte(`{}`)); ok {
		t.Error("second CommitTimeline should be a no-op")
	}

	ids, err := s.MatchesWithoutTimeline(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "KR_3" || ids[1] != "KR_2" {
		t.Errorf("MatchesWithoutTimeline = %v, want [KR_3 KR_2]", ids)
	}

	ids, _ = s.MatchesWithoutTimeline(ctx, 1)
	if len(ids) != 1 {
		t.Errorf("limited = %v", ids)
	}
}

func TestSummary(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()

	empty, err := s.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Matches != 0 || !empty.LastCollected.IsZero() {
		t.Errorf("empty summary = %+v", empty)
	}

	clk.Set(epoch.Add(time.Hour))
	s.Commit(ctx, record("KR_1", `{}`))
	s.Commit(ctx, record("KR_2", `{}`))
	s.CommitTimeline(ctx, "KR_1", []byte(`{}`))
	s.MarkProcessed(ctx, "puuid-1")
	s.MarkProcessed(ctx, SummonerMarker("a"))
	s.WriteStat(ctx, StatTotalRequests, 12)

	sum, err := s.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Matches != 2 || sum.Timelines != 1 || sum.ProcessedPlayers != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if !sum.LastCollected.Equal(epoch.Add(time.Hour)) {
		t.Errorf("LastCollected = %v", sum.LastCollected)
	}
	if sum.Stats[StatTotalRequests] != 12 {
		t.Errorf("stats = %v", sum.Stats)
	}
}

// TestFailuresAreStorageErrors injects driver failures and checks every one
// surfaces as ErrStorage.
func TestFailuresAreStorageErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := NewWithDB(db)
	ctx := context.Background()
	diskErr := errors.New("disk I/O error")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT OR IGNORE INTO matches`).WillReturnError(diskErr)
	mock.ExpectRollback()

	ok, err := s.Commit(ctx, record("KR_1", `{}`))
	if ok || !errors.Is(err, ErrStorage) {
		t.Fatalf("Commit = %v, %v; want ErrStorage", ok, err)
	}
	var se *Error
	if !errors.As(err, &se) || se.Op != "commit" || !errors.Is(err, diskErr) {
		t.Errorf("error = %#v", err)
	}

	mock.ExpectQuery(`SELECT processed_at FROM collection_progress`).WillReturnError(diskErr)
	if _, err := s.IsProcessed(ctx, "p", time.Hour); !errors.Is(err, ErrStorage) {
		t.Errorf("IsProcessed err = %v", err)
	}

	mock.ExpectExec(`INSERT INTO collection_progress`).WillReturnError(diskErr)
	if err := s.MarkProcessed(ctx, "p"); !errors.Is(err, ErrStorage) {
		t.Errorf("MarkProcessed err = %v", err)
	}

	mock.ExpectBegin().WillReturnError(diskErr)
	if _, err := s.Reset(ctx, ResetScope{ClearMarkers: true}); !errors.Is(err, ErrStorage) {
		t.Errorf("Reset err = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNoRowsIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := NewWithDB(db)

	mock.ExpectQuery(`SELECT value FROM collection_stats`).
		WithArgs(StatLastPage).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	v, err := s.ReadStat(context.Background(), StatLastPage, 1)
	if err != nil || v != 1 {
		t.Errorf("ReadStat = %d, %v; want default", v, err)
	}
}
