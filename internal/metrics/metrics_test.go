package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/draftsight/collector/internal/api"
	"github.com/draftsight/collector/internal/ratelimit"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest(ratelimit.CategoryMatch, api.OutcomeSuccess, 0, 120*time.Millisecond)
	m.ObserveRequest(ratelimit.CategoryMatch, api.OutcomeSuccess, 1, 80*time.Millisecond)
	m.ObserveRequest(ratelimit.CategoryLeague, api.OutcomeRateLimited, 0, 10*time.Millisecond)

	if v := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("match", "success")); v != 2 {
		t.Errorf("match/success = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("league", "rate_limited")); v != 1 {
		t.Errorf("league/rate_limited = %v, want 1", v)
	}
}

func TestCooldownsAndCommits(t *testing.T) {
	m := New()
	m.ObserveCooldown(2, 4*time.Second)
	m.MatchesStored(3)
	m.MatchesStored(0)
	m.TimelinesStored(1)
	m.PlayerProcessed()

	if v := testutil.ToFloat64(m.KeyCooldowns.WithLabelValues("2")); v != 1 {
		t.Errorf("cooldowns for key 2 = %v", v)
	}
	if v := testutil.ToFloat64(m.MatchesCommitted); v != 3 {
		t.Errorf("matches = %v, want 3", v)
	}
	if v := testutil.ToFloat64(m.TimelinesCommitted); v != 1 {
		t.Errorf("timelines = %v", v)
	}
	if v := testutil.ToFloat64(m.PlayersProcessed); v != 1 {
		t.Errorf("players = %v", v)
	}
}

// TestHandlerExposesMetrics scrapes the handler like Prometheus would.
func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.MatchesStored(5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "draftsight_matches_committed_total 5") {
		t.Errorf("scrape missing matches counter:\n%s", body)
	}
}
