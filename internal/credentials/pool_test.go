package credentials

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fixedNow returns a clock function pinned to *t.
func fixedNow(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestNewPoolSkipsBlankAndCommentedKeys(t *testing.T) {
	p, err := NewPool([]string{"RGAPI-a", "", "  ", "# old key", "RGAPI-b", "RGAPI-a"})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}
}

func TestNewPoolRejectsEmpty(t *testing.T) {
	_, err := NewPool([]string{"", "#comment"})
	if !errors.Is(err, ErrNoKeys) {
		t.Errorf("expected ErrNoKeys, got %v", err)
	}
}

// TestNextAvailableRoundRobin verifies selection rotates through every key.
func TestNextAvailableRoundRobin(t *testing.T) {
	p, _ := NewPool([]string{"k0", "k1", "k2"})

	var got []int
	for i := 0; i < 6; i++ {
		got = append(got, p.NextAvailable(epoch).Index)
	}
	want := []int{0, 1, 2, 0, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("selection order = %v, want %v", got, want)
		}
	}
}

// TestFailoverSkipsCoolingKey: key 0 limited with retry-after 5s, key 1
// available, so key 1 is returned immediately and key 0 is not returned
// until its cooldown passes.
func TestFailoverSkipsCoolingKey(t *testing.T) {
	now := epoch
	p, _ := NewPool([]string{"k0", "k1"}, WithClock(fixedNow(&now)))

	if d := p.MarkRateLimited(0, 5*time.Second); d != 5*time.Second {
		t.Fatalf("cooldown = %v, want 5s", d)
	}

	for i := 0; i < 4; i++ {
		sel := p.NextAvailable(now.Add(time.Duration(i) * time.Second))
		if sel.Index != 1 {
			t.Fatalf("call %d returned key %d, want 1", i, sel.Index)
		}
		if sel.Wait != 0 {
			t.Fatalf("call %d should not wait, got %v", i, sel.Wait)
		}
	}

	// Cooldown expired: key 0 is eligible again
	sel := p.NextAvailable(now.Add(5 * time.Second))
	if sel.Index != 0 {
		t.Errorf("after cooldown got key %d, want 0", sel.Index)
	}
}

// TestAllCoolingReturnsMinimumWait checks the wait is the soonest expiry,
// not the latest.
func TestAllCoolingReturnsMinimumWait(t *testing.T) {
	now := epoch
	p, _ := NewPool([]string{"k0", "k1", "k2"}, WithClock(fixedNow(&now)))

	p.MarkRateLimited(0, 30*time.Second)
	p.MarkRateLimited(1, 7*time.Second)
	p.MarkRateLimited(2, 12*time.Second)

	sel := p.NextAvailable(now.Add(2 * time.Second))
	if sel.Index != 1 {
		t.Errorf("index = %d, want 1", sel.Index)
	}
	if sel.Wait != 5*time.Second {
		t.Errorf("wait = %v, want 5s", sel.Wait)
	}
}

// TestBackoffGrowthAndCap checks 2, 4, 8, ... capped at 60 with no retry-after.
func TestBackoffGrowthAndCap(t *testing.T) {
	now := epoch
	p, _ := NewPool([]string{"k0"}, WithClock(fixedNow(&now)))

	want := []time.Duration{2, 4, 8, 16, 32, 60, 60, 60}
	var prev time.Duration
	for i, w := range want {
		d := p.MarkRateLimited(0, 0)
		if d != w*time.Second {
			t.Errorf("mark %d: cooldown = %v, want %v", i+1, d, w*time.Second)
		}
		if d < prev {
			t.Errorf("mark %d: cooldown decreased from %v to %v", i+1, prev, d)
		}
		prev = d
	}
}

// TestRemarkUsesCurrentTime verifies a later mark replaces the cooldown from
// the time of marking, not from the previous expiry.
func TestRemarkUsesCurrentTime(t *testing.T) {
	now := epoch
	p, _ := NewPool([]string{"k0"}, WithClock(fixedNow(&now)))

	p.MarkRateLimited(0, 10*time.Second)
	now = epoch.Add(3 * time.Second)
	p.MarkRateLimited(0, 2*time.Second)

	sel, err := p.Fixed(0, now)
	if err != nil {
		t.Fatalf("Fixed: %v", err)
	}
	if sel.Wait != 2*time.Second {
		t.Errorf("wait = %v, want 2s", sel.Wait)
	}
}

// TestSuccessRecoversErrors: every fifth success forgives one error.
func TestSuccessRecoversErrors(t *testing.T) {
	now := epoch
	p, _ := NewPool([]string{"k0"}, WithClock(fixedNow(&now)))

	p.MarkRateLimited(0, 0)
	p.MarkRateLimited(0, 0)

	for i := 0; i < 4; i++ {
		p.MarkSuccess(0)
	}
	if got := p.Stats(now)[0].ErrorCount; got != 2 {
		t.Errorf("after 4 successes errorCount = %d, want 2", got)
	}

	p.MarkSuccess(0)
	if got := p.Stats(now)[0].ErrorCount; got != 1 {
		t.Errorf("after 5 successes errorCount = %d, want 1", got)
	}

	for i := 0; i < 20; i++ {
		p.MarkSuccess(0)
	}
	if got := p.Stats(now)[0].ErrorCount; got != 0 {
		t.Errorf("errorCount should floor at 0, got %d", got)
	}

	// Next limit starts again from 2s
	if d := p.MarkRateLimited(0, 0); d != 2*time.Second {
		t.Errorf("cooldown after recovery = %v, want 2s", d)
	}
}

func TestFixedOutOfRange(t *testing.T) {
	p, _ := NewPool([]string{"k0"})
	if _, err := p.Fixed(3, epoch); !errors.Is(err, ErrKeyIndex) {
		t.Errorf("expected ErrKeyIndex, got %v", err)
	}
}

func TestWithBackoffOverride(t *testing.T) {
	now := epoch
	p, _ := NewPool([]string{"k0"}, WithClock(fixedNow(&now)), WithBackoff(3, 20*time.Second))

	want := []time.Duration{3 * time.Second, 9 * time.Second, 20 * time.Second}
	for i, w := range want {
		if d := p.MarkRateLimited(0, 0); d != w {
			t.Errorf("mark %d: cooldown = %v, want %v", i+1, d, w)
		}
	}
}

func TestStatsNeverExposeKey(t *testing.T) {
	p, _ := NewPool([]string{"RGAPI-secret"})
	p.MarkIssued(0)
	p.MarkSuccess(0)

	s := p.Stats(epoch)[0]
	if s.Fingerprint == "RGAPI-secret" || len(s.Fingerprint) != 8 {
		t.Errorf("unexpected fingerprint %q", s.Fingerprint)
	}
	if s.Total != 1 || s.Successes != 1 || s.SuccessRate() != 100 {
		t.Errorf("unexpected stats %+v", s)
	}
}

// TestConcurrentMarksLoseNothing runs issue/success from many goroutines.
func TestConcurrentMarksLoseNothing(t *testing.T) {
	p, _ := NewPool([]string{"k0", "k1"})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sel := p.NextAvailable(time.Now())
			p.MarkIssued(sel.Index)
			p.MarkSuccess(sel.Index)
		}()
	}
	wg.Wait()

	var total, ok int64
	for _, s := range p.Stats(time.Now()) {
		total += s.Total
		ok += s.Successes
	}
	if total != 100 || ok != 100 {
		t.Errorf("total=%d successes=%d, want 100/100", total, ok)
	}
}
