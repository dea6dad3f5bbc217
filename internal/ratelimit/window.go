package ratelimit

import (
	"sort"
	"time"
)

// ring is a growable FIFO of timestamps in non-decreasing order.
// Appends and front removals are amortised O(1); counting the entries
// inside a window is a binary search.
type ring struct {
	buf  []time.Time
	head int // index of the oldest entry
	n    int
}

func (r *ring) len() int { return r.n }

// at returns the i-th oldest entry.
func (r *ring) at(i int) time.Time {
	return r.buf[(r.head+i)%len(r.buf)]
}

func (r *ring) last() time.Time {
	return r.at(r.n - 1)
}

func (r *ring) push(t time.Time) {
	if r.n == len(r.buf) {
		r.grow()
	}
	r.buf[(r.head+r.n)%len(r.buf)] = t
	r.n++
}

func (r *ring) grow() {
	size := len(r.buf) * 2
	if size == 0 {
		size = 16
	}
	buf := make([]time.Time, size)
	for i := 0; i < r.n; i++ {
		buf[i] = r.at(i)
	}
	r.buf = buf
	r.head = 0
}

// dropThrough removes every entry at or before cutoff.
func (r *ring) dropThrough(cutoff time.Time) {
	for r.n > 0 && !r.at(0).After(cutoff) {
		r.buf[r.head] = time.Time{}
		r.head = (r.head + 1) % len(r.buf)
		r.n--
	}
}

// countAfter returns how many entries are strictly after cutoff.
func (r *ring) countAfter(cutoff time.Time) int {
	idx := sort.Search(r.n, func(i int) bool {
		return r.at(i).After(cutoff)
	})
	return r.n - idx
}
