package session

import (
	"sync"

	"github.com/blockberries/lockstep/types"
)

// inbox queues remote reports between ticks. Network goroutines push,
// the simulation goroutine drains. A bounded inbox is a ring: when
// full, the oldest report is overwritten since it would be the first
// to fall out of the ledger window.
type inbox struct {
	mu    sync.Mutex
	ring  []types.FingerprintReport
	head  int
	n     int
	items []types.FingerprintReport // unbounded mode
	out   []types.FingerprintReport
	limit int
}

func newInbox(limit int) *inbox {
	b := &inbox{limit: limit}
	if limit > 0 {
		b.ring = make([]types.FingerprintReport, limit)
		b.out = make([]types.FingerprintReport, 0, limit)
	}
	return b
}

// push appends r and reports whether an older report was dropped.
func (b *inbox) push(r types.FingerprintReport) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit <= 0 {
		b.items = append(b.items, r)
		return false
	}
	if b.n == b.limit {
		b.ring[b.head] = r
		b.head = (b.head + 1) % b.limit
		return true
	}
	b.ring[(b.head+b.n)%b.limit] = r
	b.n++
	return false
}

// drain hands the queued reports to the caller, oldest first. The
// returned slice is valid until the next drain.
func (b *inbox) drain() []types.FingerprintReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit <= 0 {
		out := b.items
		b.items, b.out = b.out[:0], out
		return out
	}
	out := b.out[:0]
	for i := 0; i < b.n; i++ {
		out = append(out, b.ring[(b.head+i)%b.limit])
	}
	b.head, b.n = 0, 0
	b.out = out
	return out
}

func (b *inbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit <= 0 {
		return len(b.items)
	}
	return b.n
}
