// Package ledger keeps the rolling record of local and remote
// fingerprints for the most recent ticks.
//
// The ledger is a fixed-capacity ring indexed by tick modulo capacity.
// It retains the window (newest-capacity, newest], where newest is the
// highest tick recorded locally. Remote reports for ticks the local
// simulation has not reached yet are held aside, at most capacity
// ticks ahead of it, and move into the ring when the simulation gets
// there. Remote traffic never moves the window, so a peer running far
// ahead cannot evict local history. Memory use is bounded by twice the
// capacity regardless of session length.
package ledger

import (
	"errors"
	"sync"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/types"
)

// DefaultCapacity is the number of ticks retained when none is given.
const DefaultCapacity = 256

var (
	// ErrEvicted is returned for ticks older than the retained window.
	ErrEvicted = errors.New("ledger: tick outside retained window")
	// ErrAhead is returned for remote reports more than capacity ticks
	// ahead of the local simulation.
	ErrAhead = errors.New("ledger: remote tick too far ahead")
	// ErrRemoteConflict is returned when a second, different remote
	// fingerprint arrives for a tick. The first one is kept.
	ErrRemoteConflict = errors.New("ledger: conflicting remote fingerprint")
)

type slot struct {
	used bool
	rec  types.SyncRecord
}

// Ledger owns the ring of SyncRecords. All methods are safe for
// concurrent use; writers are expected to be a single goroutine.
type Ledger struct {
	mu       sync.RWMutex
	slots    []slot
	ahead    map[types.Tick]types.SyncRecord
	newLocal types.Tick
	hasLocal bool
	newFull  types.Tick
	hasFull  bool
}

// New creates a ledger retaining the given number of ticks.
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		slots: make([]slot, capacity),
		ahead: make(map[types.Tick]types.SyncRecord),
	}
}

// Cap returns the number of ticks the ledger retains.
func (l *Ledger) Cap() int { return len(l.slots) }

// Len returns the number of records in the retained window. Reports
// held ahead of the local simulation are counted by Ahead.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for i := range l.slots {
		if l.slots[i].used && l.inWindowLocked(l.slots[i].rec.Tick) {
			n++
		}
	}
	return n
}

// Ahead returns the number of remote reports waiting for the local
// simulation to reach their tick.
func (l *Ledger) Ahead() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ahead)
}

// RecordLocal stores the locally computed fingerprint for tick.
// Recording the same value twice is a no-op; recording a different
// value returns a *lockstep.DuplicateTickMismatchError. A tick that
// has already fallen out of the window returns ErrEvicted; a
// simulation that only moves forward never sees it.
func (l *Ledger) RecordLocal(tick types.Tick, fp types.Fingerprint) (types.SyncRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hasLocal && tick < l.windowStartLocked() {
		return types.SyncRecord{}, ErrEvicted
	}
	if !l.hasLocal || tick > l.newLocal {
		l.advanceLocked(tick)
	}

	s := l.slotLocked(tick)
	if s.rec.HasLocal {
		if !s.rec.Local.Equal(fp) {
			return s.rec, lockstep.NewDuplicateTickMismatchError(tick, s.rec.Local, fp)
		}
		return s.rec, nil
	}
	s.rec.Local = fp
	s.rec.HasLocal = true
	l.noteCompleteLocked(s.rec)
	return s.rec, nil
}

// RecordRemote stores the fingerprint reported by the remote peer.
// Reports may arrive in any order; the resulting state does not depend
// on that order. Reports older than the window return ErrEvicted and
// reports more than capacity ticks ahead of the local simulation
// return ErrAhead. Before the first local tick at most capacity
// reports are held.
func (l *Ledger) RecordRemote(report types.FingerprintReport, receivedAt types.Timestamp) (types.SyncRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tick := report.Tick
	if l.hasLocal && tick <= l.newLocal {
		if tick < l.windowStartLocked() {
			return types.SyncRecord{}, ErrEvicted
		}
		s := l.slotLocked(tick)
		rec, err := setRemote(s.rec, report, receivedAt)
		if err != nil {
			return rec, err
		}
		s.rec = rec
		l.noteCompleteLocked(rec)
		return rec, nil
	}

	rec, held := l.ahead[tick]
	if !held {
		if l.hasLocal && tick-l.newLocal > types.Tick(len(l.slots)) {
			return types.SyncRecord{}, ErrAhead
		}
		if !l.hasLocal && len(l.ahead) >= len(l.slots) {
			return types.SyncRecord{}, ErrAhead
		}
		rec = types.SyncRecord{Tick: tick}
	}
	rec, err := setRemote(rec, report, receivedAt)
	if err != nil {
		return rec, err
	}
	l.ahead[tick] = rec
	return rec, nil
}

func setRemote(rec types.SyncRecord, report types.FingerprintReport, receivedAt types.Timestamp) (types.SyncRecord, error) {
	if rec.HasRemote {
		if !rec.Remote.Equal(report.Fingerprint) {
			return rec, ErrRemoteConflict
		}
		return rec, nil
	}
	rec.Remote = report.Fingerprint
	rec.HasRemote = true
	rec.SentAt = report.SentAt
	rec.ReceivedAt = receivedAt
	return rec, nil
}

// Get returns the record for tick, including remote reports held
// ahead of the local simulation. Evicted or unknown ticks are not
// found; stale data from an older lap of the ring is never returned.
func (l *Ledger) Get(tick types.Tick) (types.SyncRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if rec, ok := l.ahead[tick]; ok {
		return rec, true
	}
	return l.getLocked(tick)
}

// Latest returns the newest record that carries a local fingerprint.
// The record is pending when !rec.Complete().
func (l *Ledger) Latest() (types.SyncRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.hasLocal {
		return types.SyncRecord{}, false
	}
	return l.getLocked(l.newLocal)
}

// LatestComplete returns the newest record with both fingerprints.
func (l *Ledger) LatestComplete() (types.SyncRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.hasFull {
		return types.SyncRecord{}, false
	}
	return l.getLocked(l.newFull)
}

// Records returns the records in the retained window in ascending tick
// order.
func (l *Ledger) Records() []types.SyncRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.hasLocal {
		return nil
	}
	out := make([]types.SyncRecord, 0, len(l.slots))
	for t := l.windowStartLocked(); t <= l.newLocal; t++ {
		if rec, ok := l.getLocked(t); ok {
			out = append(out, rec)
		}
	}
	return out
}

func (l *Ledger) getLocked(tick types.Tick) (types.SyncRecord, bool) {
	if !l.inWindowLocked(tick) {
		return types.SyncRecord{}, false
	}
	s := &l.slots[l.index(tick)]
	if !s.used || s.rec.Tick != tick {
		return types.SyncRecord{}, false
	}
	return s.rec, true
}

// slotLocked returns the ring slot for tick, evicting the previous
// occupant when it belongs to an older lap.
func (l *Ledger) slotLocked(tick types.Tick) *slot {
	s := &l.slots[l.index(tick)]
	if !s.used || s.rec.Tick != tick {
		*s = slot{used: true, rec: types.SyncRecord{Tick: tick}}
	}
	return s
}

// advanceLocked moves the window to end at tick and pulls held remote
// reports that are now inside it into the ring.
func (l *Ledger) advanceLocked(tick types.Tick) {
	prev, had := l.newLocal, l.hasLocal
	l.newLocal, l.hasLocal = tick, true
	if len(l.ahead) == 0 {
		return
	}

	start := l.windowStartLocked()
	if !had || tick-prev > types.Tick(len(l.slots)) {
		for t, rec := range l.ahead {
			switch {
			case t < start:
				delete(l.ahead, t)
			case t <= tick:
				l.slotLocked(t).rec = rec
				delete(l.ahead, t)
			case t-tick > types.Tick(len(l.slots)):
				delete(l.ahead, t)
			}
		}
		return
	}
	for t := max(prev+1, start); t <= tick; t++ {
		if rec, ok := l.ahead[t]; ok {
			l.slotLocked(t).rec = rec
			delete(l.ahead, t)
		}
	}
}

func (l *Ledger) noteCompleteLocked(rec types.SyncRecord) {
	if rec.Complete() && (!l.hasFull || rec.Tick > l.newFull) {
		l.newFull, l.hasFull = rec.Tick, true
	}
}

func (l *Ledger) windowStartLocked() types.Tick {
	n := types.Tick(len(l.slots))
	if l.newLocal < n {
		return 0
	}
	return l.newLocal - n + 1
}

func (l *Ledger) inWindowLocked(tick types.Tick) bool {
	return l.hasLocal && tick <= l.newLocal && tick >= l.windowStartLocked()
}

func (l *Ledger) index(tick types.Tick) int {
	return int(tick % types.Tick(len(l.slots)))
}
