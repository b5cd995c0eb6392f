// Package detector compares local and remote fingerprints and latches
// the first divergence.
package detector

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/blockberries/lockstep/types"
)

// State is a state of the detector state machine.
type State uint32

const (
	// StateSynchronized: every compared tick matched so far.
	StateSynchronized State = iota
	// StateDesynchronized: some compared tick mismatched. Terminal for
	// the lifetime of the detector; recovery needs a fresh state
	// transfer and a fresh session.
	StateDesynchronized
)

func (s State) String() string {
	switch s {
	case StateSynchronized:
		return "Synchronized"
	case StateDesynchronized:
		return "Desynchronized"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Verdict is the outcome of comparing one complete record.
type Verdict struct {
	Tick     types.Tick
	Mismatch types.Mismatch
	// Tripped is true only for the comparison that moved the detector
	// from Synchronized to Desynchronized.
	Tripped bool
}

// Detector enforces the one-way Synchronized -> Desynchronized
// transition. Compare is called by the single session writer; the
// query methods are safe from any goroutine.
type Detector struct {
	state atomic.Uint32

	mu              sync.Mutex
	compared        bool
	last            types.SyncRecord
	firstDivergence types.Tick
	firstMismatch   types.Mismatch
}

// New creates a detector in the Synchronized state.
func New() *Detector {
	d := &Detector{}
	d.state.Store(uint32(StateSynchronized))
	return d
}

// State returns the current state.
func (d *Detector) State() State {
	return State(d.state.Load())
}

// IsDesynchronized reports whether any compared tick has mismatched.
func (d *Detector) IsDesynchronized() bool {
	return d.State() == StateDesynchronized
}

// Compare checks the seed and the hash of a record independently.
// It returns false without effect when the record is incomplete.
// Records keep being compared after the detector has tripped so that
// LastVerified continues to advance.
func (d *Detector) Compare(rec types.SyncRecord) (Verdict, bool) {
	if !rec.Complete() {
		return Verdict{}, false
	}
	v := Verdict{Tick: rec.Tick, Mismatch: rec.Mismatch()}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.compared || rec.Tick >= d.last.Tick {
		d.last = rec
		d.compared = true
	}
	if !v.Mismatch.Any() {
		return v, true
	}
	if d.state.CompareAndSwap(uint32(StateSynchronized), uint32(StateDesynchronized)) {
		v.Tripped = true
	} else if rec.Tick >= d.firstDivergence {
		return v, true
	}
	// Reports may arrive out of order: keep the earliest divergent tick.
	d.firstDivergence = rec.Tick
	d.firstMismatch = v.Mismatch
	return v, true
}

// LastVerified returns the newest compared record.
func (d *Detector) LastVerified() (types.SyncRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.compared
}

// FirstDivergence returns the tick and components of the earliest
// mismatching tick compared so far. It can only move to an earlier
// tick, when a late report for that tick arrives.
func (d *Detector) FirstDivergence() (types.Tick, types.Mismatch, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.IsDesynchronized() {
		return 0, 0, false
	}
	return d.firstDivergence, d.firstMismatch, true
}
