package lockstep

import (
	"errors"
	"fmt"

	"github.com/blockberries/lockstep/types"
)

// ErrSessionClosed is returned by session operations after Close.
var ErrSessionClosed = errors.New("lockstep: session closed")

// DuplicateTickMismatchError signals that the same tick was simulated
// twice locally and produced different fingerprints. The local
// simulation is not deterministic and nothing recorded for the
// session can be trusted afterwards.
type DuplicateTickMismatchError struct {
	Tick   types.Tick
	First  types.Fingerprint
	Second types.Fingerprint
}

func (e *DuplicateTickMismatchError) Error() string {
	return fmt.Sprintf("duplicate tick %d: seed %08X/%08X hash %s/%s",
		e.Tick, e.First.Seed, e.Second.Seed, e.First.Hash, e.Second.Hash)
}

// NewDuplicateTickMismatchError creates a new DuplicateTickMismatchError.
func NewDuplicateTickMismatchError(tick types.Tick, first, second types.Fingerprint) *DuplicateTickMismatchError {
	return &DuplicateTickMismatchError{Tick: tick, First: first, Second: second}
}

// IsDuplicateTickMismatch checks whether an error is a
// DuplicateTickMismatchError and returns it.
func IsDuplicateTickMismatch(err error) (*DuplicateTickMismatchError, bool) {
	var d *DuplicateTickMismatchError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
