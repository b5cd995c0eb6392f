// Package overlay is an example debug display built on the status
// reporter. It lays a SyncStatus out as labelled text lines and flags
// the ones a display should draw in red.
//
// It also shows the optional DesyncObserver capability: wrapping a
// state source in Watch lets the overlay pop up the moment the session
// diverges, without polling.
package overlay

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/types"
)

// Compile-time interface checks.
var (
	_ lockstep.StateSource    = (*Watched)(nil)
	_ lockstep.DesyncObserver = (*Watched)(nil)
)

// Line is one row of the display.
type Line struct {
	Label string
	Value string
	// Alert rows are drawn in the warning colour.
	Alert bool
}

// Render lays out st. Seeds are eight uppercase hex digits, hashes
// sixteen lowercase ones.
func Render(st types.SyncStatus) []Line {
	state := "Synchronized"
	if st.IsDesynchronized {
		state = "Desynchronized"
	}
	lines := []Line{
		{Label: "Tick", Value: strconv.FormatUint(uint64(st.Tick), 10)},
		{Label: "Sync", Value: state, Alert: st.IsDesynchronized},
		{Label: "Client seed", Value: fmt.Sprintf("%08X", st.LocalSeed), Alert: st.SeedMismatch()},
		{Label: "Server seed", Value: fmt.Sprintf("%08X", st.RemoteSeed), Alert: st.SeedMismatch()},
		{Label: "Last checked tick", Value: lastChecked(st)},
		{Label: "Client hash", Value: st.LocalHash.String(), Alert: st.HashMismatch()},
		{Label: "Server hash", Value: st.RemoteHash.String(), Alert: st.HashMismatch()},
	}
	if st.IsDesynchronized {
		lines = append(lines, Line{
			Label: "First divergence",
			Value: strconv.FormatUint(uint64(st.FirstDivergenceTick), 10),
			Alert: true,
		})
	}
	if st.DeterminismFault {
		lines = append(lines, Line{Label: "Local determinism", Value: "FAULT", Alert: true})
	}
	return lines
}

func lastChecked(st types.SyncStatus) string {
	if !st.Compared {
		return "-"
	}
	return strconv.FormatUint(uint64(st.LastVerifiedTick), 10)
}

// Print writes the lines as aligned text, prefixing alert rows with
// "!".
func Print(w io.Writer, lines []Line) error {
	width := 0
	for _, l := range lines {
		width = max(width, len(l.Label)+1)
	}
	for _, l := range lines {
		mark := " "
		if l.Alert {
			mark = "!"
		}
		if _, err := fmt.Fprintf(w, "%s %-*s  %s\n", mark, width, l.Label+":", l.Value); err != nil {
			return err
		}
	}
	return nil
}

// Watched wraps a state source and remembers the status reported at
// the moment of divergence.
type Watched struct {
	lockstep.StateSource

	mu     sync.Mutex
	popped *types.SyncStatus
}

// Watch wraps src.
func Watch(src lockstep.StateSource) *Watched {
	return &Watched{StateSource: src}
}

func (w *Watched) Snapshot(ctx context.Context) (types.Snapshot, error) {
	return w.StateSource.Snapshot(ctx)
}

func (w *Watched) OnDesync(st types.SyncStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.popped = &st
}

// Popped returns the status captured when the session diverged.
func (w *Watched) Popped() (types.SyncStatus, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.popped == nil {
		return types.SyncStatus{}, false
	}
	return *w.popped, true
}
