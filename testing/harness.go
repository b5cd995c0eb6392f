package lockstepstest

import (
	"context"
	"testing"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/local"
	"github.com/blockberries/lockstep/session"
	"github.com/blockberries/lockstep/sim"
	"github.com/blockberries/lockstep/types"
)

// Harness runs a server and a client park in lock step, connected by
// an in-process loopback, so tests can drive both sides one tick at a
// time and inspect the client's sync status.
type Harness struct {
	t *testing.T

	ServerPark *sim.Park
	ClientPark *sim.Park
	Server     *session.Session
	Client     *session.Session
	Link       *local.Loopback
}

// NewHarness creates a harness whose parks share seed and guest count.
// Options apply to the client session; link options to the loopback.
func NewHarness(t *testing.T, seed uint32, guests int, linkOpts []local.Option, opts ...session.Option) *Harness {
	t.Helper()
	h := &Harness{
		t:          t,
		ServerPark: sim.NewPark(seed, guests),
		ClientPark: sim.NewPark(seed, guests),
		Link:       local.NewLoopback(linkOpts...),
	}
	h.Server = session.New(h.ServerPark,
		session.WithRole(lockstep.RoleServer),
		session.WithPublisher(h.Link),
	)
	h.Client = session.New(h.ClientPark, append([]session.Option{session.WithRole(lockstep.RoleClient)}, opts...)...)
	h.Link.Attach(h.Client)
	t.Cleanup(func() {
		h.Server.Close()
		h.Client.Close()
	})
	return h
}

// Step advances both parks one tick. The server publishes first, so
// the client sees the server's fingerprint before recording its own.
func (h *Harness) Step() types.SyncStatus {
	h.t.Helper()
	ctx := context.Background()
	h.ServerPark.Advance()
	if err := h.Server.Step(ctx); err != nil {
		h.t.Fatalf("server step %d failed: %v", h.ServerPark.Tick(), err)
	}
	h.ClientPark.Advance()
	if err := h.Client.Step(ctx); err != nil {
		h.t.Fatalf("client step %d failed: %v", h.ClientPark.Tick(), err)
	}
	return h.Client.Status()
}

// Run steps n ticks and returns the final client status.
func (h *Harness) Run(n int) types.SyncStatus {
	h.t.Helper()
	var st types.SyncStatus
	for i := 0; i < n; i++ {
		st = h.Step()
	}
	return st
}

// Drain releases any reports held by the link and applies them on the
// client.
func (h *Harness) Drain() types.SyncStatus {
	h.t.Helper()
	if err := h.Link.Flush(); err != nil {
		h.t.Fatalf("link flush failed: %v", err)
	}
	h.Client.Flush()
	return h.Client.Status()
}

// RequireSynchronized fails the test if the client reports a desync.
func (h *Harness) RequireSynchronized() {
	h.t.Helper()
	if st := h.Client.Status(); st.IsDesynchronized {
		h.t.Fatalf("client desynchronized at tick %d (first divergence %d, mismatch %s)",
			st.Tick, st.FirstDivergenceTick, st.Mismatch)
	}
}

// RequireDesynchronized fails the test unless the client reports a
// desync that first occurred at tick.
func (h *Harness) RequireDesynchronized(tick types.Tick) {
	h.t.Helper()
	st := h.Client.Status()
	if !st.IsDesynchronized {
		h.t.Fatalf("client still synchronized at tick %d", st.Tick)
	}
	if st.FirstDivergenceTick != tick {
		h.t.Fatalf("first divergence at %d, want %d", st.FirstDivergenceTick, tick)
	}
}
