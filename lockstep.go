// Package lockstep defines the boundary between a deterministic
// lock-step simulation and its synchronization checker.
//
// A checker fingerprints every simulated tick, exchanges fingerprints
// with the remote peer, and reports the first divergence. The
// [StateSource] interface is required. [Publisher] and
// [StatusReporter] are the outward-facing collaborators; optional
// behaviour of a StateSource is discovered via Go type assertion.
package lockstep

import (
	"context"

	"github.com/blockberries/lockstep/types"
)

// Role selects which side of a session the checker runs on.
type Role uint8

const (
	// RoleServer is authoritative: it publishes its fingerprints and
	// never compares.
	RoleServer Role = iota + 1
	// RoleClient compares its own fingerprints against the server's.
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// StateSource is the simulation engine as seen by the checker.
//
// The checker guarantees the following call order:
//  1. Snapshot is called from the simulation goroutine only, once the
//     tick it describes has been fully simulated.
//  2. Snapshot is never called concurrently with itself.
type StateSource interface {
	// Snapshot returns the authoritative state at the end of the most
	// recent tick. The returned sprites are copied by the caller
	// before use; the source may reuse its buffers afterwards.
	//
	// Snapshot MUST be deterministic: two peers that simulated the
	// same inputs must return identical snapshots.
	Snapshot(ctx context.Context) (types.Snapshot, error)
}

// DesyncObserver is implemented by state sources that want to be told,
// exactly once per session, that the session has diverged. The call is
// made from the simulation goroutine after the status has been updated.
type DesyncObserver interface {
	OnDesync(status types.SyncStatus)
}

// Publisher delivers local fingerprints to remote peers.
//
// Publish MUST NOT block on the network: implementations queue the
// report and return. Delivery order is not guaranteed.
type Publisher interface {
	Publish(ctx context.Context, report types.FingerprintReport) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, report types.FingerprintReport) error

// Publish calls f. A nil PublisherFunc discards the report.
func (f PublisherFunc) Publish(ctx context.Context, report types.FingerprintReport) error {
	if f == nil {
		return nil
	}
	return f(ctx, report)
}

// StatusReporter is the read-only query surface exposed to debug
// displays.
//
// Status MUST be side-effect free and safe for concurrent use at any
// frequency (typically once per rendered frame).
type StatusReporter interface {
	Status() types.SyncStatus
}

// StatusReporterFunc adapts a function to the StatusReporter interface.
type StatusReporterFunc func() types.SyncStatus

// Status calls f.
func (f StatusReporterFunc) Status() types.SyncStatus { return f() }
