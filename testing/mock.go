// Package lockstepstest provides test utilities for code built on the
// lockstep checker, including configurable mocks, a client/server
// harness, and a digest compliance test suite.
package lockstepstest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/types"
)

// Compile-time checks that the mocks satisfy their interfaces.
var (
	_ lockstep.StateSource    = (*MockSource)(nil)
	_ lockstep.DesyncObserver = (*MockSource)(nil)
	_ lockstep.Publisher      = (*MockPublisher)(nil)
)

// MockSource is a configurable state source. If SnapshotFn is nil it
// returns an empty snapshot whose tick increases on every call.
//
// MockSource also implements lockstep.DesyncObserver so sessions
// discover the capability; OnDesync calls are recorded.
type MockSource struct {
	mu sync.Mutex

	// Configurable handlers. If nil, defaults are used.
	SnapshotFn func(context.Context) (types.Snapshot, error)
	OnDesyncFn func(types.SyncStatus)

	// Call counters (atomic for concurrent access).
	SnapshotCalls atomic.Int64
	OnDesyncCalls atomic.Int64

	tick    types.Tick
	desyncs []types.SyncStatus
}

func (m *MockSource) Snapshot(ctx context.Context) (types.Snapshot, error) {
	m.SnapshotCalls.Add(1)
	if m.SnapshotFn != nil {
		return m.SnapshotFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tick++
	return types.Snapshot{Tick: m.tick}, nil
}

func (m *MockSource) OnDesync(st types.SyncStatus) {
	m.OnDesyncCalls.Add(1)
	m.mu.Lock()
	m.desyncs = append(m.desyncs, st)
	m.mu.Unlock()
	if m.OnDesyncFn != nil {
		m.OnDesyncFn(st)
	}
}

// Desyncs returns the statuses passed to OnDesync.
func (m *MockSource) Desyncs() []types.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.SyncStatus, len(m.desyncs))
	copy(out, m.desyncs)
	return out
}

// MockPublisher records every published report.
type MockPublisher struct {
	mu sync.Mutex

	// PublishFn, if set, is called after the report is recorded and
	// its error returned.
	PublishFn func(context.Context, types.FingerprintReport) error

	PublishCalls atomic.Int64

	reports []types.FingerprintReport
}

func (m *MockPublisher) Publish(ctx context.Context, report types.FingerprintReport) error {
	m.PublishCalls.Add(1)
	m.mu.Lock()
	m.reports = append(m.reports, report)
	m.mu.Unlock()
	if m.PublishFn != nil {
		return m.PublishFn(ctx, report)
	}
	return nil
}

// Reports returns a copy of everything published so far.
func (m *MockPublisher) Reports() []types.FingerprintReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.FingerprintReport, len(m.reports))
	copy(out, m.reports)
	return out
}

// MakeReport builds a report with the given tick, seed and a hash whose
// first byte is h.
func MakeReport(tick types.Tick, seed uint32, h byte) types.FingerprintReport {
	return types.FingerprintReport{
		Tick:        tick,
		Fingerprint: MakeFingerprint(seed, h),
	}
}

// MakeFingerprint builds a fingerprint whose hash's first byte is h.
func MakeFingerprint(seed uint32, h byte) types.Fingerprint {
	return types.Fingerprint{Seed: seed, Hash: types.Digest{h}}
}

// MakeSprites returns n guests with distinct, deterministic fields.
func MakeSprites(n int) []types.Sprite {
	sprites := make([]types.Sprite, n)
	for i := range sprites {
		id := uint32(i + 1)
		sprites[i] = types.Sprite{
			ID:        id,
			Kind:      types.SpriteGuest,
			X:         int32(id * 32),
			Y:         int32(id * 64),
			Z:         int32(id % 4),
			Direction: uint8(id % 4),
			State:     1,
			Energy:    uint8(100 + id),
			Happiness: 128,
			Hunger:    uint8(id),
			Thirst:    uint8(2 * id),
			Cash:      int32(500 + id),
		}
	}
	return sprites
}
