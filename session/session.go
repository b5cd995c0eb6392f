// Package session provides SyncSession, the explicitly owned object
// that fingerprints every simulated tick, collects the remote peer's
// fingerprints and reports divergence.
//
// A Session is created per multiplayer session and discarded at its
// end; there is no process-wide state. Step and Observe must be called
// from the simulation goroutine only. EnqueueRemote and Run may be
// called from network goroutines. Status may be called from anywhere.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/detector"
	"github.com/blockberries/lockstep/fingerprint"
	"github.com/blockberries/lockstep/ledger"
	"github.com/blockberries/lockstep/metrics"
	"github.com/blockberries/lockstep/types"
)

// Compile-time interface check.
var _ lockstep.StatusReporter = (*Session)(nil)

// Session ties the generator, ledger and detector together.
type Session struct {
	cfg    settings
	source lockstep.StateSource
	gen    *fingerprint.Generator
	ledger *ledger.Ledger
	det    *detector.Detector
	inbox  *inbox
	log    zerolog.Logger

	// Optional capability of the source (nil if not supported).
	observer lockstep.DesyncObserver

	// Owned by the simulation goroutine.
	tick        types.Tick
	hasTick     bool
	fault       bool
	desyncFired bool

	statusMu sync.RWMutex
	status   types.SyncStatus

	closed atomic.Bool
}

// New creates a session reading state from source.
func New(source lockstep.StateSource, opts ...Option) *Session {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.inboxSize <= 0 {
		cfg.inboxSize = cfg.capacity
	}

	s := &Session{
		cfg:    cfg,
		source: source,
		gen:    cfg.generator,
		ledger: ledger.New(cfg.capacity),
		det:    detector.New(),
		inbox:  newInbox(cfg.inboxSize),
		log: cfg.logger.With().
			Str("component", "session").
			Str("role", cfg.role.String()).
			Logger(),
	}
	s.observer, _ = source.(lockstep.DesyncObserver)
	return s
}

// Role returns the configured role.
func (s *Session) Role() lockstep.Role { return s.cfg.role }

// Ledger exposes the session's ledger for read-only inspection.
func (s *Session) Ledger() *ledger.Ledger { return s.ledger }

// Metrics returns the attached instruments, or nil.
func (s *Session) Metrics() *metrics.Session { return s.cfg.metrics }

// Step pulls the latest snapshot from the state source and observes it.
func (s *Session) Step(ctx context.Context) error {
	if s.closed.Load() {
		return lockstep.ErrSessionClosed
	}
	if s.source == nil {
		return errors.New("lockstep session: no state source")
	}
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("lockstep session: snapshot: %w", err)
	}
	return s.Observe(ctx, snap)
}

// Observe applies queued remote reports, fingerprints the snapshot,
// records it, compares whatever became complete and publishes the
// local fingerprint. The returned error wraps a
// *lockstep.DuplicateTickMismatchError when the tick was already
// recorded with a different value.
func (s *Session) Observe(ctx context.Context, snap types.Snapshot) error {
	if s.closed.Load() {
		return lockstep.ErrSessionClosed
	}
	s.applyInbox()
	defer s.refresh()

	fp, err := s.gen.Generate(snap)
	if err != nil {
		return fmt.Errorf("lockstep session: tick %d: %w", snap.Tick, err)
	}

	prev, _ := s.ledger.Get(snap.Tick)
	rec, err := s.ledger.RecordLocal(snap.Tick, fp)
	if err != nil {
		if dup, ok := lockstep.IsDuplicateTickMismatch(err); ok {
			s.fault = true
			s.cfg.metrics.DeterminismFault()
			s.log.Error().
				Uint64("tick", uint64(dup.Tick)).
				Str("first_hash", dup.First.Hash.String()).
				Str("second_hash", dup.Second.Hash.String()).
				Uint32("first_seed", dup.First.Seed).
				Uint32("second_seed", dup.Second.Seed).
				Msg("local simulation is not deterministic")
		}
		return fmt.Errorf("lockstep session: record tick %d: %w", snap.Tick, err)
	}
	if prev.HasLocal {
		// Same tick, same fingerprint: already counted and published.
		return nil
	}
	s.cfg.metrics.TickRecorded()
	if !s.hasTick || snap.Tick > s.tick {
		s.tick, s.hasTick = snap.Tick, true
	}
	s.compare(rec)

	if s.cfg.publisher != nil {
		report := types.FingerprintReport{
			Tick:        snap.Tick,
			Fingerprint: fp,
			SentAt:      types.TimeToTimestamp(s.cfg.now()),
		}
		if err := s.cfg.publisher.Publish(ctx, report); err != nil {
			s.log.Warn().Err(err).Uint64("tick", uint64(snap.Tick)).Msg("publish fingerprint failed")
		}
	}
	return nil
}

// Flush applies queued remote reports without simulating a tick.
// Like Step, it must be called from the simulation goroutine.
func (s *Session) Flush() {
	if s.closed.Load() {
		return
	}
	s.applyInbox()
	s.refresh()
}

// EnqueueRemote queues a report from the remote peer. It never blocks;
// the report is applied before the next local tick is recorded.
func (s *Session) EnqueueRemote(report types.FingerprintReport) error {
	if s.closed.Load() {
		return lockstep.ErrSessionClosed
	}
	if s.inbox.push(report) {
		s.cfg.metrics.RemoteDropped(metrics.DropOverflow)
		s.log.Debug().Uint64("tick", uint64(report.Tick)).Msg("inbox full, dropped oldest remote fingerprint")
	}
	return nil
}

// QueuedRemote returns the number of remote reports waiting for the
// next tick.
func (s *Session) QueuedRemote() int { return s.inbox.len() }

// Run enqueues every report from feed until the feed is closed or ctx
// is done.
func (s *Session) Run(ctx context.Context, feed <-chan types.FingerprintReport) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case report, ok := <-feed:
			if !ok {
				return nil
			}
			if err := s.EnqueueRemote(report); err != nil {
				return err
			}
		}
	}
}

// Status returns the last settled snapshot. Safe for concurrent use.
func (s *Session) Status() types.SyncStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Close discards the session. Stored fingerprints have no external
// effects, so nothing is flushed.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.inbox.drain()
	s.log.Debug().Msg("session closed")
	return nil
}

func (s *Session) applyInbox() {
	for _, report := range s.inbox.drain() {
		receivedAt := types.TimeToTimestamp(s.cfg.now())
		rec, err := s.ledger.RecordRemote(report, receivedAt)
		switch {
		case errors.Is(err, ledger.ErrEvicted):
			s.cfg.metrics.RemoteDropped(metrics.DropEvicted)
			s.log.Info().Uint64("tick", uint64(report.Tick)).Msg("dropping remote fingerprint for evicted tick")
			continue
		case errors.Is(err, ledger.ErrAhead):
			s.cfg.metrics.RemoteDropped(metrics.DropAhead)
			s.log.Info().
				Uint64("tick", uint64(report.Tick)).
				Uint64("local_tick", uint64(s.tick)).
				Msg("dropping remote fingerprint too far ahead of the simulation")
			continue
		case errors.Is(err, ledger.ErrRemoteConflict):
			s.cfg.metrics.RemoteDropped(metrics.DropConflict)
			s.log.Warn().
				Uint64("tick", uint64(report.Tick)).
				Str("kept_hash", rec.Remote.Hash.String()).
				Str("dropped_hash", report.Fingerprint.Hash.String()).
				Msg("conflicting remote fingerprint")
			continue
		case err != nil:
			s.log.Warn().Err(err).Uint64("tick", uint64(report.Tick)).Msg("remote fingerprint rejected")
			continue
		}
		s.cfg.metrics.RemoteReceived(receivedAt.Sub(report.SentAt))
		s.compare(rec)
	}
}

func (s *Session) compare(rec types.SyncRecord) {
	v, ok := s.det.Compare(rec)
	if !ok {
		return
	}
	last, _ := s.det.LastVerified()
	s.cfg.metrics.Compared(uint64(last.Tick), v.Mismatch.Has(types.MismatchSeed), v.Mismatch.Has(types.MismatchHash))
	if v.Tripped {
		s.cfg.metrics.Desynchronized()
		s.log.Warn().
			Uint64("tick", uint64(rec.Tick)).
			Stringer("mismatch", v.Mismatch).
			Str("local_seed", fmt.Sprintf("%08X", rec.Local.Seed)).
			Str("remote_seed", fmt.Sprintf("%08X", rec.Remote.Seed)).
			Str("local_hash", rec.Local.Hash.String()).
			Str("remote_hash", rec.Remote.Hash.String()).
			Msg("desynchronized")
	}
}

// refresh rebuilds the status snapshot and fires the desync callbacks
// the first time the detector is seen tripped.
func (s *Session) refresh() {
	st := types.SyncStatus{
		Tick:             s.tick,
		IsDesynchronized: s.det.IsDesynchronized(),
		DeterminismFault: s.fault,
	}
	if last, ok := s.det.LastVerified(); ok {
		st.Compared = true
		st.LastVerifiedTick = last.Tick
		st.LocalSeed = last.Local.Seed
		st.RemoteSeed = last.Remote.Seed
		st.LocalHash = last.Local.Hash
		st.RemoteHash = last.Remote.Hash
		st.Mismatch = last.Mismatch()
		st.RemoteLag = types.DurationFromGo(last.ReceivedAt.Sub(last.SentAt))
	}
	if tick, _, ok := s.det.FirstDivergence(); ok {
		st.FirstDivergenceTick = tick
	}
	if latest, ok := s.ledger.Latest(); ok {
		st.Pending = !latest.Complete()
	}

	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()

	if st.IsDesynchronized && !s.desyncFired {
		s.desyncFired = true
		if s.cfg.onDesync != nil {
			s.cfg.onDesync(st)
		}
		if s.observer != nil {
			s.observer.OnDesync(st)
		}
	}
}
