// Package local provides an in-process transport between sessions.
//
// For a server and client compiled into the same binary (tests, replay
// tools, split-screen debugging) the Loopback delivers fingerprints
// straight into the receiving session's inbox with no serialization.
// It can hold back a bounded number of reports and release them out of
// order, to exercise the ledger the way a jittery network would.
package local

import (
	"context"
	"math/rand"
	"sync"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/types"
)

// Compile-time interface check.
var _ lockstep.Publisher = (*Loopback)(nil)

// Sink receives reports. *session.Session satisfies it.
type Sink interface {
	EnqueueRemote(report types.FingerprintReport) error
}

// Option configures a Loopback.
type Option func(*Loopback)

// WithReorder holds up to window reports and releases them in a
// pseudo-random order drawn from seed.
func WithReorder(window int, seed int64) Option {
	return func(l *Loopback) {
		l.window = window
		l.rng = rand.New(rand.NewSource(seed))
	}
}

// WithDropEvery drops every nth published report. Zero disables.
func WithDropEvery(n int) Option {
	return func(l *Loopback) { l.dropEvery = n }
}

// Loopback fans reports out to attached sinks.
type Loopback struct {
	mu         sync.Mutex
	sinks      []Sink
	held       []types.FingerprintReport
	window     int
	rng        *rand.Rand
	dropEvery  int
	published  int
	overflowed int
}

// NewLoopback creates an in-order, lossless loopback unless options
// say otherwise.
func NewLoopback(opts ...Option) *Loopback {
	l := &Loopback{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Attach adds a receiving sink.
func (l *Loopback) Attach(sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

// Publish implements lockstep.Publisher.
func (l *Loopback) Publish(_ context.Context, report types.FingerprintReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.published++
	if l.dropEvery > 0 && l.published%l.dropEvery == 0 {
		return nil
	}
	if l.window <= 0 {
		return l.deliverLocked(report)
	}
	l.held = append(l.held, report)
	if len(l.held) < l.window {
		return nil
	}
	i := l.rng.Intn(len(l.held))
	next := l.held[i]
	l.held = append(l.held[:i], l.held[i+1:]...)
	return l.deliverLocked(next)
}

// Flush delivers every held report, in random order when reordering.
func (l *Loopback) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rng != nil {
		l.rng.Shuffle(len(l.held), func(i, j int) { l.held[i], l.held[j] = l.held[j], l.held[i] })
	}
	held := l.held
	l.held = nil
	for _, r := range held {
		if err := l.deliverLocked(r); err != nil {
			return err
		}
	}
	return nil
}

// Held returns the number of reports waiting to be released.
func (l *Loopback) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// Overflowed returns how many reports a Feed dropped because its
// reader was behind.
func (l *Loopback) Overflowed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.overflowed
}

func (l *Loopback) deliverLocked(report types.FingerprintReport) error {
	for _, sink := range l.sinks {
		if err := sink.EnqueueRemote(report); err != nil {
			return err
		}
	}
	return nil
}

// Feed adapts the loopback into a channel, for code that consumes a
// transport feed via session.Run. The channel has the given buffer
// and is closed when ctx is done. Publish never waits on the reader:
// a report that finds the buffer full is dropped and counted by
// Overflowed.
func Feed(ctx context.Context, l *Loopback, buffer int) <-chan types.FingerprintReport {
	ch := make(chan types.FingerprintReport, buffer)
	l.Attach(chanSink{ctx: ctx, ch: ch, l: l})
	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		close(ch)
	}()
	return ch
}

type chanSink struct {
	ctx context.Context
	ch  chan types.FingerprintReport
	l   *Loopback
}

// EnqueueRemote runs under the loopback lock, which is also what Feed
// closes ch under once ctx is done.
func (c chanSink) EnqueueRemote(report types.FingerprintReport) error {
	if c.ctx.Err() != nil {
		return nil
	}
	select {
	case c.ch <- report:
	default:
		c.l.overflowed++
	}
	return nil
}
