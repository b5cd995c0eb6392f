package lockstepgrpc

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/types"
)

// Compile-time interface checks.
var (
	_ SyncServiceServer  = (*GRPCServer)(nil)
	_ lockstep.Publisher = (*Broadcaster)(nil)
)

// ErrNoStatus is returned by Status when the server has no reporter.
var ErrNoStatus = errors.New("lockstep grpc: no status reporter")

const (
	// DefaultBacklog is how many recent reports a Broadcaster keeps for
	// replay to late subscribers.
	DefaultBacklog = 256
	// DefaultSubscriberBuffer is the live queue depth per subscriber.
	DefaultSubscriberBuffer = 64
)

// Broadcaster is the server-side publisher. It keeps a bounded backlog
// and fans every report out to subscribers without blocking: a
// subscriber whose queue is full misses the report and is expected to
// treat the gap like packet loss.
type Broadcaster struct {
	mu      sync.Mutex
	backlog []types.FingerprintReport
	limit   int
	buffer  int
	nextID  uint64
	subs    map[uint64]chan types.FingerprintReport
	dropped uint64
}

// NewBroadcaster creates a broadcaster keeping up to backlog reports.
func NewBroadcaster(backlog int) *Broadcaster {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Broadcaster{
		limit:  backlog,
		buffer: DefaultSubscriberBuffer,
		subs:   make(map[uint64]chan types.FingerprintReport),
	}
}

// Publish implements lockstep.Publisher.
func (b *Broadcaster) Publish(_ context.Context, report types.FingerprintReport) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.backlog) == b.limit {
		copy(b.backlog, b.backlog[1:])
		b.backlog = b.backlog[:b.limit-1]
	}
	b.backlog = append(b.backlog, report)

	for _, ch := range b.subs {
		select {
		case ch <- report:
		default:
			b.dropped++
		}
	}
	return nil
}

// Subscribe registers a subscriber. Backlogged reports with Tick >=
// fromTick are queued ahead of live ones; fromTick 0 skips the backlog.
// The returned cancel func must be called to release the subscription.
func (b *Broadcaster) Subscribe(fromTick types.Tick) (<-chan types.FingerprintReport, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var replay []types.FingerprintReport
	if fromTick > 0 {
		for _, r := range b.backlog {
			if r.Tick >= fromTick {
				replay = append(replay, r)
			}
		}
	}
	ch := make(chan types.FingerprintReport, len(replay)+b.buffer)
	for _, r := range replay {
		ch <- r
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (b *Broadcaster) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// GRPCServer exposes a Broadcaster and a StatusReporter over gRPC.
type GRPCServer struct {
	bc     *Broadcaster
	status lockstep.StatusReporter
	log    zerolog.Logger
}

// ServerOption configures a GRPCServer.
type ServerOption func(*GRPCServer)

// WithStatusReporter sets the reporter answering Status RPCs.
func WithStatusReporter(r lockstep.StatusReporter) ServerOption {
	return func(s *GRPCServer) { s.status = r }
}

// WithLogger sets the server's logger.
func WithLogger(l zerolog.Logger) ServerOption {
	return func(s *GRPCServer) { s.log = l }
}

// NewGRPCServer creates a gRPC server streaming from bc.
func NewGRPCServer(bc *Broadcaster, opts ...ServerOption) *GRPCServer {
	s := &GRPCServer{bc: bc, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "grpc").Logger()
	return s
}

// Register adds the sync service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterSyncServiceServer(gs, s)
}

// Serve starts the gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// Broadcaster returns the publisher feeding subscribers.
func (s *GRPCServer) Broadcaster() *Broadcaster {
	return s.bc
}

// --- RPCs ---

func (s *GRPCServer) Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error {
	ch, cancel := s.bc.Subscribe(types.Tick(req.FromTick))
	defer cancel()

	s.log.Debug().Uint64("from_tick", req.FromTick).Msg("subscriber attached")
	defer s.log.Debug().Msg("subscriber detached")

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case report, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(&report); err != nil {
				return err
			}
		}
	}
}

func (s *GRPCServer) Status(_ context.Context, _ *StatusRequest) (*types.SyncStatus, error) {
	if s.status == nil {
		return nil, ErrNoStatus
	}
	st := s.status.Status()
	return &st, nil
}
