package lockstepgrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"

	"github.com/blockberries/lockstep/types"
)

// Client subscribes to a remote server's fingerprints over gRPC using
// cramberry serialization.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a remote sync service.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("lockstep client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// Status fetches the remote session's sync status.
func (c *Client) Status(ctx context.Context) (types.SyncStatus, error) {
	resp := new(types.SyncStatus)
	if err := c.cc.Invoke(ctx, fullMethod("Status"), &StatusRequest{}, resp); err != nil {
		return types.SyncStatus{}, err
	}
	return *resp, nil
}

// Subscription is an open fingerprint stream.
type Subscription struct {
	// C delivers reports in the order the server sent them. It is
	// closed when the stream ends.
	C <-chan types.FingerprintReport

	mu  sync.Mutex
	err error
}

// Err returns the error that ended the stream, or nil for a clean end
// or cancellation. Only meaningful after C is closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe opens a stream of the server's fingerprints starting at
// fromTick. The stream ends when ctx is done.
func (c *Client) Subscribe(ctx context.Context, fromTick types.Tick) (*Subscription, error) {
	stream, err := c.cc.NewStream(ctx, &grpc.StreamDesc{
		StreamName:    "Subscribe",
		ServerStreams: true,
	}, fullMethod("Subscribe"))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&SubscribeRequest{FromTick: uint64(fromTick)}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	ch := make(chan types.FingerprintReport)
	sub := &Subscription{C: ch}
	go func() {
		defer close(ch)
		for {
			report := new(types.FingerprintReport)
			if err := stream.RecvMsg(report); err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					sub.mu.Lock()
					sub.err = err
					sub.mu.Unlock()
				}
				return
			}
			select {
			case ch <- *report:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub, nil
}
