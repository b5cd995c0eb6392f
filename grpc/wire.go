// Package lockstepgrpc provides the gRPC transport for lockstep
// fingerprints.
//
// No protobuf code generation is required. Messages are lockstep/types
// values and the small request structs below, serialized with
// cramberry through their struct tags.
package lockstepgrpc

import (
	"errors"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"google.golang.org/grpc/encoding"
)

const codecName = "cramberry"

var _ encoding.Codec = CramberryCodec{}

// CramberryCodec carries sync messages in cramberry's deterministic
// binary encoding. Clients force it per call; servers find it by name
// in the registry.
type CramberryCodec struct{}

func (CramberryCodec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, errors.New("cramberry marshal: nil message")
	}
	data, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cramberry marshal %T: %w", v, err)
	}
	return data, nil
}

func (CramberryCodec) Unmarshal(data []byte, v any) error {
	if err := cramberry.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cramberry unmarshal %T: %w", v, err)
	}
	return nil
}

func (CramberryCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(CramberryCodec{})
}

// SubscribeRequest opens a fingerprint stream. Reports the server
// still holds with Tick >= FromTick are replayed first; zero means
// live reports only.
type SubscribeRequest struct {
	FromTick uint64 `cramberry:"1"`
}

// StatusRequest is the (empty) request for SyncService.Status.
type StatusRequest struct{}
