package lockstepgrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/lockstep/types"
)

const serviceName = "lockstep.v1.SyncService"

// SyncServiceServer is the server-side interface for the sync service.
type SyncServiceServer interface {
	Subscribe(*SubscribeRequest, grpc.ServerStream) error
	Status(context.Context, *StatusRequest) (*types.SyncStatus, error)
}

// RegisterSyncServiceServer registers the SyncServiceServer on a gRPC server.
func RegisterSyncServiceServer(s *grpc.Server, srv SyncServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// --- Handler functions ---

func handlerSubscribe(srv any, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(SyncServiceServer).Subscribe(req, stream)
}

func handlerStatus(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(StatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(SyncServiceServer).Status(ctx, req)
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: handlerStatus},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       handlerSubscribe,
			ServerStreams: true,
			ClientStreams: false,
		},
	},
	Metadata: "lockstep/v1/service.cram",
}
