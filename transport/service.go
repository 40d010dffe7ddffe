package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PeerServer is the server API of the ralock.v1.Peer service.
type PeerServer interface {
	Request(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	Reply(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Release(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error)
	GetNodeId(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	IsAlive(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
}

// PeerServiceDesc describes the ralock.v1.Peer service. Messages are
// well-known protobuf types, so no generated code is needed.
var PeerServiceDesc = grpc.ServiceDesc{
	ServiceName: PeerServiceName,
	HandlerType: (*PeerServer)(nil),
	Methods: []grpc.MethodDesc{
		UnaryMethod(MethodRequest, func(ctx context.Context, srv PeerServer, in *structpb.Struct) (proto.Message, error) {
			return srv.Request(ctx, in)
		}),
		UnaryMethod(MethodReply, func(ctx context.Context, srv PeerServer, in *structpb.Struct) (proto.Message, error) {
			return srv.Reply(ctx, in)
		}),
		UnaryMethod(MethodRelease, func(ctx context.Context, srv PeerServer, in *wrapperspb.Int64Value) (proto.Message, error) {
			return srv.Release(ctx, in)
		}),
		UnaryMethod(MethodGetNodeID, func(ctx context.Context, srv PeerServer, in *emptypb.Empty) (proto.Message, error) {
			return srv.GetNodeId(ctx, in)
		}),
		UnaryMethod(MethodIsAlive, func(ctx context.Context, srv PeerServer, in *emptypb.Empty) (proto.Message, error) {
			return srv.IsAlive(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ralock/v1/peer",
}

// UnaryMethod builds the descriptor of a unary method from its full name
// ("/service/Method") and a typed call. S is the service interface the
// registered implementation satisfies and Req the request message type.
func UnaryMethod[S any, Req any, PReq interface {
	*Req
	proto.Message
}](fullMethod string, call func(context.Context, S, PReq) (proto.Message, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: methodName(fullMethod),
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(ctx, srv.(S), in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(ctx, srv.(S), req.(PReq))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func methodName(fullMethod string) string {
	for i := len(fullMethod) - 1; i >= 0; i-- {
		if fullMethod[i] == '/' {
			return fullMethod[i+1:]
		}
	}
	return fullMethod
}
