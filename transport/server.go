package transport

import (
	"context"
	"errors"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/mutex"
)

// Server exposes a mutex.PeerChannel, usually a *mutex.Coordinator, as the
// ralock.v1.Peer gRPC service.
type Server struct {
	*Host
}

// NewServer creates a server for handler listening on addr. Call Start to
// begin serving.
func NewServer(handler mutex.PeerChannel, addr string, log logger.Logger, opts ServerOptions) (*Server, error) {
	if handler == nil {
		return nil, errors.New("transport: handler cannot be nil")
	}
	host, err := NewHost(addr, log, opts)
	if err != nil {
		return nil, err
	}
	host.RegisterService(&PeerServiceDesc, &peerServer{handler: handler, logger: host.logger.WithComponent("peer-service")})
	return &Server{Host: host}, nil
}

// peerServer adapts the wire messages to a mutex.PeerChannel.
type peerServer struct {
	handler mutex.PeerChannel
	logger  logger.Logger
}

var _ PeerServer = (*peerServer)(nil)

func (p *peerServer) Request(ctx context.Context, in *structpb.Struct) (*wrapperspb.BoolValue, error) {
	requesterID, ts, err := DecodeRequest(in)
	if err != nil {
		p.logger.Warnw("Malformed request", "error", err)
		return nil, ToStatus(err)
	}
	p.logger.Debugw("Received RPC", "rpc", "Request", "from", requesterID, "request_ts", ts)

	granted, err := p.handler.Request(ctx, requesterID, ts)
	if err != nil {
		return nil, ToStatus(err)
	}
	return wrapperspb.Bool(granted), nil
}

func (p *peerServer) Reply(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	replierID, requesterID, err := DecodeReply(in)
	if err != nil {
		p.logger.Warnw("Malformed reply", "error", err)
		return nil, ToStatus(err)
	}
	p.logger.Debugw("Received RPC", "rpc", "Reply", "from", replierID, "requester", requesterID)

	if err := p.handler.Reply(ctx, replierID, requesterID); err != nil {
		return nil, ToStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (p *peerServer) Release(ctx context.Context, in *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	releaserID, err := DecodeNodeID(in)
	if err != nil {
		p.logger.Warnw("Malformed release", "error", err)
		return nil, ToStatus(err)
	}
	p.logger.Debugw("Received RPC", "rpc", "Release", "from", releaserID)

	if err := p.handler.Release(ctx, releaserID); err != nil {
		return nil, ToStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (p *peerServer) GetNodeId(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	id, err := p.handler.NodeID(ctx)
	if err != nil {
		return nil, ToStatus(err)
	}
	return EncodeNodeID(id), nil
}

func (p *peerServer) IsAlive(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	alive, err := p.handler.IsAlive(ctx)
	if err != nil {
		return nil, ToStatus(err)
	}
	return wrapperspb.Bool(alive), nil
}
