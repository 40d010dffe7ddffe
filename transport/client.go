package transport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/mutex"
	"github.com/jathurchan/ralock/types"
)

// Client is a connection to one remote node's ralock.v1.Peer service.
// It implements mutex.PeerChannel.
type Client struct {
	addr   string
	conn   *grpc.ClientConn
	logger logger.Logger
	opts   ClientOptions
	closed atomic.Bool
}

var _ mutex.PeerChannel = (*Client)(nil)

// Dial creates a client for addr. The connection is established lazily on
// the first call.
func Dial(addr string, log logger.Logger, opts ClientOptions) (*Client, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	opts = opts.WithDefaults()
	log = log.WithComponent("transport").With("peer_addr", addr)

	conn, err := NewClientConn(addr, opts)
	if err != nil {
		log.Warnw("Failed to create client connection", "error", err)
		return nil, err
	}
	log.Debugw("Created peer client", "options", opts)
	return &Client{addr: addr, conn: conn, logger: log, opts: opts}, nil
}

// NewClientConn builds the gRPC connection used by every client in this
// module.
func NewClientConn(addr string, opts ClientOptions) (*grpc.ClientConn, error) {
	opts = opts.WithDefaults()
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                opts.KeepaliveTime,
			Timeout:             opts.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultServiceConfig(`{"loadBalancingPolicy":"pick_first"}`),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPeerUnavailable, addr, err)
	}
	return conn, nil
}

// Addr returns the remote address.
func (c *Client) Addr() string { return c.addr }

// Request asks the remote node for permission.
func (c *Client) Request(ctx context.Context, requesterID types.NodeID, ts types.Timestamp) (bool, error) {
	in, err := EncodeRequest(requesterID, ts)
	if err != nil {
		return false, err
	}
	out := &wrapperspb.BoolValue{}
	if err := c.invoke(ctx, MethodRequest, in, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// Reply delivers a grant to the remote node.
func (c *Client) Reply(ctx context.Context, replierID, requesterID types.NodeID) error {
	in, err := EncodeReply(replierID, requesterID)
	if err != nil {
		return err
	}
	return c.invoke(ctx, MethodReply, in, &emptypb.Empty{})
}

// Release tells the remote node that releaserID left its critical section.
func (c *Client) Release(ctx context.Context, releaserID types.NodeID) error {
	return c.invoke(ctx, MethodRelease, EncodeNodeID(releaserID), &emptypb.Empty{})
}

// NodeID asks the remote node for its id.
func (c *Client) NodeID(ctx context.Context) (types.NodeID, error) {
	out := &wrapperspb.Int64Value{}
	if err := c.invoke(ctx, MethodGetNodeID, &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return DecodeNodeID(out)
}

// IsAlive probes the remote node.
func (c *Client) IsAlive(ctx context.Context) (bool, error) {
	out := &wrapperspb.BoolValue{}
	if err := c.invoke(ctx, MethodIsAlive, &emptypb.Empty{}, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// Close releases the connection. Later calls fail with ErrClientClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.logger.Debugw("Closing peer client")
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out proto.Message) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		err = FromStatus(err)
		if !errors.Is(err, context.Canceled) {
			c.logger.Debugw("RPC failed", "rpc", methodName(method), "error", err)
		}
		return err
	}
	return nil
}
