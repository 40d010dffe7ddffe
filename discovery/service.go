package discovery

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/transport"
	"github.com/jathurchan/ralock/types"
)

// Full method names of the ralock.v1.Registry service.
const (
	RegistryServiceName = "ralock.v1.Registry"

	MethodRegister     = "/ralock.v1.Registry/Register"
	MethodUnregister   = "/ralock.v1.Registry/Unregister"
	MethodLookup       = "/ralock.v1.Registry/Lookup"
	MethodList         = "/ralock.v1.Registry/List"
	MethodIsRegistered = "/ralock.v1.Registry/IsRegistered"
)

const (
	fieldNodeID = "node_id"
	fieldAddr   = "addr"
)

// RegistryServiceServer is the server API of the ralock.v1.Registry service.
type RegistryServiceServer interface {
	Register(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Unregister(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error)
	Lookup(context.Context, *wrapperspb.Int64Value) (*wrapperspb.StringValue, error)
	List(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	IsRegistered(context.Context, *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error)
}

// RegistryServiceDesc describes the ralock.v1.Registry service.
var RegistryServiceDesc = grpc.ServiceDesc{
	ServiceName: RegistryServiceName,
	HandlerType: (*RegistryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		transport.UnaryMethod(MethodRegister, func(ctx context.Context, srv RegistryServiceServer, in *structpb.Struct) (proto.Message, error) {
			return srv.Register(ctx, in)
		}),
		transport.UnaryMethod(MethodUnregister, func(ctx context.Context, srv RegistryServiceServer, in *wrapperspb.Int64Value) (proto.Message, error) {
			return srv.Unregister(ctx, in)
		}),
		transport.UnaryMethod(MethodLookup, func(ctx context.Context, srv RegistryServiceServer, in *wrapperspb.Int64Value) (proto.Message, error) {
			return srv.Lookup(ctx, in)
		}),
		transport.UnaryMethod(MethodList, func(ctx context.Context, srv RegistryServiceServer, in *emptypb.Empty) (proto.Message, error) {
			return srv.List(ctx, in)
		}),
		transport.UnaryMethod(MethodIsRegistered, func(ctx context.Context, srv RegistryServiceServer, in *wrapperspb.Int64Value) (proto.Message, error) {
			return srv.IsRegistered(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ralock/v1/registry",
}

// registryService serves a Registry over gRPC.
type registryService struct {
	registry Registry
	logger   logger.Logger
}

var _ RegistryServiceServer = (*registryService)(nil)

func (s *registryService) Register(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	n, err := transport.IntField(in, fieldNodeID)
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	id, err := transport.DecodeNodeID(wrapperspb.Int64(n))
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	addr := in.GetFields()[fieldAddr].GetStringValue()

	if err := s.registry.Register(ctx, id, addr); err != nil {
		return nil, registryStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *registryService) Unregister(ctx context.Context, in *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	id, err := transport.DecodeNodeID(in)
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	if err := s.registry.Unregister(ctx, id); err != nil {
		return nil, registryStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *registryService) Lookup(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.StringValue, error) {
	id, err := transport.DecodeNodeID(in)
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	addr, ok, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return nil, registryStatus(err)
	}
	if !ok {
		return nil, status.Errorf(codes.NotFound, "node %d not registered", id)
	}
	return wrapperspb.String(addr), nil
}

func (s *registryService) List(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	ids, err := s.registry.List(ctx)
	if err != nil {
		return nil, registryStatus(err)
	}
	values := make([]*structpb.Value, len(ids))
	for i, id := range ids {
		values[i] = structpb.NewNumberValue(float64(id))
	}
	return &structpb.ListValue{Values: values}, nil
}

func (s *registryService) IsRegistered(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error) {
	id, err := transport.DecodeNodeID(in)
	if err != nil {
		return nil, transport.ToStatus(err)
	}
	ok, err := s.registry.IsRegistered(ctx, id)
	if err != nil {
		return nil, registryStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func registryStatus(err error) error {
	if errors.Is(err, ErrInvalidAddress) || errors.Is(err, ErrInvalidNodeID) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return transport.ToStatus(err)
}

// RegistryServer hosts a Registry as the ralock.v1.Registry gRPC service.
type RegistryServer struct {
	*transport.Host
}

// NewRegistryServer creates a server for reg listening on addr. Call Start
// to begin serving.
func NewRegistryServer(reg Registry, addr string, log logger.Logger, opts transport.ServerOptions) (*RegistryServer, error) {
	if reg == nil {
		return nil, errors.New("discovery: registry cannot be nil")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	host, err := transport.NewHost(addr, log, opts)
	if err != nil {
		return nil, err
	}
	host.RegisterService(&RegistryServiceDesc, &registryService{
		registry: reg,
		logger:   log.WithComponent("registry-service"),
	})
	return &RegistryServer{Host: host}, nil
}

// RegistryClient is a Registry backed by a remote ralock.v1.Registry service.
type RegistryClient struct {
	addr string
	conn *grpc.ClientConn
	opts transport.ClientOptions
}

var _ Registry = (*RegistryClient)(nil)

// DialRegistry connects to the registry service at addr.
func DialRegistry(addr string, opts transport.ClientOptions) (*RegistryClient, error) {
	opts = opts.WithDefaults()
	conn, err := transport.NewClientConn(addr, opts)
	if err != nil {
		return nil, err
	}
	return &RegistryClient{addr: addr, conn: conn, opts: opts}, nil
}

// Addr returns the registry address.
func (c *RegistryClient) Addr() string { return c.addr }

func (c *RegistryClient) Register(ctx context.Context, id types.NodeID, addr string) error {
	if err := validateBinding(id, addr); err != nil {
		return err
	}
	in, err := structpb.NewStruct(map[string]any{
		fieldNodeID: int64(id),
		fieldAddr:   addr,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrInvalidPayload, err)
	}
	return c.invoke(ctx, MethodRegister, in, &emptypb.Empty{})
}

func (c *RegistryClient) Unregister(ctx context.Context, id types.NodeID) error {
	return c.invoke(ctx, MethodUnregister, transport.EncodeNodeID(id), &emptypb.Empty{})
}

func (c *RegistryClient) Lookup(ctx context.Context, id types.NodeID) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	out := &wrapperspb.StringValue{}
	err := c.conn.Invoke(ctx, MethodLookup, transport.EncodeNodeID(id), out)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, transport.FromStatus(err)
	}
	return out.GetValue(), true, nil
}

func (c *RegistryClient) List(ctx context.Context) ([]types.NodeID, error) {
	out := &structpb.ListValue{}
	if err := c.invoke(ctx, MethodList, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	ids := make([]types.NodeID, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		n := v.GetNumberValue()
		if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
			return nil, fmt.Errorf("%w: node id %v", transport.ErrInvalidPayload, n)
		}
		ids = append(ids, types.NodeID(n))
	}
	return ids, nil
}

func (c *RegistryClient) IsRegistered(ctx context.Context, id types.NodeID) (bool, error) {
	out := &wrapperspb.BoolValue{}
	if err := c.invoke(ctx, MethodIsRegistered, transport.EncodeNodeID(id), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// Close releases the connection.
func (c *RegistryClient) Close() error {
	return c.conn.Close()
}

func (c *RegistryClient) invoke(ctx context.Context, method string, in, out proto.Message) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()
	return transport.FromStatus(c.conn.Invoke(ctx, method, in, out))
}
