package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/jathurchan/ralock/logger"
)

// Host owns a gRPC server and its listener. Services are registered before
// Start; once Stop begins every new call is rejected with codes.Aborted.
type Host struct {
	addr   string
	logger logger.Logger
	opts   ServerOptions

	server   *grpc.Server
	listener net.Listener
	mu       sync.Mutex // protects listener

	isShutdown atomic.Bool
	started    atomic.Bool
	stopOnce   sync.Once
	done       chan struct{}
}

// NewHost creates a host that will listen on addr.
func NewHost(addr string, log logger.Logger, opts ServerOptions) (*Host, error) {
	if addr == "" {
		return nil, errors.New("transport: listen address cannot be empty")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	opts = opts.WithDefaults()

	h := &Host{
		addr:   addr,
		logger: log.WithComponent("transport"),
		opts:   opts,
		done:   make(chan struct{}),
	}

	interceptors := []grpc.UnaryServerInterceptor{h.shutdownInterceptor}
	if opts.RateLimit > 0 {
		rl := NewTokenBucketRateLimiter(opts.RateLimit, opts.RateBurst, opts.RateWindow, h.logger)
		interceptors = append(interceptors, rateLimitInterceptor(rl, h.logger))
	}

	h.server = grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    opts.KeepaliveTime,
			Timeout: opts.KeepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             max(opts.KeepaliveTime/2, minPingInterval),
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(opts.MaxRecvMsgSize),
		grpc.ChainUnaryInterceptor(interceptors...),
	)
	return h, nil
}

// RegisterService adds a service implementation. It must be called before Start.
func (h *Host) RegisterService(desc *grpc.ServiceDesc, impl any) {
	h.server.RegisterService(desc, impl)
}

// Start binds the listener and serves in the background.
func (h *Host) Start() error {
	if h.isShutdown.Load() {
		return ErrShuttingDown
	}
	if !h.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	l, err := net.Listen("tcp", h.addr)
	if err != nil {
		h.started.Store(false)
		h.logger.Errorw("Failed to listen on address", "address", h.addr, "error", err)
		return fmt.Errorf("failed to listen on %s: %w", h.addr, err)
	}
	h.mu.Lock()
	h.listener = l
	h.mu.Unlock()

	actual := l.Addr().String()
	h.logger.Infow("gRPC server listening", "address", actual)

	go func() {
		defer close(h.done)
		if err := h.server.Serve(l); err != nil &&
			!errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, net.ErrClosed) {
			h.logger.Errorw("gRPC server encountered an error", "address", actual, "error", err)
			return
		}
		h.logger.Infow("gRPC server stopped serving", "address", actual)
	}()
	return nil
}

// Addr returns the bound address once started, or the configured one.
func (h *Host) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.addr
}

// Stop rejects new calls, waits for in-flight calls to finish and closes the
// listener. Only the first call has an effect.
func (h *Host) Stop() error {
	err := ErrShuttingDown
	h.stopOnce.Do(func() {
		err = nil
		h.isShutdown.Store(true)
		h.logger.Infow("Stopping gRPC server", "address", h.Addr())
		h.server.GracefulStop()
		if h.started.Load() {
			<-h.done
		}
		h.logger.Infow("gRPC server stopped")
	})
	return err
}

// ShuttingDown reports whether Stop was called.
func (h *Host) ShuttingDown() bool {
	return h.isShutdown.Load()
}

func (h *Host) shutdownInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if h.isShutdown.Load() {
		h.logger.Debugw("Rejecting RPC: server shutting down", "rpc", info.FullMethod)
		return nil, status.Error(codes.Aborted, "server shutting down")
	}
	return handler(ctx, req)
}
