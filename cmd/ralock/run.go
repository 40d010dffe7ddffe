package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jathurchan/ralock/discovery"
	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/metrics"
	"github.com/jathurchan/ralock/mutex"
	"github.com/jathurchan/ralock/sim"
	"github.com/jathurchan/ralock/transport"
	"github.com/jathurchan/ralock/types"
)

// node bundles everything one local participant owns.
type node struct {
	id          types.NodeID
	coordinator *mutex.Coordinator
	server      *transport.Server
	refresher   *discovery.Refresher
}

// cluster is the set of nodes hosted by this process.
type cluster struct {
	cfg      *Config
	logger   logger.Logger
	registry discovery.Registry
	promReg  *prometheus.Registry
	monitor  *sim.Monitor
	report   *sim.Report
	nodes    []*node
}

func run(ctx context.Context, cfg *Config, out io.Writer) error {
	log := logger.NewStdLogger(cfg.LogLevel)

	c := &cluster{
		cfg:     cfg,
		logger:  log,
		promReg: prometheus.NewRegistry(),
		monitor: sim.NewMonitor(),
		report:  sim.NewReport(),
	}

	var ids []types.NodeID
	switch cfg.Mode {
	case modeSingle:
		c.registry = discovery.NewMemoryRegistry(log)
		for i := range cfg.Nodes {
			ids = append(ids, types.NodeID(i))
		}
	case modeMulti:
		reg, err := discovery.DialRegistry(cfg.Registry, transport.ClientOptions{})
		if err != nil {
			return fmt.Errorf("connect to registry %s: %w", cfg.Registry, err)
		}
		defer reg.Close()
		c.registry = reg
		ids = []types.NodeID{types.NodeID(cfg.ID)}
	}

	defer c.shutdown()
	for _, id := range ids {
		if err := c.startNode(ctx, id); err != nil {
			return err
		}
	}

	stopMetrics := c.serveMetrics()
	defer stopMetrics()

	if cfg.Mode == modeMulti && cfg.StartupWait > 0 {
		log.Infow("Waiting for peers to join", "wait", cfg.StartupWait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.StartupWait):
		}
	}

	for _, n := range c.nodes {
		if err := n.refresher.RefreshOnce(ctx); err != nil {
			log.Warnw("Initial peer refresh failed", "node", n.id, "error", err)
		}
	}

	c.simulate(ctx)

	fmt.Fprintln(out, "\nOutcomes:")
	if _, err := c.report.WriteTo(out); err != nil {
		return err
	}
	if v := c.monitor.Violations(); len(v) > 0 {
		return fmt.Errorf("mutual exclusion violated %d times, first: %v and %v", len(v), v[0].Holder, v[0].Entrant)
	}
	fmt.Fprintf(out, "No mutual exclusion violations in %d entries.\n", len(c.monitor.Entries()))
	return nil
}

// startNode creates, serves, registers and connects one node.
func (c *cluster) startNode(ctx context.Context, id types.NodeID) error {
	m, err := metrics.New(metrics.ForNode(c.promReg, id))
	if err != nil {
		return err
	}
	coord, err := mutex.NewCoordinator(id, mutex.Dependencies{Logger: c.logger, Metrics: m}, c.cfg.Mutex)
	if err != nil {
		return err
	}

	srv, err := transport.NewServer(coord, c.cfg.ListenAddr(id), c.logger.WithNodeID(id), transport.DefaultServerOptions())
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	n := &node{id: id, coordinator: coord, server: srv}
	c.nodes = append(c.nodes, n)

	addr, err := advertiseAddr(c.cfg.Advertise, srv.Addr(), c.cfg.Mode == modeSingle)
	if err != nil {
		return err
	}
	if taken, err := c.registry.IsRegistered(ctx, id); err == nil && taken {
		c.logger.Warnw("Node id already registered, replacing binding", "node", id)
	}
	if err := c.registry.Register(ctx, id, addr); err != nil {
		return fmt.Errorf("register node %d: %w", id, err)
	}
	c.logger.Infow("Node registered", "node", id, "addr", addr)

	dialLog := c.logger.WithNodeID(id)
	dial := func(peerAddr string) (discovery.PeerConn, error) {
		return transport.Dial(peerAddr, dialLog, transport.ClientOptions{CallTimeout: c.cfg.Mutex.SendTimeout})
	}
	n.refresher, err = discovery.NewRefresher(id, c.registry, dial, coord, c.logger,
		discovery.RefresherOptions{Interval: c.cfg.RefreshInterval})
	return err
}

// simulate runs a driver and a refresher per node until ctx ends or the
// configured duration elapses.
func (c *cluster) simulate(ctx context.Context) {
	if c.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Duration)
		defer cancel()
	}

	c.logger.Infow("Starting simulation", "nodes", len(c.nodes))
	var wg sync.WaitGroup
	for i, n := range c.nodes {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = n.refresher.Run(ctx)
		}()
		go func(seed uint64) {
			defer wg.Done()
			d := &sim.Driver{
				Coordinator: n.coordinator,
				Options:     c.cfg.Load,
				Rand:        sim.NewSeededRand(seed),
				Monitor:     c.monitor,
				Report:      c.report,
				Logger:      c.logger,
			}
			_ = d.Run(ctx)
		}(uint64(time.Now().UnixNano()) + uint64(i))
	}
	wg.Wait()
	c.logger.Infow("Simulation stopped")
}

// shutdown unregisters every node, closes their peer channels and stops
// their servers.
func (c *cluster) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, n := range c.nodes {
		if c.registry != nil {
			if err := c.registry.Unregister(ctx, n.id); err != nil {
				c.logger.Debugw("Failed to unregister node", "node", n.id, "error", err)
			}
		}
		if n.refresher != nil {
			_ = n.refresher.Close()
		}
	}
	for _, n := range c.nodes {
		if err := n.server.Stop(); err != nil && !errors.Is(err, transport.ErrShuttingDown) {
			c.logger.Warnw("Failed to stop server", "node", n.id, "error", err)
		}
	}
	c.logger.Infow("Cleanup completed")
}

// serveMetrics exposes the Prometheus registry when an address is set.
func (c *cluster) serveMetrics() func() {
	if c.cfg.MetricsAddr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(c.promReg))
	srv := &http.Server{
		Addr:              c.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		c.logger.Infow("Serving metrics", "addr", c.cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Errorw("Metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// advertiseAddr builds the address peers dial. Single mode uses loopback;
// otherwise the override or the first non-loopback IPv4 address is used.
func advertiseAddr(override, listenAddr string, loopback bool) (string, error) {
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
	}
	host := override
	if host == "" {
		if loopback {
			host = "127.0.0.1"
		} else {
			host = localIPv4()
		}
	}
	return net.JoinHostPort(host, port), nil
}

func localIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}

