package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/jathurchan/ralock/discovery"
	"github.com/jathurchan/ralock/mutex"
	"github.com/jathurchan/ralock/sim"
	"github.com/jathurchan/ralock/types"
)

const (
	modeSingle = "single"
	modeMulti  = "multi"

	defaultBasePort     = 2000
	defaultRegistryAddr = "localhost:1099"
	defaultStartupWait  = 3 * time.Second
)

// Config holds the settings of one ralock process.
type Config struct {
	// Mode is "single" (every node in this process) or "multi" (one node,
	// peers found through a remote registry).
	Mode string

	// Nodes is the cluster size in single mode.
	Nodes int

	// ID is the local node id in multi mode.
	ID int

	// Registry is the host:port of the registry service in multi mode.
	Registry string

	// Listen overrides the listen address in multi mode. Defaults to
	// ":<BasePort+ID>".
	Listen string

	// BasePort is the port of node 0; node i listens on BasePort+i.
	BasePort int

	// Advertise is the host other nodes use to reach this one. Defaults to
	// the first non-loopback IPv4 address.
	Advertise string

	Mutex mutex.Options
	Load  sim.Options

	// RefreshInterval is how often the peer list is rebuilt from the registry.
	RefreshInterval time.Duration

	// StartupWait delays the first request in multi mode so peers can join.
	StartupWait time.Duration

	// Duration stops the simulation after the given time. Zero runs until
	// interrupted.
	Duration time.Duration

	LogLevel    string
	MetricsAddr string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Mode:            modeSingle,
		Nodes:           3,
		ID:              -1,
		Registry:        defaultRegistryAddr,
		BasePort:        defaultBasePort,
		Mutex:           mutex.DefaultOptions(),
		Load:            sim.DefaultOptions(),
		RefreshInterval: discovery.DefaultRefreshInterval,
		StartupWait:     defaultStartupWait,
		LogLevel:        "info",
	}
}

// Validate checks the fields relevant to the selected mode.
func (c *Config) Validate() error {
	switch c.Mode {
	case modeSingle:
		if !sim.ValidNodeCount(c.Nodes) {
			return fmt.Errorf("node count must be between %d and %d, got %d", sim.MinNodes, sim.MaxNodes, c.Nodes)
		}
	case modeMulti:
		if !sim.ValidNodeID(types.NodeID(c.ID)) {
			return fmt.Errorf("node id must be between 0 and %d, got %d", sim.MaxNodes-1, c.ID)
		}
		if c.Registry == "" {
			return errors.New("registry address is required in multi mode")
		}
		if _, _, err := net.SplitHostPort(c.Registry); err != nil {
			return fmt.Errorf("invalid registry address %q: %w", c.Registry, err)
		}
	default:
		return fmt.Errorf("invalid mode %q (must be %s or %s)", c.Mode, modeSingle, modeMulti)
	}

	if c.BasePort <= 0 || c.BasePort+sim.MaxNodes > 65535 {
		return fmt.Errorf("base port out of range: %d", c.BasePort)
	}
	if err := c.Mutex.Validate(); err != nil {
		return err
	}
	if err := c.Load.Validate(); err != nil {
		return err
	}
	if c.RefreshInterval <= 0 {
		return errors.New("refresh interval must be positive")
	}
	if c.StartupWait < 0 || c.Duration < 0 {
		return errors.New("startup wait and duration cannot be negative")
	}
	return nil
}

// ListenAddr returns the address node id listens on.
func (c *Config) ListenAddr(id types.NodeID) string {
	if c.Mode == modeMulti && c.Listen != "" {
		return c.Listen
	}
	return ":" + strconv.Itoa(c.BasePort+int(id))
}

// parseConfig reads flags from args and returns the resulting Config.
func parseConfig(args []string, output io.Writer) (*Config, error) {
	cfg := DefaultConfig()

	fs := flag.NewFlagSet("ralock", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "Run mode: single or multi")
	fs.IntVar(&cfg.Nodes, "nodes", cfg.Nodes, "Number of nodes in single mode")
	fs.IntVar(&cfg.ID, "id", cfg.ID, "Node id in multi mode")
	fs.StringVar(&cfg.Registry, "registry", cfg.Registry, "Registry address (host:port) in multi mode")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "Listen address in multi mode (default :base-port+id)")
	fs.IntVar(&cfg.BasePort, "base-port", cfg.BasePort, "Port of node 0; node i listens on base-port+i")
	fs.StringVar(&cfg.Advertise, "advertise", cfg.Advertise, "Host advertised to peers (default first non-loopback IPv4)")

	fs.DurationVar(&cfg.Mutex.PollInterval, "poll-interval", cfg.Mutex.PollInterval,
		"How often the reply count is checked")
	fs.DurationVar(&cfg.Mutex.ResponseTimeout, "response-timeout", cfg.Mutex.ResponseTimeout,
		"How long to wait for every reply before giving up")
	fs.DurationVar(&cfg.Mutex.SendTimeout, "send-timeout", cfg.Mutex.SendTimeout,
		"Timeout of a single outbound call")

	fs.DurationVar(&cfg.Load.MinRequestDelay, "min-delay", cfg.Load.MinRequestDelay,
		"Minimum delay between entry attempts")
	fs.DurationVar(&cfg.Load.MaxRequestDelay, "max-delay", cfg.Load.MaxRequestDelay,
		"Maximum delay between entry attempts")
	fs.DurationVar(&cfg.Load.MinWorkTime, "min-work", cfg.Load.MinWorkTime,
		"Minimum time spent in the critical section")
	fs.DurationVar(&cfg.Load.MaxWorkTime, "max-work", cfg.Load.MaxWorkTime,
		"Maximum time spent in the critical section")

	fs.DurationVar(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval,
		"How often peers are rediscovered")
	fs.DurationVar(&cfg.StartupWait, "startup-wait", cfg.StartupWait,
		"Delay before the first request in multi mode")
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration,
		"Stop after this long (0 runs until interrupted)")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr,
		"Serve Prometheus metrics on this address (disabled if empty)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cfg, nil
}
