package transport

import (
	"fmt"
	"time"
)

// ServerOptions configures a Host.
type ServerOptions struct {
	MaxRecvMsgSize   int           // Maximum gRPC receive message size in bytes
	KeepaliveTime    time.Duration // Ping interval when idle
	KeepaliveTimeout time.Duration // Timeout for waiting for ping ack

	// RateLimit is the number of inbound calls allowed per RateWindow.
	// Zero disables rate limiting.
	RateLimit  int
	RateBurst  int
	RateWindow time.Duration
}

// DefaultServerOptions returns the default server configuration.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		MaxRecvMsgSize:   DefaultMaxRecvMsgSize,
		KeepaliveTime:    DefaultKeepaliveTime,
		KeepaliveTimeout: DefaultKeepaliveTimeout,
		RateLimit:        DefaultRateLimit,
		RateBurst:        DefaultRateBurst,
		RateWindow:       DefaultRateWindow,
	}
}

// WithDefaults fills zero fields from DefaultServerOptions. RateLimit is left
// as given so that zero keeps the limiter disabled.
func (o ServerOptions) WithDefaults() ServerOptions {
	d := DefaultServerOptions()
	if o.MaxRecvMsgSize <= 0 {
		o.MaxRecvMsgSize = d.MaxRecvMsgSize
	}
	if o.KeepaliveTime <= 0 {
		o.KeepaliveTime = d.KeepaliveTime
	}
	if o.KeepaliveTimeout <= 0 {
		o.KeepaliveTimeout = d.KeepaliveTimeout
	}
	if o.RateLimit > 0 {
		if o.RateBurst <= 0 {
			o.RateBurst = d.RateBurst
		}
		if o.RateWindow <= 0 {
			o.RateWindow = d.RateWindow
		}
	}
	return o
}

// ClientOptions configures a Client.
type ClientOptions struct {
	CallTimeout      time.Duration // Upper bound for a single call
	KeepaliveTime    time.Duration // Ping interval when idle
	KeepaliveTimeout time.Duration // Timeout for waiting for ping ack
}

// DefaultClientOptions returns the default client configuration.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		CallTimeout:      DefaultCallTimeout,
		KeepaliveTime:    DefaultKeepaliveTime,
		KeepaliveTimeout: DefaultKeepaliveTimeout,
	}
}

// WithDefaults fills zero fields from DefaultClientOptions.
func (o ClientOptions) WithDefaults() ClientOptions {
	d := DefaultClientOptions()
	if o.CallTimeout <= 0 {
		o.CallTimeout = d.CallTimeout
	}
	if o.KeepaliveTime <= 0 {
		o.KeepaliveTime = d.KeepaliveTime
	}
	if o.KeepaliveTimeout <= 0 {
		o.KeepaliveTimeout = d.KeepaliveTimeout
	}
	return o
}

func (o ClientOptions) String() string {
	return fmt.Sprintf("call_timeout=%v keepalive=%v/%v", o.CallTimeout, o.KeepaliveTime, o.KeepaliveTimeout)
}
