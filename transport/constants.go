package transport

import "time"

const (
	// DefaultCallTimeout bounds a single outbound RPC when the caller's
	// context carries no earlier deadline.
	DefaultCallTimeout = 2 * time.Second

	// DefaultMaxRecvMsgSize is the largest message the server accepts.
	DefaultMaxRecvMsgSize = 1 << 20

	// DefaultKeepaliveTime is the idle ping interval for clients and servers.
	DefaultKeepaliveTime = 10 * time.Second

	// DefaultKeepaliveTimeout is how long a ping may go unacknowledged.
	DefaultKeepaliveTimeout = 3 * time.Second

	// DefaultRateLimit is the number of inbound calls allowed per DefaultRateWindow.
	DefaultRateLimit = 1000

	// DefaultRateBurst is the token bucket burst size.
	DefaultRateBurst = 100

	// DefaultRateWindow is the window DefaultRateLimit applies to.
	DefaultRateWindow = time.Second

	// minPingInterval is the floor of the keepalive enforcement policy.
	minPingInterval = time.Second
)

// Full method names of the ralock.v1.Peer service.
const (
	PeerServiceName = "ralock.v1.Peer"

	MethodRequest   = "/ralock.v1.Peer/Request"
	MethodReply     = "/ralock.v1.Peer/Reply"
	MethodRelease   = "/ralock.v1.Peer/Release"
	MethodGetNodeID = "/ralock.v1.Peer/GetNodeId"
	MethodIsAlive   = "/ralock.v1.Peer/IsAlive"
)

// Payload field names.
const (
	fieldRequesterID = "requester_id"
	fieldReplierID   = "replier_id"
	fieldTimestamp   = "timestamp"
)
