package transport

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jathurchan/ralock/mutex"
)

var (
	// ErrShuttingDown is returned when the remote server is stopping or the
	// local server was already stopped.
	ErrShuttingDown = errors.New("transport: server shutting down")

	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout = errors.New("transport: call timed out")

	// ErrPeerUnavailable is returned when the remote end cannot be reached.
	ErrPeerUnavailable = errors.New("transport: peer unavailable")

	// ErrRateLimited is returned when the remote server rejected the call
	// because its inbound rate limit was exceeded.
	ErrRateLimited = errors.New("transport: rate limited")

	// ErrInvalidPayload is returned when a message is missing a field or a
	// field does not hold an integral number.
	ErrInvalidPayload = errors.New("transport: invalid payload")

	// ErrInvalidArgument is returned when the remote handler rejected the
	// call's arguments.
	ErrInvalidArgument = errors.New("transport: invalid argument")

	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("transport: client closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("transport: server already started")
)

// FromStatus converts an error returned by a gRPC call into one of the
// package errors, keeping the original error wrapped for context.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return ErrTimeout
		case errors.Is(err, context.Canceled):
			return context.Canceled
		}
		return fmt.Errorf("network error: %w", err)
	}

	switch st.Code() {
	case codes.DeadlineExceeded:
		return ErrTimeout
	case codes.Canceled:
		return context.Canceled
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", ErrPeerUnavailable, st.Message())
	case codes.ResourceExhausted:
		return ErrRateLimited
	case codes.Aborted:
		return ErrShuttingDown
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	default:
		return err
	}
}

// ToStatus converts a handler error into a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrInvalidPayload),
		errors.Is(err, mutex.ErrSelfMessage),
		errors.Is(err, mutex.ErrInvalidNodeID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, ErrShuttingDown):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
