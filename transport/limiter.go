package transport

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jathurchan/ralock/logger"
)

// RateLimiter decides whether an inbound call may proceed.
type RateLimiter interface {
	Allow() bool
	Wait(ctx context.Context) error
}

// TokenBucketRateLimiter limits calls with a token bucket.
type TokenBucketRateLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketRateLimiter allows maxRequests per window with the given
// burst. A non-positive window disables limiting.
func NewTokenBucketRateLimiter(maxRequests, burst int, window time.Duration, log logger.Logger) *TokenBucketRateLimiter {
	limit := rate.Inf
	if window > 0 {
		limit = rate.Limit(float64(maxRequests) / window.Seconds())
	} else {
		log.Warnw("Rate limit window is not positive, disabling rate limiter", "window", window)
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketRateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Allow reports whether a call can proceed immediately.
func (rl *TokenBucketRateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Wait blocks until a call can proceed or ctx ends.
func (rl *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// rateLimitInterceptor rejects calls the limiter does not allow.
func rateLimitInterceptor(rl RateLimiter, log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !rl.Allow() {
			log.Warnw("Rejecting RPC: rate limit exceeded", "rpc", info.FullMethod)
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}
