package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// KeyFunc extracts a rate limit key from a request.
type KeyFunc func(ctx context.Context, payload any) string

// RateLimitOption configures the rate limiter.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	keyFunc KeyFunc
	logger  Logger
}

// WithRateLimitKeyFunc sets a function to extract a rate limit key from requests.
// This allows per-client or per-method rate limiting.
func WithRateLimitKeyFunc(fn KeyFunc) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.keyFunc = fn
	}
}

// WithRateLimitLogger sets the logger for rate limit events.
func WithRateLimitLogger(l Logger) RateLimitOption {
	return func(o *rateLimitConfig) {
		o.logger = l
	}
}

// RateLimit returns middleware that limits request rate using a token bucket algorithm.
// The rate is specified as requests per second and burst allows short bursts
// above it. Rejected requests get an execution error; the id is echoed
// only when the handler would have echoed it.
func RateLimit(rate int, burst int, opts ...RateLimitOption) Middleware {
	cfg := &rateLimitConfig{
		keyFunc: func(context.Context, any) string { return "global" },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload any) *protocol.Response {
			key := cfg.keyFunc(ctx, payload)

			if !limiter.Allow(ctx, key) {
				method, _ := protocol.Peek(payload)
				if cfg.logger != nil {
					cfg.logger.Warn("rate limit exceeded",
						F("method", method),
						F("key", key),
					)
				}
				return protocol.NewErrorResponse(protocol.ReplyID(ctx, payload), protocol.NewExecutionError("rate limit exceeded"))
			}

			return next(ctx, payload)
		}
	}
}

// RateLimitByMethod returns rate limiting middleware that applies per-method limits.
// Aliased spellings of a method share one bucket.
func RateLimitByMethod(rate int, burst int, opts ...RateLimitOption) Middleware {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(func(_ context.Context, payload any) string {
			method, _ := protocol.Peek(payload)
			return protocol.CanonicalMethod(method)
		}),
	}, opts...)
	return RateLimit(rate, burst, allOpts...)
}

// RateLimitByClient returns rate limiting middleware that applies per-client limits.
// Clients are keyed by the remote address recorded by the transport.
func RateLimitByClient(rate int, burst int, opts ...RateLimitOption) Middleware {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(func(ctx context.Context, _ any) string {
			if addr := protocol.GetRequestMeta(ctx, protocol.MetaRemoteAddr); addr != "" {
				return addr
			}
			return "local"
		}),
	}, opts...)
	return RateLimit(rate, burst, allOpts...)
}
