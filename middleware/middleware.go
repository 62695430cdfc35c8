package middleware

import (
	"time"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// StackConfig selects the optional parts of the production stack.
// Zero values disable the corresponding middleware.
type StackConfig struct {
	Timeout   time.Duration
	RateLimit int
	RateBurst int
	OTel      []OTelOption
	// IDPolicy must match the handler's policy. The string policy is the
	// context default and adds no middleware.
	IDPolicy protocol.IDPolicy
}

// DefaultStack returns the recommended production middleware stack:
// panic recovery, request ID injection, telemetry and logging.
func DefaultStack(logger Logger) []Middleware {
	return Stack(logger, StackConfig{})
}

// DefaultStackWithTimeout returns the default stack with a timeout middleware.
func DefaultStackWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return Stack(logger, StackConfig{Timeout: timeout})
}

// Stack returns the optional IDPolicy, Recover, RequestID, the optional
// Timeout and RateLimit, OTel and Logging, in that order.
func Stack(logger Logger, cfg StackConfig) []Middleware {
	var stack []Middleware
	if cfg.IDPolicy != protocol.IDPolicyString {
		stack = append(stack, IDPolicy(cfg.IDPolicy))
	}
	stack = append(stack, RecoverWithLogger(logger), RequestID())
	if cfg.Timeout > 0 {
		stack = append(stack, Timeout(cfg.Timeout))
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = cfg.RateLimit
		}
		stack = append(stack, RateLimit(cfg.RateLimit, burst, WithRateLimitLogger(logger)))
	}
	return append(stack, OTel(cfg.OTel...), Logging(logger))
}
