// Package middleware provides wrappers around the contract handler.
//
// Each middleware wraps the next handler in the chain, allowing pre- and
// post-processing of a decoded payload and its response envelope. A
// middleware must return an envelope; it never returns nil.
//
// # Basic Usage
//
//	chain := middleware.Chain(
//	    middleware.Recover(),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	)
//	handler := chain(h.Handle)
//
// # Available Middleware
//
//   - Recover: converts panics into internal-error envelopes
//   - RequestID: injects a correlation id into the context
//   - Timeout: attaches a request deadline to the context
//   - RateLimit: rejects requests above a token bucket rate
//   - OTel: traces and counts requests
//   - Logging: logs method, id, duration and error kind
//
// # Default Stacks
//
//	// Recover + RequestID + OTel + Logging
//	stack := middleware.DefaultStack(logger)
//
//	// Recover + RequestID + Timeout + RateLimit + OTel + Logging
//	stack := middleware.Stack(logger, middleware.StackConfig{
//	    Timeout:   30 * time.Second,
//	    RateLimit: 50,
//	})
package middleware
