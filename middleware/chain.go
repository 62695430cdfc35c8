package middleware

import (
	"context"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// HandlerFunc handles one decoded payload and returns its response envelope.
// Implementations must never return nil.
type HandlerFunc func(ctx context.Context, payload any) *protocol.Response

// Handle calls f(ctx, payload), so a HandlerFunc satisfies the transport
// handler interface.
func (f HandlerFunc) Handle(ctx context.Context, payload any) *protocol.Response {
	return f(ctx, payload)
}

// Handler is anything that turns a payload into a response envelope.
type Handler interface {
	Handle(ctx context.Context, payload any) *protocol.Response
}

// Middleware wraps a handler with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes multiple middleware into a single middleware.
// Middleware are applied in order, so Chain(m1, m2, m3) results in
// m1 wrapping m2 wrapping m3 wrapping the final handler.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// MiddlewareChain provides a fluent API for building middleware chains.
type MiddlewareChain struct {
	middlewares []Middleware
}

// Use creates a new middleware chain starting with the given middleware.
func Use(middlewares ...Middleware) *MiddlewareChain {
	return &MiddlewareChain{
		middlewares: middlewares,
	}
}

// Append adds middleware to the chain and returns the updated chain.
func (c *MiddlewareChain) Append(middlewares ...Middleware) *MiddlewareChain {
	c.middlewares = append(c.middlewares, middlewares...)
	return c
}

// Then applies the middleware chain to h and returns the wrapped handler.
func (c *MiddlewareChain) Then(h Handler) HandlerFunc {
	return Chain(c.middlewares...)(h.Handle)
}

// ThenFunc applies the middleware chain to a handler function.
func (c *MiddlewareChain) ThenFunc(fn func(ctx context.Context, payload any) *protocol.Response) HandlerFunc {
	return Chain(c.middlewares...)(HandlerFunc(fn))
}
