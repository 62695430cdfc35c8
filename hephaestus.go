// Package hephaestus is a JSON-RPC contract layer for tool invocation.
//
// A Handler validates each decoded request envelope, dispatches it to the
// configured tool capabilities, and always answers with exactly one
// response envelope. Transports (stdio, HTTP, WebSocket) and an ambient
// middleware stack wrap it:
//
//	reg := tools.NewBlenderRegistry(tools.NewMemoryScene())
//	h := hephaestus.NewHandler(hephaestus.DefaultInfo(),
//	    hephaestus.WithToolExecutor(reg),
//	    hephaestus.WithToolLister(reg),
//	)
//
//	hephaestus.ServeStdio(ctx, h, hephaestus.WithDefaultMiddleware(logger))
package hephaestus

import (
	"context"
	"time"

	"github.com/felixgeelhaar/hephaestus/middleware"
	"github.com/felixgeelhaar/hephaestus/server"
	"github.com/felixgeelhaar/hephaestus/tools"
	"github.com/felixgeelhaar/hephaestus/transport"
)

// Re-export core types for convenience

// Info identifies the server in initialize responses.
type Info = server.Info

// Handler is the contract handler.
type Handler = server.Handler

// Option configures a Handler.
type Option = server.Option

// Capability types
type ToolDescriptor = server.ToolDescriptor
type ToolExecutor = server.ToolExecutor
type ToolExecutorFunc = server.ToolExecutorFunc
type ToolLister = server.ToolLister
type ToolListerFunc = server.ToolListerFunc

// IDPolicy decides which JSON types are accepted as request ids.
type IDPolicy = server.IDPolicy

// Id policies.
const (
	IDPolicyString         = server.IDPolicyString
	IDPolicyStringOrNumber = server.IDPolicyStringOrNumber
)

// Handler options.
var (
	WithToolExecutor   = server.WithToolExecutor
	WithToolLister     = server.WithToolLister
	WithIDPolicy       = server.WithIDPolicy
	WithLegacyToolName = server.WithLegacyToolName
)

// Middleware types
type Middleware = middleware.Middleware
type Logger = middleware.Logger
type LogField = middleware.Field

// Transport option types
type StdioOption = transport.StdioOption
type HTTPOption = transport.HTTPOption
type WebSocketOption = transport.WebSocketOption

// DefaultInfo returns the build-time server identity.
func DefaultInfo() Info {
	return server.DefaultInfo()
}

// NewHandler creates a contract handler reporting info in initialize
// responses.
func NewHandler(info Info, opts ...Option) *Handler {
	return server.New(info, opts...)
}

// NewSceneHandler creates a handler serving the built-in scene tools
// against scene. A nil scene selects a fresh in-memory scene.
func NewSceneHandler(scene tools.Scene, opts ...Option) *Handler {
	if scene == nil {
		scene = tools.NewMemoryScene()
	}
	reg := tools.NewBlenderRegistry(scene)
	opts = append([]Option{WithToolExecutor(reg), WithToolLister(reg)}, opts...)
	return server.New(server.DefaultInfo(), opts...)
}

// ServeOption configures how a handler is served.
type ServeOption func(*serveOptions)

type serveOptions struct {
	middleware []Middleware
	stdio      []transport.StdioOption
}

// WithMiddleware adds middleware to the request handling chain. The
// first middleware is the outermost.
func WithMiddleware(m ...Middleware) ServeOption {
	return func(o *serveOptions) {
		o.middleware = append(o.middleware, m...)
	}
}

// WithDefaultMiddleware adds the recommended production stack logging to
// logger.
func WithDefaultMiddleware(logger Logger) ServeOption {
	return WithMiddleware(middleware.DefaultStack(logger)...)
}

// WithStdioOptions configures the stdio transport used by ServeStdio.
func WithStdioOptions(opts ...StdioOption) ServeOption {
	return func(o *serveOptions) {
		o.stdio = append(o.stdio, opts...)
	}
}

// Wrap applies the middleware selected by opts to h.
func Wrap(h transport.Handler, opts ...ServeOption) transport.Handler {
	options := newServeOptions(opts)
	return wrap(h, options)
}

func newServeOptions(opts []ServeOption) *serveOptions {
	options := &serveOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func wrap(h transport.Handler, options *serveOptions) transport.Handler {
	if len(options.middleware) == 0 {
		return h
	}
	return middleware.Use(options.middleware...).Then(h)
}

// ServeStdio serves h over line-delimited stdio.
// This blocks until the context is canceled, stdin ends, or an error occurs.
func ServeStdio(ctx context.Context, h transport.Handler, opts ...ServeOption) error {
	options := newServeOptions(opts)
	return transport.NewStdio(options.stdio...).Serve(ctx, wrap(h, options))
}

// ServeHTTP serves h on POST /mcp at addr.
// This blocks until the context is canceled or an error occurs.
func ServeHTTP(ctx context.Context, h transport.Handler, addr string, opts ...HTTPOption) error {
	return transport.NewHTTP(addr, opts...).Serve(ctx, h)
}

// ServeHTTPWithMiddleware serves h over HTTP with middleware support.
func ServeHTTPWithMiddleware(ctx context.Context, h transport.Handler, addr string, httpOpts []HTTPOption, serveOpts ...ServeOption) error {
	return transport.NewHTTP(addr, httpOpts...).Serve(ctx, Wrap(h, serveOpts...))
}

// ServeWebSocket serves h over WebSocket at addr, one envelope per text
// frame. This blocks until the context is canceled or an error occurs.
func ServeWebSocket(ctx context.Context, h transport.Handler, addr string, opts ...WebSocketOption) error {
	return transport.NewWebSocket(addr, opts...).Serve(ctx, h)
}

// ServeWebSocketWithMiddleware serves h over WebSocket with middleware support.
func ServeWebSocketWithMiddleware(ctx context.Context, h transport.Handler, addr string, wsOpts []WebSocketOption, serveOpts ...ServeOption) error {
	return transport.NewWebSocket(addr, wsOpts...).Serve(ctx, Wrap(h, serveOpts...))
}

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return transport.WithReadTimeout(d)
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return transport.WithWriteTimeout(d)
}

// Middleware re-exports

// Chain composes multiple middleware into a single middleware.
func Chain(middlewares ...Middleware) Middleware {
	return middleware.Chain(middlewares...)
}

// Recover returns middleware that converts panics into internal errors.
func Recover() Middleware {
	return middleware.Recover()
}

// Timeout returns middleware that enforces a request deadline.
func Timeout(d time.Duration) Middleware {
	return middleware.Timeout(d)
}

// RequestID returns middleware that injects a unique request ID into the context.
func RequestID() Middleware {
	return middleware.RequestID()
}

// RequestIDFromContext returns the request ID from the context, or empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	return middleware.RequestIDFromContext(ctx)
}

// Logging returns middleware that logs one line per request.
func Logging(logger Logger) Middleware {
	return middleware.Logging(logger)
}

// LogF creates a new log field with the given key and value.
func LogF(key string, value any) LogField {
	return middleware.F(key, value)
}
