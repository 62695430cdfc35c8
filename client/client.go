// Package client provides a JSON-RPC client for calling a remote tool
// provider. The daemon uses it to proxy tools.call requests.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/hephaestus/protocol"
	"github.com/felixgeelhaar/hephaestus/server"
)

// Transport defines the interface for client-side transport.
type Transport interface {
	// Send sends a request and waits for its response. Responses whose
	// result is not an object fail with ErrInvalidResultShape.
	Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
	// Close closes the transport connection.
	Close() error
}

// Response decoding errors.
var (
	ErrInvalidJSON        = errors.New("invalid json response")
	ErrInvalidResultShape = errors.New("invalid result shape")
	ErrInvalidResponse    = errors.New("invalid response")
	ErrTransportClosed    = errors.New("transport closed")
)

// RemoteError is an error envelope returned by the provider.
type RemoteError struct {
	Err *protocol.Error
}

// Error formats the provider error as "code: message".
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%d: %s", e.Err.Code, e.Err.Message)
}

// Unwrap exposes the protocol error to errors.As.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// ServerInfo contains information about the connected server.
type ServerInfo struct {
	Name            string
	Version         string
	ProtocolVersion string
	Tools           bool
}

// Client calls a remote provider over a Transport. It implements
// server.ToolExecutor and is safe for concurrent use when the transport is.
type Client struct {
	transport Transport
	opts      clientOptions
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout     time.Duration
	protocolVer string
	newID       func() string
}

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithProtocolVersion sets the protocol version offered in Initialize.
func WithProtocolVersion(version string) Option {
	return func(o *clientOptions) {
		o.protocolVer = version
	}
}

// WithIDGenerator sets the request id generator. Ids default to UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(o *clientOptions) {
		o.newID = fn
	}
}

// New creates a client over transport.
func New(transport Transport, opts ...Option) *Client {
	options := clientOptions{
		timeout:     30 * time.Second,
		protocolVer: protocol.MCPVersion,
		newID:       uuid.NewString,
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		transport: transport,
		opts:      options,
	}
}

// Initialize performs the handshake and reports the server identity.
func (c *Client) Initialize(ctx context.Context) (*ServerInfo, error) {
	result, err := c.call(ctx, protocol.MethodInitialize, map[string]any{
		"protocolVersion": c.opts.protocolVer,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	info := &ServerInfo{}
	info.ProtocolVersion, _ = result["protocolVersion"].(string)
	if si, ok := result["serverInfo"].(map[string]any); ok {
		info.Name, _ = si["name"].(string)
		info.Version, _ = si["version"].(string)
	}
	if caps, ok := result["capabilities"].(map[string]any); ok {
		_, info.Tools = caps["tools"]
	}

	return info, nil
}

// ListTools returns the tools listed by the server.
func (c *Client) ListTools(ctx context.Context) ([]server.ToolDescriptor, error) {
	result, err := c.call(ctx, protocol.MethodToolsListSlash, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	raw, ok := result["tools"].([]any)
	if !ok {
		return nil, fmt.Errorf("list tools: %w", ErrInvalidResultShape)
	}

	tools := make([]server.ToolDescriptor, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		d := server.ToolDescriptor{InputSchema: m["input_schema"]}
		d.Name, _ = m["name"].(string)
		d.Description, _ = m["description"].(string)
		tools = append(tools, d)
	}

	return tools, nil
}

// ExecuteTool sends tools/call for name. A provider result of the form
// {"ok": true, "data": {...}} is unwrapped to data; any other object
// result is returned as is.
func (c *Client) ExecuteTool(ctx context.Context, name string, arguments map[string]any) (map[string]any, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}

	result, err := c.call(ctx, protocol.MethodToolsCallSlash, map[string]any{
		"tool":      name,
		"arguments": arguments,
	})
	if err != nil {
		return nil, err
	}

	if ok, _ := result["ok"].(bool); ok {
		if data, isMap := result["data"].(map[string]any); isMap {
			return data, nil
		}
		return nil, ErrInvalidResultShape
	}

	return result, nil
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// call sends one request and returns its result object. Error envelopes
// are returned as *RemoteError.
func (c *Client) call(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	req := protocol.NewRequest(c.opts.newID(), method, params)

	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, &RemoteError{Err: resp.Error}
	}
	if resp.Result == nil {
		return nil, ErrInvalidResponse
	}

	return resp.Result, nil
}

var _ server.ToolExecutor = (*Client)(nil)
