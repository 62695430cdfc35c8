// Package server provides the contract handler: request validation, method
// dispatch and normalization of every outcome into a response envelope.
//
// Transports decode a message into a generic value and pass it to Handle.
// The handler never panics and never returns nil, so transports can encode
// whatever comes back.
//
// # Handler
//
// A Handler is configured once and is safe for concurrent use:
//
//	h := server.New(server.DefaultInfo(),
//	    server.WithToolExecutor(executor),
//	    server.WithToolLister(lister),
//	)
//
//	resp := h.Handle(ctx, payload)
//
// # Capabilities
//
// Tool execution and tool listing are pluggable. Either may be omitted:
// without a lister tools.list returns an empty list, and without an
// executor tools.call fails with a tool-not-found error.
//
//	exec := server.ToolExecutorFunc(func(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
//	    return map[string]any{"echo": name}, nil
//	})
//
// # Id policy
//
// By default only string ids are accepted. WithIDPolicy(IDPolicyStringOrNumber)
// also accepts JSON numbers, which are echoed back unchanged.
package server
