package server

import (
	"context"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

const (
	fallbackExecutionMessage = "execution error"
	fallbackInternalMessage  = "internal error"
)

// Handle validates payload, dispatches it and returns the response envelope.
// payload is any value produced by JSON decoding. Handle never panics and
// never returns nil: every failure, including a panic inside a capability,
// becomes an error envelope.
func (h *Handler) Handle(ctx context.Context, payload any) (resp *protocol.Response) {
	if ctx == nil {
		ctx = context.Background()
	}

	var id any
	defer func() {
		if r := recover(); r != nil {
			resp = protocol.NewErrorResponse(id, protocol.NewInternalError(faultMessage(r, fallbackInternalMessage)))
		}
	}()

	env, errResp := h.validate(payload)
	if errResp != nil {
		return errResp
	}
	id = env.id

	switch protocol.CanonicalMethod(env.method) {
	case protocol.MethodInitialize:
		return h.handleInitialize(env)
	case protocol.MethodToolsList:
		return h.handleToolsList(ctx, env)
	case protocol.MethodToolsCall:
		return h.handleToolsCall(ctx, env)
	default:
		return protocol.NewErrorResponse(id, protocol.NewMethodNotFound("unsupported method"))
	}
}

func (h *Handler) handleInitialize(env envelope) *protocol.Response {
	version, _ := env.params["protocolVersion"].(string)

	result := map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    h.info.Name,
			"version": h.info.Version,
		},
	}

	return protocol.NewResponse(env.id, result)
}

func (h *Handler) handleToolsList(ctx context.Context, env envelope) *protocol.Response {
	tools := []ToolDescriptor{}
	if h.lister != nil {
		var err error
		tools, err = h.listTools(ctx)
		if err != nil {
			return protocol.NewErrorResponse(env.id, protocol.NewExecutionError(faultMessage(err, fallbackExecutionMessage)))
		}
		if tools == nil {
			return protocol.NewErrorResponse(env.id, protocol.NewExecutionError("tool lister returned non-list"))
		}
	}

	return protocol.NewResponse(env.id, map[string]any{"tools": tools})
}

func (h *Handler) handleToolsCall(ctx context.Context, env envelope) *protocol.Response {
	name, ok := h.toolName(env.params)
	if !ok {
		return protocol.NewErrorResponse(env.id, protocol.NewInvalidParams("params.tool must be string"))
	}

	arguments, ok := env.params["arguments"].(map[string]any)
	if !ok {
		return protocol.NewErrorResponse(env.id, protocol.NewInvalidParams("params.arguments must be object"))
	}

	if h.executor == nil {
		return protocol.NewErrorResponse(env.id, protocol.NewToolNotFound("no tool executor available"))
	}

	data, err := h.executeTool(ctx, name, arguments)
	if err != nil {
		return protocol.NewErrorResponse(env.id, protocol.NewExecutionError(faultMessage(err, fallbackExecutionMessage)))
	}
	if data == nil {
		return protocol.NewErrorResponse(env.id, protocol.NewExecutionError("tool returned non-object"))
	}

	return protocol.NewResponse(env.id, map[string]any{"ok": true, "data": data})
}

// toolName reads params.tool, falling back to params.name only when legacy
// names are enabled and params.tool is absent.
func (h *Handler) toolName(params map[string]any) (string, bool) {
	raw, present := params["tool"]
	if !present && h.legacyToolName {
		raw = params["name"]
	}
	name, ok := raw.(string)
	return name, ok
}

// listTools invokes the lister once, converting a panic into an error.
func (h *Handler) listTools(ctx context.Context) (tools []ToolDescriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			tools, err = nil, capabilityPanic{r}
		}
	}()
	return h.lister.ListTools(ctx)
}

// executeTool invokes the executor once, converting a panic into an error.
func (h *Handler) executeTool(ctx context.Context, name string, arguments map[string]any) (data map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, capabilityPanic{r}
		}
	}()
	return h.executor.ExecuteTool(ctx, name, arguments)
}

// capabilityPanic carries a value recovered from a capability.
type capabilityPanic struct {
	value any
}

func (p capabilityPanic) Error() string {
	return faultMessage(p.value, "")
}

// faultMessage applies the client-facing fault message policy.
func faultMessage(fault any, fallback string) string {
	return protocol.FaultMessage(fault, fallback)
}
