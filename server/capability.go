package server

import "context"

// ToolDescriptor is static metadata describing one invocable tool.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema,omitempty"`
}

// ToolExecutor runs a named tool. Implementations must not mutate arguments.
// A nil map with a nil error is reported as a bad return shape.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, arguments map[string]any) (map[string]any, error)
}

// ToolExecutorFunc is an adapter to allow ordinary functions as executors.
type ToolExecutorFunc func(ctx context.Context, name string, arguments map[string]any) (map[string]any, error)

// ExecuteTool calls f(ctx, name, arguments).
func (f ToolExecutorFunc) ExecuteTool(ctx context.Context, name string, arguments map[string]any) (map[string]any, error) {
	return f(ctx, name, arguments)
}

// ToolLister enumerates the available tools. A nil slice with a nil error
// is reported as a bad return shape; return an empty slice for no tools.
type ToolLister interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
}

// ToolListerFunc is an adapter to allow ordinary functions as listers.
type ToolListerFunc func(ctx context.Context) ([]ToolDescriptor, error)

// ListTools calls f(ctx).
func (f ToolListerFunc) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	return f(ctx)
}
