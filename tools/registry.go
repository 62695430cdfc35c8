package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/felixgeelhaar/hephaestus/server"
)

// ErrUnknownTool is returned for a tool name with no registration.
var ErrUnknownTool = errors.New("unknown tool")

// ToolFunc runs one tool. It must not mutate args.
type ToolFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

type tool struct {
	descriptor server.ToolDescriptor
	resolved   *jsonschema.Resolved
	handler    ToolFunc
}

// Registry maps tool names to handlers. It implements server.ToolExecutor
// and server.ToolLister and is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*tool)}
}

// ToolBuilder provides a fluent API for registering a tool.
type ToolBuilder struct {
	registry    *Registry
	name        string
	description string
	schema      *jsonschema.Schema
}

// Tool starts the registration of a tool named name.
func (r *Registry) Tool(name string) *ToolBuilder {
	return &ToolBuilder{registry: r, name: name}
}

// Description sets the tool description.
func (b *ToolBuilder) Description(desc string) *ToolBuilder {
	b.description = desc
	return b
}

// Schema sets the JSON Schema that arguments are validated against.
// Without a schema any argument object is accepted.
func (b *ToolBuilder) Schema(s *jsonschema.Schema) *ToolBuilder {
	b.schema = s
	return b
}

// Handler completes the registration. See Registry.Register.
func (b *ToolBuilder) Handler(fn ToolFunc) error {
	d := server.ToolDescriptor{Name: b.name, Description: b.description}
	if b.schema != nil {
		d.InputSchema = b.schema
	}
	return b.registry.Register(d, fn)
}

// Register adds a tool. A *jsonschema.Schema input schema is resolved now
// and used to validate arguments on every call; other schema values are
// only listed. Register fails if the name is empty or already registered,
// or if the schema cannot be resolved.
func (r *Registry) Register(d server.ToolDescriptor, fn ToolFunc) error {
	if d.Name == "" {
		return errors.New("tool name is required")
	}
	if fn == nil {
		return fmt.Errorf("tool %s: handler is required", d.Name)
	}

	t := &tool{descriptor: d, handler: fn}
	if s, ok := d.InputSchema.(*jsonschema.Schema); ok && s != nil {
		resolved, err := s.Resolve(nil)
		if err != nil {
			return fmt.Errorf("tool %s: resolve schema: %w", d.Name, err)
		}
		t.resolved = resolved
	}

	return r.add(t)
}

func (r *Registry) add(t *tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.descriptor.Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ListTools returns the descriptors in registration order.
func (r *Registry) ListTools(context.Context) ([]server.ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]server.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].descriptor)
	}
	return out, nil
}

// ExecuteTool validates args against the tool schema and runs the tool.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if t.resolved != nil {
		instance, _ := normalize(args).(map[string]any)
		if err := t.resolved.Validate(&instance); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
	}

	return t.handler(ctx, args)
}

// normalize returns a copy of v with json.Number values converted to Go
// numbers, which is what schema validation expects.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		return v
	}
}
