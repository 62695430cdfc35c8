package tools

import (
	"context"
	"fmt"
)

// NewBlenderRegistry returns a registry holding the built-in scene tools
// backed by scene.
func NewBlenderRegistry(scene Scene) *Registry {
	reg := NewRegistry()
	handlers := map[string]ToolFunc{
		ToolPing:    ping,
		ToolAddCube: addCube(scene),
	}
	for _, d := range DefaultCatalog() {
		if err := reg.Register(d, handlers[d.Name]); err != nil {
			panic(fmt.Sprintf("tools: register %s: %v", d.Name, err))
		}
	}
	return reg
}

func ping(context.Context, map[string]any) (map[string]any, error) {
	return map[string]any{"message": "pong"}, nil
}

func addCube(scene Scene) ToolFunc {
	return func(ctx context.Context, _ map[string]any) (map[string]any, error) {
		name, err := scene.AddCube(ctx)
		if err != nil {
			return nil, fmt.Errorf("add cube: %w", err)
		}
		return map[string]any{"object": name}, nil
	}
}
