package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/felixgeelhaar/hephaestus/server"
)

// Scene tool names.
const (
	ToolPing    = "blender.ping"
	ToolAddCube = "blender.add_cube"
)

// emptyObjectSchema accepts any object and declares no properties.
func emptyObjectSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{},
		Required:   []string{},
	}
}

// DefaultCatalog returns the descriptors of the built-in scene tools, in
// their stable listing order.
func DefaultCatalog() []server.ToolDescriptor {
	return []server.ToolDescriptor{
		{
			Name:        ToolPing,
			Description: "Respond with a pong message to verify connectivity.",
			InputSchema: emptyObjectSchema(),
		},
		{
			Name:        ToolAddCube,
			Description: "Add a cube to the current Blender scene.",
			InputSchema: emptyObjectSchema(),
		},
	}
}

// CatalogLister returns a lister that always answers with DefaultCatalog.
func CatalogLister() server.ToolLister {
	return server.ToolListerFunc(func(_ context.Context) ([]server.ToolDescriptor, error) {
		return DefaultCatalog(), nil
	})
}
