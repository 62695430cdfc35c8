// Package tools provides the tool catalog and an executor registry for the
// scene tools served by hephaestus.
//
// A Registry implements both server capabilities, so one value can be
// passed as executor and lister:
//
//	reg := tools.NewBlenderRegistry(tools.NewMemoryScene())
//	h := server.New(server.DefaultInfo(),
//	    server.WithToolExecutor(reg),
//	    server.WithToolLister(reg),
//	)
//
// Custom tools are added with the fluent builder:
//
//	err := reg.Tool("scene.rename").
//	    Description("Rename an object").
//	    Schema(&jsonschema.Schema{Type: "object", Required: []string{"name"}}).
//	    Handler(func(ctx context.Context, args map[string]any) (map[string]any, error) {
//	        return map[string]any{"renamed": args["name"]}, nil
//	    })
package tools
