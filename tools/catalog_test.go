package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	tools, err := CatalogLister().ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	data, err := json.Marshal(tools)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := []struct{ name, description string }{
		{ToolPing, "Respond with a pong message to verify connectivity."},
		{ToolAddCube, "Add a cube to the current Blender scene."},
	}
	if len(got) != len(want) {
		t.Fatalf("catalog has %d tools, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i]["name"] != w.name || got[i]["description"] != w.description {
			t.Errorf("tool %d = %v %q, want %s %q", i, got[i]["name"], got[i]["description"], w.name, w.description)
		}
		schema, ok := got[i]["input_schema"].(map[string]any)
		if !ok {
			t.Fatalf("%s input_schema = %T, want object", w.name, got[i]["input_schema"])
		}
		if schema["type"] != "object" {
			t.Errorf("%s schema type = %v, want object", w.name, schema["type"])
		}
	}
}

func TestDefaultCatalog_FreshCopies(t *testing.T) {
	a := DefaultCatalog()
	a[0].Name = "changed"
	if b := DefaultCatalog(); b[0].Name != ToolPing {
		t.Errorf("DefaultCatalog shares state: first tool = %s", b[0].Name)
	}
}
