package protocol

import (
	"errors"
	"testing"
)

func TestFaultMessage(t *testing.T) {
	nilMap := func() (fault any) {
		defer func() { fault = recover() }()
		var m map[string]int
		m["mesh"] = 1
		return nil
	}()

	tests := []struct {
		name  string
		fault any
		want  string
	}{
		{"nil", nil, "fallback"},
		{"string", "scene locked", "scene locked"},
		{"empty string", "", "fallback"},
		{"error", errors.New("bad mesh"), "bad mesh"},
		{"empty error", errors.New(""), "fallback"},
		{"runtime error", nilMap, "fallback"},
		{"other value", 42, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FaultMessage(tt.fault, "fallback"); got != tt.want {
				t.Errorf("FaultMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
