package hephaestus_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/hephaestus"
	"github.com/felixgeelhaar/hephaestus/middleware"
	"github.com/felixgeelhaar/hephaestus/protocol"
	"github.com/felixgeelhaar/hephaestus/transport"
)

func TestNewHandler(t *testing.T) {
	h := hephaestus.NewHandler(hephaestus.Info{Name: "test-server", Version: "1.0.0"})

	if h.Info().Name != "test-server" {
		t.Errorf("Name = %q, want %q", h.Info().Name, "test-server")
	}
}

func TestNewSceneHandler(t *testing.T) {
	h := hephaestus.NewSceneHandler(nil, hephaestus.WithLegacyToolName(true))

	resp := h.Handle(context.Background(), map[string]any{
		"jsonrpc": "2.0",
		"id":      "1",
		"method":  "tools/call",
		"params":  map[string]any{"name": "blender.add_cube", "arguments": map[string]any{}},
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	want := map[string]any{"ok": true, "data": map[string]any{"object": "Cube"}}
	if diff := cmp.Diff(want, resp.Result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestServeStdio(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":"1","method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		`{"jsonrpc":"2.0","id":"2","method":"tools.call","params":{"tool":"blender.ping","arguments":{}}}`,
		`not json`,
		`{"jsonrpc":"2.0","id":"3","method":"resources/list","params":{}}`,
	}, "\n") + "\n")
	out := &bytes.Buffer{}

	var calls int
	count := func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, payload any) *protocol.Response {
			calls++
			return next(ctx, payload)
		}
	}

	err := hephaestus.ServeStdio(context.Background(), hephaestus.NewSceneHandler(nil),
		hephaestus.WithStdioOptions(transport.WithStdin(in), transport.WithStdout(out)),
		hephaestus.WithMiddleware(hephaestus.Recover(), count),
	)
	if err != nil {
		t.Fatalf("ServeStdio: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d response lines, want 4:\n%s", len(lines), out.String())
	}

	var responses []map[string]any
	for _, line := range lines {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("response %q is not JSON: %v", line, err)
		}
		responses = append(responses, m)
	}

	result, _ := responses[0]["result"].(map[string]any)
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("initialize result = %v", responses[0])
	}
	result, _ = responses[1]["result"].(map[string]any)
	if diff := cmp.Diff(map[string]any{"ok": true, "data": map[string]any{"message": "pong"}}, result); diff != "" {
		t.Errorf("ping mismatch (-want +got):\n%s", diff)
	}
	errObj, _ := responses[2]["error"].(map[string]any)
	if errObj["code"] != float64(protocol.CodeParseError) || responses[2]["id"] != nil {
		t.Errorf("parse error response = %v", responses[2])
	}
	errObj, _ = responses[3]["error"].(map[string]any)
	if errObj["code"] != float64(protocol.CodeMethodNotFound) || responses[3]["id"] != "3" {
		t.Errorf("unknown method response = %v", responses[3])
	}

	if calls != 3 {
		t.Errorf("middleware saw %d requests, want 3 decoded payloads", calls)
	}
}

func TestWrap(t *testing.T) {
	t.Run("no middleware returns handler unchanged", func(t *testing.T) {
		h := hephaestus.NewSceneHandler(nil)
		if got := hephaestus.Wrap(h); got != transport.Handler(h) {
			t.Error("expected the handler itself")
		}
	})

	t.Run("default middleware recovers panics", func(t *testing.T) {
		panicky := transport.HandlerFunc(func(context.Context, any) *protocol.Response {
			panic("boom")
		})
		h := hephaestus.Wrap(panicky, hephaestus.WithDefaultMiddleware(middleware.NopLogger{}))

		resp := h.Handle(context.Background(), map[string]any{"jsonrpc": "2.0", "id": "9", "method": "x", "params": map[string]any{}})
		if resp.Error == nil || resp.Error.Code != protocol.CodeInternalError {
			t.Fatalf("error = %+v, want internal error", resp.Error)
		}
		if resp.ID != "9" {
			t.Errorf("id = %v, want 9", resp.ID)
		}
	})
}

func TestServeHTTP_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- hephaestus.ServeHTTP(ctx, hephaestus.NewSceneHandler(nil), "127.0.0.1:0",
			hephaestus.WithReadTimeout(time.Second), hephaestus.WithWriteTimeout(time.Second))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ServeHTTP = %v, want context.Canceled", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("ServeHTTP did not return after cancel")
	}
}

func TestServeWebSocket_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- hephaestus.ServeWebSocketWithMiddleware(ctx, hephaestus.NewSceneHandler(nil), "127.0.0.1:0",
			nil, hephaestus.WithDefaultMiddleware(middleware.NopLogger{}))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("ServeWebSocket = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("ServeWebSocket did not return after cancel")
	}
}
