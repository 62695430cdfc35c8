package middleware

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

func TestStack(t *testing.T) {
	tests := []struct {
		name string
		cfg  StackConfig
		want int
	}{
		{"default", StackConfig{}, 4},
		{"with timeout", StackConfig{Timeout: time.Second}, 5},
		{"with rate limit", StackConfig{RateLimit: 10}, 5},
		{"with both", StackConfig{Timeout: time.Second, RateLimit: 10, RateBurst: 20}, 6},
		{"with numeric ids", StackConfig{IDPolicy: protocol.IDPolicyStringOrNumber}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Stack(NopLogger{}, tt.cfg)); got != tt.want {
				t.Errorf("len(Stack()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDefaultStack(t *testing.T) {
	logger := &mockLogger{}
	handler := Chain(DefaultStack(logger)...)(func(ctx context.Context, payload any) *protocol.Response {
		if RequestIDFromContext(ctx) == "" {
			t.Error("expected request id in context")
		}
		panic("handler exploded")
	})

	resp := handler(context.Background(), testPayload("1", "tools.call"))

	if resp.Error == nil || resp.Error.Code != protocol.CodeInternalError {
		t.Fatalf("expected internal error, got %+v", resp)
	}
	if resp.ID != "1" {
		t.Errorf("id = %v, want 1", resp.ID)
	}
	// Logging sits inside Recover, so the only entry is the recovery itself.
	if len(logger.entries) != 1 || logger.entries[0].message != "panic recovered" {
		t.Fatalf("expected one panic entry, got %+v", logger.entries)
	}
	if kind, _ := logger.entries[0].field("kind"); kind != string(protocol.KindInternalFault) {
		t.Errorf("kind = %v", kind)
	}
}

func TestDefaultStackWithTimeout(t *testing.T) {
	handler := Chain(DefaultStackWithTimeout(NopLogger{}, time.Second)...)(func(ctx context.Context, payload any) *protocol.Response {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected deadline")
		}
		return okHandler(ctx, payload)
	})

	if resp := handler(context.Background(), testPayload("1", "initialize")); resp.IsError() {
		t.Errorf("unexpected error: %v", resp.Error)
	}
}

func TestStack_IDPolicyReachesRecover(t *testing.T) {
	stack := Stack(NopLogger{}, StackConfig{IDPolicy: protocol.IDPolicyStringOrNumber})
	handler := Chain(stack...)(func(ctx context.Context, payload any) *protocol.Response {
		if got := protocol.IDPolicyFromContext(ctx); got != protocol.IDPolicyStringOrNumber {
			t.Errorf("policy = %v, want string-or-number", got)
		}
		panic("render failed")
	})

	resp := handler(context.Background(), testPayload(json.Number("3"), "tools.call"))
	if resp.Error == nil || resp.Error.Code != protocol.CodeInternalError {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ID != json.Number("3") {
		t.Errorf("id = %v, want 3", resp.ID)
	}
}
