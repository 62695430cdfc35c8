package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

func TestTimeout(t *testing.T) {
	t.Run("sets a deadline", func(t *testing.T) {
		var deadline time.Time
		var ok bool
		handler := Timeout(time.Second)(func(ctx context.Context, payload any) *protocol.Response {
			deadline, ok = ctx.Deadline()
			return okHandler(ctx, payload)
		})

		handler(context.Background(), testPayload("1", "test"))

		if !ok {
			t.Fatal("expected context deadline")
		}
		if time.Until(deadline) > time.Second {
			t.Errorf("deadline too far in the future: %v", deadline)
		}
	})

	t.Run("capability observes expiry", func(t *testing.T) {
		handler := Timeout(10 * time.Millisecond)(func(ctx context.Context, payload any) *protocol.Response {
			<-ctx.Done()
			_, id := protocol.Peek(payload)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return protocol.NewErrorResponse(id, protocol.NewExecutionError(ctx.Err().Error()))
			}
			return okHandler(ctx, payload)
		})

		resp := handler(context.Background(), testPayload("slow", "tools.call"))

		if !resp.IsError() || resp.Error.Code != protocol.CodeExecutionError {
			t.Fatalf("unexpected response: %+v", resp)
		}
		if resp.ID != "slow" {
			t.Errorf("id = %v, want slow", resp.ID)
		}
	})

	t.Run("fast handler is unaffected", func(t *testing.T) {
		resp := Timeout(time.Second)(okHandler)(context.Background(), testPayload("1", "test"))
		if resp.IsError() {
			t.Errorf("unexpected error: %v", resp.Error)
		}
	})

	t.Run("zero duration adds no deadline", func(t *testing.T) {
		handler := Timeout(0)(func(ctx context.Context, payload any) *protocol.Response {
			if _, ok := ctx.Deadline(); ok {
				t.Error("unexpected deadline")
			}
			return okHandler(ctx, payload)
		})
		handler(context.Background(), testPayload("1", "test"))
	})
}
