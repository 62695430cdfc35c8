package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// mockLogger captures log calls for testing.
type mockLogger struct {
	entries []logEntry
}

type logEntry struct {
	level   string
	message string
	fields  []Field
}

func (l *mockLogger) Info(msg string, fields ...Field) {
	l.entries = append(l.entries, logEntry{level: "info", message: msg, fields: fields})
}

func (l *mockLogger) Error(msg string, fields ...Field) {
	l.entries = append(l.entries, logEntry{level: "error", message: msg, fields: fields})
}

func (l *mockLogger) Debug(msg string, fields ...Field) {
	l.entries = append(l.entries, logEntry{level: "debug", message: msg, fields: fields})
}

func (l *mockLogger) Warn(msg string, fields ...Field) {
	l.entries = append(l.entries, logEntry{level: "warn", message: msg, fields: fields})
}

func (e logEntry) field(key string) (any, bool) {
	for _, f := range e.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func TestLogging(t *testing.T) {
	t.Run("logs successful requests", func(t *testing.T) {
		logger := &mockLogger{}

		Logging(logger)(okHandler)(context.Background(), testPayload("1", "tools/list"))

		if len(logger.entries) != 1 {
			t.Fatalf("expected 1 log entry, got %d", len(logger.entries))
		}

		entry := logger.entries[0]
		if entry.level != "info" {
			t.Errorf("level = %q, want %q", entry.level, "info")
		}
		if entry.message != "request completed" {
			t.Errorf("message = %q, want %q", entry.message, "request completed")
		}
		if v, _ := entry.field("method"); v != "tools/list" {
			t.Errorf("method = %v, want tools/list", v)
		}
		if v, _ := entry.field("id"); v != "1" {
			t.Errorf("id = %v, want 1", v)
		}
		if v, _ := entry.field("duration"); v == nil {
			t.Error("expected duration field")
		} else if _, ok := v.(time.Duration); !ok {
			t.Errorf("duration has type %T", v)
		}
	})

	t.Run("logs rejected requests at warn with kind", func(t *testing.T) {
		logger := &mockLogger{}

		handler := Logging(logger)(func(ctx context.Context, payload any) *protocol.Response {
			return protocol.NewErrorResponse("2", protocol.NewToolNotFound("no tool executor available"))
		})
		handler(context.Background(), testPayload("2", "tools.call"))

		entry := logger.entries[0]
		if entry.level != "warn" {
			t.Errorf("level = %q, want warn", entry.level)
		}
		if v, _ := entry.field("kind"); v != string(protocol.KindNoExecutor) {
			t.Errorf("kind = %v, want %s", v, protocol.KindNoExecutor)
		}
		if v, _ := entry.field("code"); v != protocol.CodeToolNotFound {
			t.Errorf("code = %v, want %d", v, protocol.CodeToolNotFound)
		}
		if v, _ := entry.field("error"); v != "no tool executor available" {
			t.Errorf("error = %v", v)
		}
	})

	t.Run("logs internal faults at error", func(t *testing.T) {
		logger := &mockLogger{}

		handler := Logging(logger)(func(ctx context.Context, payload any) *protocol.Response {
			return protocol.NewErrorResponse(nil, protocol.NewInternalError("internal error"))
		})
		handler(context.Background(), []any{})

		entry := logger.entries[0]
		if entry.level != "error" {
			t.Errorf("level = %q, want error", entry.level)
		}
		if v, _ := entry.field("method"); v != "" {
			t.Errorf("method = %v, want empty", v)
		}
	})

	t.Run("includes request id and transport", func(t *testing.T) {
		logger := &mockLogger{}

		ctx := ContextWithRequestID(context.Background(), "req-123")
		ctx = protocol.SetRequestMeta(ctx, protocol.MetaTransport, "stdio")
		Logging(logger)(okHandler)(ctx, testPayload("1", "initialize"))

		entry := logger.entries[0]
		if v, _ := entry.field("request_id"); v != "req-123" {
			t.Errorf("request_id = %v, want req-123", v)
		}
		if v, _ := entry.field("transport"); v != "stdio" {
			t.Errorf("transport = %v, want stdio", v)
		}
	})

	t.Run("returns the handler response", func(t *testing.T) {
		resp := Logging(NopLogger{})(okHandler)(context.Background(), testPayload("x", "initialize"))
		if resp.ID != "x" || resp.IsError() {
			t.Errorf("unexpected response: %+v", resp)
		}
	})
}
