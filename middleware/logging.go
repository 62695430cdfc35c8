package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// Logger is the interface for structured logging.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logging returns middleware that logs one line per request.
// Successful requests are logged at info level. Error envelopes are logged
// at warn level, except internal faults which are logged at error level.
func Logging(logger Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload any) *protocol.Response {
			start := time.Now()

			resp := next(ctx, payload)

			method, id := protocol.Peek(payload)
			fields := []Field{
				F("method", method),
				F("id", id),
				F("duration", time.Since(start)),
			}

			if requestID := RequestIDFromContext(ctx); requestID != "" {
				fields = append(fields, F("request_id", requestID))
			}
			if transport := protocol.GetRequestMeta(ctx, protocol.MetaTransport); transport != "" {
				fields = append(fields, F("transport", transport))
			}

			switch {
			case resp == nil:
				logger.Error("request produced no response", fields...)
			case resp.Error != nil:
				fields = append(fields,
					F("kind", string(resp.Error.Kind())),
					F("code", resp.Error.Code),
					F("error", resp.Error.Message),
				)
				if resp.Error.Kind() == protocol.KindInternalFault {
					logger.Error("request failed", fields...)
				} else {
					logger.Warn("request rejected", fields...)
				}
			default:
				logger.Info("request completed", fields...)
			}

			return resp
		}
	}
}

// NopLogger is a logger that discards all log entries.
type NopLogger struct{}

func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
