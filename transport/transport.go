package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/hephaestus/middleware"
	"github.com/felixgeelhaar/hephaestus/protocol"
)

// DefaultMaxMessageBytes is the default limit for one inbound message.
const DefaultMaxMessageBytes = 1 << 20

// Logger receives transport faults. It is the middleware logger interface.
type Logger = middleware.Logger

// Handler processes one decoded payload. It must return a response envelope.
type Handler interface {
	Handle(ctx context.Context, payload any) *protocol.Response
}

// HandlerFunc is an adapter to allow ordinary functions as handlers.
type HandlerFunc func(ctx context.Context, payload any) *protocol.Response

// Handle calls f(ctx, payload).
func (f HandlerFunc) Handle(ctx context.Context, payload any) *protocol.Response {
	return f(ctx, payload)
}

// Transport defines the communication layer interface.
type Transport interface {
	// Serve starts the transport, blocking until ctx is canceled or an error occurs.
	Serve(ctx context.Context, handler Handler) error

	// Addr returns the transport's address description.
	Addr() string
}

// Transport-level error messages.
const (
	msgInvalidJSON      = "invalid json"
	msgTooLarge         = "message too large"
	msgUnsupportedRoute = "unsupported route or method"
	msgShuttingDown     = "server is shutting down"
	msgInternal         = "internal error"
)

// dispatch decodes one raw message and runs it through handler. It always
// returns an envelope: parse failures, handler panics and nil responses are
// all converted at this boundary and logged.
func dispatch(ctx context.Context, handler Handler, logger middleware.Logger, data []byte) (resp *protocol.Response) {
	payload, err := protocol.DecodePayload(data)
	if err != nil {
		logger.Debug("unparsable message", middleware.F("error", err.Error()))
		return protocol.NewErrorResponse(nil, protocol.NewParseError(msgInvalidJSON))
	}

	defer func() {
		if r := recover(); r != nil {
			id := protocol.ReplyID(ctx, payload)
			logger.Error("handler panicked",
				middleware.F("kind", string(protocol.KindInternalFault)),
				middleware.F("error", fmt.Sprint(r)),
			)
			resp = protocol.NewErrorResponse(id, protocol.NewInternalError(msgInternal))
		}
	}()

	resp = handler.Handle(ctx, payload)
	if resp == nil {
		id := protocol.ReplyID(ctx, payload)
		logger.Error("handler returned no response", middleware.F("kind", string(protocol.KindInternalFault)))
		resp = protocol.NewErrorResponse(id, protocol.NewInternalError(msgInternal))
	}
	return resp
}

// encode serializes resp. A result that cannot be encoded is replaced by an
// internal error envelope carrying the same id.
func encode(resp *protocol.Response, logger middleware.Logger) []byte {
	data, err := json.Marshal(resp)
	if err == nil {
		return data
	}

	logger.Error("failed to encode response",
		middleware.F("kind", string(protocol.KindInternalFault)),
		middleware.F("error", err.Error()),
	)

	data, err = json.Marshal(protocol.NewErrorResponse(resp.ID, protocol.NewInternalError(msgInternal)))
	if err == nil {
		return data
	}
	data, _ = json.Marshal(protocol.NewErrorResponse(nil, protocol.NewInternalError(msgInternal)))
	return data
}

func nopIfNil(l middleware.Logger) middleware.Logger {
	if l == nil {
		return middleware.NopLogger{}
	}
	return l
}
