package middleware

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// PanicHandler is called when a panic is recovered.
type PanicHandler func(ctx context.Context, payload any, panicVal any) *protocol.Response

// Recover returns middleware that catches panics and converts them to
// internal errors. The id is echoed only when the handler would have
// echoed it (see protocol.ReplyID).
func Recover() Middleware {
	return RecoverWithHandler(defaultPanicHandler)
}

// RecoverWithHandler returns middleware that catches panics and calls the provided handler.
// This allows for custom panic handling such as logging or alerting.
func RecoverWithHandler(handler PanicHandler) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload any) (resp *protocol.Response) {
			defer func() {
				if r := recover(); r != nil {
					resp = handler(ctx, payload, r)
					if resp == nil {
						resp = defaultPanicHandler(ctx, payload, r)
					}
				}
			}()
			return next(ctx, payload)
		}
	}
}

// RecoverWithLogger is Recover that also logs the panic value with the
// method and fault kind. The stack trace is never logged or returned.
func RecoverWithLogger(logger Logger) Middleware {
	return RecoverWithHandler(func(ctx context.Context, payload any, panicVal any) *protocol.Response {
		method, _ := protocol.Peek(payload)
		logger.Error("panic recovered",
			F("kind", string(protocol.KindInternalFault)),
			F("method", method),
			F("panic", fmt.Sprint(panicVal)),
		)
		return defaultPanicHandler(ctx, payload, panicVal)
	})
}

func defaultPanicHandler(ctx context.Context, payload any, panicVal any) *protocol.Response {
	return protocol.NewErrorResponse(protocol.ReplyID(ctx, payload),
		protocol.NewInternalError(protocol.FaultMessage(panicVal, "internal error")))
}
