package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// Timeout returns middleware that attaches a deadline to the request context.
// Capabilities observe the deadline through ctx; the response shape is
// whatever the handler produces. A non-positive d adds no deadline.
func Timeout(d time.Duration) Middleware {
	if d <= 0 {
		return func(next HandlerFunc) HandlerFunc { return next }
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload any) *protocol.Response {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, payload)
		}
	}
}
