package middleware

import (
	"context"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// IDPolicy returns middleware that records the id policy in the context so
// that errors produced by middleware echo ids by the handler's rule. It
// belongs at the outermost position, ahead of Recover.
func IDPolicy(p protocol.IDPolicy) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload any) *protocol.Response {
			return next(protocol.ContextWithIDPolicy(ctx, p), payload)
		}
	}
}
