package protocol

import (
	"context"
	"maps"
)

// Metadata keys set by transports.
const (
	MetaTransport  = "transport"
	MetaRemoteAddr = "remote_addr"
	MetaRequestID  = "request_id"
)

type requestMetaKey struct{}

// RequestMeta is transport-level information about one exchange, such as
// the transport name or the X-Request-ID header. It travels beside the
// envelope and never changes the response.
type RequestMeta map[string]string

// GetRequestMeta returns the value stored under key, or "".
func GetRequestMeta(ctx context.Context, key string) string {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta[key]
}

// SetRequestMeta returns a context carrying key=value in addition to the
// metadata already in ctx. The parent's metadata is not modified.
func SetRequestMeta(ctx context.Context, key, value string) context.Context {
	parent, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	meta := maps.Clone(parent)
	if meta == nil {
		meta = make(RequestMeta, 1)
	}
	meta[key] = value
	return context.WithValue(ctx, requestMetaKey{}, meta)
}
