package protocol

import (
	"context"
	"testing"
)

func TestRequestMeta(t *testing.T) {
	t.Run("missing metadata reads as empty", func(t *testing.T) {
		if got := GetRequestMeta(context.Background(), MetaTransport); got != "" {
			t.Errorf("GetRequestMeta() = %q, want empty", got)
		}
	})

	t.Run("child adds keys without touching parent", func(t *testing.T) {
		parent := SetRequestMeta(context.Background(), MetaTransport, "http")
		child := SetRequestMeta(parent, MetaRemoteAddr, "10.0.0.1:5000")
		child = SetRequestMeta(child, MetaTransport, "websocket")

		if got := GetRequestMeta(child, MetaRemoteAddr); got != "10.0.0.1:5000" {
			t.Errorf("child remote_addr = %q", got)
		}
		if got := GetRequestMeta(child, MetaTransport); got != "websocket" {
			t.Errorf("child transport = %q", got)
		}
		if got := GetRequestMeta(parent, MetaTransport); got != "http" {
			t.Errorf("parent transport = %q, want http", got)
		}
		if got := GetRequestMeta(parent, MetaRemoteAddr); got != "" {
			t.Errorf("parent remote_addr = %q, want empty", got)
		}
	})
}
