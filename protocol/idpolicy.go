package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// IDPolicy decides which JSON types are accepted as request ids.
type IDPolicy int

const (
	// IDPolicyString accepts only string ids.
	IDPolicyString IDPolicy = iota
	// IDPolicyStringOrNumber accepts string and number ids.
	IDPolicyStringOrNumber
)

// ParseIDPolicy parses "string" or "string-or-number".
func ParseIDPolicy(s string) (IDPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string":
		return IDPolicyString, nil
	case "string-or-number":
		return IDPolicyStringOrNumber, nil
	default:
		return IDPolicyString, fmt.Errorf("unknown id policy %q", s)
	}
}

// String returns the configuration spelling of the policy.
func (p IDPolicy) String() string {
	if p == IDPolicyStringOrNumber {
		return "string-or-number"
	}
	return "string"
}

// Accepts reports whether id has a type the policy allows.
func (p IDPolicy) Accepts(id any) bool {
	switch id.(type) {
	case string:
		return true
	case json.Number, float64, float32, int, int32, int64, uint, uint32, uint64:
		return p == IDPolicyStringOrNumber
	default:
		return false
	}
}

// Violation is the INVALID_REQUEST message for an id the policy rejects.
func (p IDPolicy) Violation() string {
	if p == IDPolicyStringOrNumber {
		return "id must be string or number"
	}
	return "id must be string"
}

type idPolicyKey struct{}

// ContextWithIDPolicy records the id policy in effect for an exchange so
// that code answering outside the handler echoes ids by the same rule.
func ContextWithIDPolicy(ctx context.Context, p IDPolicy) context.Context {
	return context.WithValue(ctx, idPolicyKey{}, p)
}

// IDPolicyFromContext returns the recorded policy, or IDPolicyString.
func IDPolicyFromContext(ctx context.Context) IDPolicy {
	p, _ := ctx.Value(idPolicyKey{}).(IDPolicy)
	return p
}

// ReplyID returns the id an error envelope for payload may echo: the
// request id when payload is an object with jsonrpc "2.0" and an id the
// policy in ctx accepts, otherwise nil. These are the same rules the
// handler applies before it can echo an id.
func ReplyID(ctx context.Context, payload any) any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	if v, ok := obj["jsonrpc"].(string); !ok || v != JSONRPCVersion {
		return nil
	}
	id, ok := obj["id"]
	if !ok || !IDPolicyFromContext(ctx).Accepts(id) {
		return nil
	}
	return id
}
