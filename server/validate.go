package server

import "github.com/felixgeelhaar/hephaestus/protocol"

// IDPolicy decides which JSON types are accepted as request ids.
type IDPolicy = protocol.IDPolicy

// Id policies.
const (
	IDPolicyString         = protocol.IDPolicyString
	IDPolicyStringOrNumber = protocol.IDPolicyStringOrNumber
)

// ParseIDPolicy parses "string" or "string-or-number".
func ParseIDPolicy(s string) (IDPolicy, error) {
	return protocol.ParseIDPolicy(s)
}

// envelope is a request that passed generic validation.
type envelope struct {
	id     any
	method string
	params map[string]any
}

// validate runs the generic envelope checks in order and stops at the
// first failure. On failure the returned response carries the best id
// that could be recovered at that point.
func (h *Handler) validate(payload any) (envelope, *protocol.Response) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return envelope{}, invalidRequest(nil, "payload must be object")
	}

	if v, ok := obj["jsonrpc"].(string); !ok || v != protocol.JSONRPCVersion {
		return envelope{}, invalidRequest(nil, "jsonrpc must be '2.0'")
	}

	rawID, hasID := obj["id"]
	rawMethod, hasMethod := obj["method"]
	rawParams, hasParams := obj["params"]
	if !hasID || !hasMethod || !hasParams {
		var id any
		if hasID && h.idPolicy.Accepts(rawID) {
			id = rawID
		}
		return envelope{}, invalidRequest(id, "missing required fields")
	}

	if !h.idPolicy.Accepts(rawID) {
		return envelope{}, invalidRequest(nil, h.idPolicy.Violation())
	}

	method, ok := rawMethod.(string)
	if !ok {
		return envelope{}, invalidRequest(rawID, "method must be string")
	}

	params, ok := rawParams.(map[string]any)
	if !ok {
		return envelope{}, invalidRequest(rawID, "params must be object")
	}

	return envelope{id: rawID, method: method, params: params}, nil
}

func invalidRequest(id any, msg string) *protocol.Response {
	return protocol.NewErrorResponse(id, protocol.NewInvalidRequest(msg))
}
