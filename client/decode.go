package client

import (
	"encoding/json"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// decodeResponse parses one response envelope. A result member wins over
// an error member, and a result that is not an object is rejected. The
// envelope id is returned whenever the payload is an object, even when
// decoding fails.
func decodeResponse(data []byte) (*protocol.Response, any, error) {
	payload, err := protocol.DecodePayload(data)
	if err != nil {
		return nil, nil, ErrInvalidJSON
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, nil, ErrInvalidResponse
	}
	id := obj["id"]

	if raw, ok := obj["result"]; ok {
		result, ok := raw.(map[string]any)
		if !ok {
			return nil, id, ErrInvalidResultShape
		}
		return protocol.NewResponse(id, result), id, nil
	}

	if raw, ok := obj["error"]; ok {
		return protocol.NewErrorResponse(id, decodeError(raw)), id, nil
	}

	return nil, id, ErrInvalidResponse
}

func decodeError(raw any) *protocol.Error {
	e := &protocol.Error{}
	m, _ := raw.(map[string]any)
	if n, ok := m["code"].(json.Number); ok {
		if code, err := n.Int64(); err == nil {
			e.Code = int(code)
		}
	}
	e.Message, _ = m["message"].(string)
	return e
}

// responseKey returns the correlation key of a response id. Only string
// ids are produced by Client; numeric ids are keyed by their text.
func responseKey(id any) (string, bool) {
	switch v := id.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}
