package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// Request is an outbound JSON-RPC 2.0 request built by a client.
// Inbound requests are never decoded into this type; the server validates
// the raw decoded payload instead.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

// NewRequest creates a request with params defaulting to an empty object.
func NewRequest(id any, method string, params map[string]any) *Request {
	if params == nil {
		params = map[string]any{}
	}
	return &Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// Response represents a JSON-RPC 2.0 response envelope.
// Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id"`
	Result  map[string]any `json:"result,omitempty"`
	Error   *Error         `json:"error,omitempty"`
}

// NewResponse creates a successful response.
func NewResponse(id any, result map[string]any) *Response {
	if result == nil {
		result = map[string]any{}
	}
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id any, err *Error) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   err,
	}
}

// IsError reports whether the response carries an error.
func (r *Response) IsError() bool {
	return r.Error != nil
}

// MarshalJSON always emits the version and the id (null when unset), and
// exactly one of result and error. Error takes precedence; a response with
// neither is encoded as an internal error.
func (r Response) MarshalJSON() ([]byte, error) {
	type envelope struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      any             `json:"id"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *Error          `json:"error,omitempty"`
	}

	env := envelope{JSONRPC: JSONRPCVersion, ID: r.ID}
	switch {
	case r.Error != nil:
		env.Error = r.Error
	case r.Result != nil:
		result, err := json.Marshal(r.Result)
		if err != nil {
			return nil, err
		}
		env.Result = result
	default:
		env.Error = NewInternalError("empty response")
	}
	return json.Marshal(env)
}

// DecodePayload decodes a single JSON value. Numbers are kept as
// json.Number so numeric ids and arguments round-trip unchanged.
func DecodePayload(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

// Peek extracts the method and id from an undecoded payload for logging
// and metrics. The id is returned only when it is a string or a number,
// without checking the envelope; use ReplyID for an id to echo.
func Peek(payload any) (method string, id any) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", nil
	}
	method, _ = obj["method"].(string)
	switch v := obj["id"].(type) {
	case string, json.Number, float64, int, int64:
		id = v
	}
	return method, id
}
