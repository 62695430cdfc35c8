// Package protocol implements the wire layer of the contract: JSON-RPC 2.0
// envelopes and the closed error taxonomy.
package protocol

import "fmt"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Tool error codes.
const (
	CodeToolNotFound   = -32004
	CodeExecutionError = -32003
)

// Kind is the abstract failure category behind an error code.
type Kind string

// Error kinds, independent of the wire encoding.
const (
	KindMalformedEnvelope Kind = "MalformedEnvelope"
	KindUnparsablePayload Kind = "UnparsablePayload"
	KindUnknownMethod     Kind = "UnknownMethod"
	KindInvalidParams     Kind = "InvalidParams"
	KindNoExecutor        Kind = "NoExecutor"
	KindExecutionFault    Kind = "ExecutionFault"
	KindInternalFault     Kind = "InternalFault"
)

var codeKinds = map[int]Kind{
	CodeParseError:     KindUnparsablePayload,
	CodeInvalidRequest: KindMalformedEnvelope,
	CodeMethodNotFound: KindUnknownMethod,
	CodeInvalidParams:  KindInvalidParams,
	CodeInternalError:  KindInternalFault,
	CodeToolNotFound:   KindNoExecutor,
	CodeExecutionError: KindExecutionFault,
}

// KnownCode reports whether code belongs to the closed enumeration.
func KnownCode(code int) bool {
	_, ok := codeKinds[code]
	return ok
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("mcp: %s (code: %d)", e.Message, e.Code)
}

// Is implements errors.Is comparison by error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Kind returns the failure category of the error.
// Codes outside the enumeration are reported as internal faults.
func (e *Error) Kind() Kind {
	if k, ok := codeKinds[e.Code]; ok {
		return k
	}
	return KindInternalFault
}

// NewParseError creates a parse error (-32700).
func NewParseError(msg string) *Error {
	return &Error{Code: CodeParseError, Message: msg}
}

// NewInvalidRequest creates an invalid request error (-32600).
func NewInvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

// NewMethodNotFound creates a method not found error (-32601).
func NewMethodNotFound(msg string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: msg}
}

// NewInvalidParams creates an invalid params error (-32602).
func NewInvalidParams(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: msg}
}

// NewInternalError creates an internal error (-32603).
func NewInternalError(msg string) *Error {
	return &Error{Code: CodeInternalError, Message: msg}
}

// NewToolNotFound creates a tool not found error (-32004).
func NewToolNotFound(msg string) *Error {
	return &Error{Code: CodeToolNotFound, Message: msg}
}

// NewExecutionError creates an execution error (-32003).
func NewExecutionError(msg string) *Error {
	return &Error{Code: CodeExecutionError, Message: msg}
}
