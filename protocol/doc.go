// Package protocol defines the JSON-RPC 2.0 envelope types and the error
// taxonomy of the contract layer.
//
// # Envelopes
//
// A response always carries "jsonrpc":"2.0", an "id" (null when the request
// id could not be recovered) and exactly one of "result" or "error":
//
//	{"jsonrpc":"2.0","id":"1","result":{"ok":true,"data":{...}}}
//	{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"..."}}
//
// Response.MarshalJSON enforces that invariant for every value, including
// zero values.
//
// # Error Codes
//
//	CodeParseError     = -32700  // unparsable payload
//	CodeInvalidRequest = -32600  // malformed envelope
//	CodeMethodNotFound = -32601  // unknown method or route
//	CodeInvalidParams  = -32602  // bad tool-call params
//	CodeInternalError  = -32603  // any other internal fault
//	CodeToolNotFound   = -32004  // no executor for a valid call
//	CodeExecutionError = -32003  // executor/lister fault or bad return shape
//
// # Methods
//
// The tool methods accept a dotted and a slashed spelling:
//
//	MethodToolsList = "tools.list"  // alias "tools/list"
//	MethodToolsCall = "tools.call"  // alias "tools/call"
package protocol
