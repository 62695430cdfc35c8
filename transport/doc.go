// Package transport carries response envelopes over stdio, HTTP and
// WebSocket.
//
// Each transport decodes a message, hands the decoded value to a Handler
// and writes back exactly one envelope. Faults at the transport boundary
// (unparsable input, oversized messages, handler panics, encoding
// failures) are converted to error envelopes and logged; they never stop
// the transport.
//
// # Stdio Transport
//
// Newline-delimited JSON on stdin/stdout. Blank lines are skipped:
//
//	t := transport.NewStdio()
//	err := t.Serve(ctx, handler)
//
// # HTTP Transport
//
// POST /mcp with a JSON body. Every reply has status 200; unknown routes
// and methods are answered with a method-not-found envelope:
//
//	t := transport.NewHTTP("127.0.0.1:8765",
//	    transport.WithReadTimeout(30*time.Second),
//	    transport.WithCORSOrigins("http://localhost:3000"),
//	)
//	err := t.Serve(ctx, handler)
//
// # WebSocket Transport
//
// One envelope per text frame, answered in order on each connection:
//
//	t := transport.NewWebSocket("127.0.0.1:8766")
//	err := t.Serve(ctx, handler)
package transport
