package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// testHandler echoes the method back, and misbehaves on request.
var testHandler = HandlerFunc(func(ctx context.Context, payload any) *protocol.Response {
	method, id := protocol.Peek(payload)
	switch method {
	case "panic":
		panic("handler exploded")
	case "nil":
		return nil
	case "unencodable":
		return protocol.NewResponse(id, map[string]any{"ch": make(chan int)})
	case "meta":
		return protocol.NewResponse(id, map[string]any{
			"transport":   protocol.GetRequestMeta(ctx, protocol.MetaTransport),
			"remote_addr": protocol.GetRequestMeta(ctx, protocol.MetaRemoteAddr),
			"request_id":  protocol.GetRequestMeta(ctx, protocol.MetaRequestID),
		})
	}
	return protocol.NewResponse(id, map[string]any{"method": method})
})

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var msgs []map[string]any
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			t.Fatalf("invalid response line %q: %v", line, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func errorCode(msg map[string]any) float64 {
	e, _ := msg["error"].(map[string]any)
	code, _ := e["code"].(float64)
	return code
}

func errorMessage(msg map[string]any) string {
	e, _ := msg["error"].(map[string]any)
	m, _ := e["message"].(string)
	return m
}

func serveStdio(t *testing.T, input string, opts ...StdioOption) []map[string]any {
	t.Helper()
	out := &bytes.Buffer{}
	s := NewStdio(append([]StdioOption{WithStdin(strings.NewReader(input)), WithStdout(out)}, opts...)...)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Serve(ctx, testHandler); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	return decodeLines(t, out.String())
}

func TestNewStdio(t *testing.T) {
	t.Run("creates stdio transport with defaults", func(t *testing.T) {
		s := NewStdio()

		if s.Addr() != "stdio" {
			t.Errorf("Addr() = %q, want %q", s.Addr(), "stdio")
		}
		if s.maxMessageBytes != DefaultMaxMessageBytes {
			t.Errorf("maxMessageBytes = %d, want %d", s.maxMessageBytes, DefaultMaxMessageBytes)
		}
	})

	t.Run("creates stdio transport with custom streams", func(t *testing.T) {
		in := &bytes.Buffer{}
		out := &bytes.Buffer{}

		s := NewStdio(WithStdin(in), WithStdout(out), WithStdioMaxMessageBytes(10))

		if s.in != in {
			t.Error("expected custom stdin to be used")
		}
		if s.out != out {
			t.Error("expected custom stdout to be used")
		}
		if s.maxMessageBytes != 10 {
			t.Errorf("maxMessageBytes = %d, want 10", s.maxMessageBytes)
		}
	})
}

func TestStdio_Serve(t *testing.T) {
	t.Run("answers each request line in order", func(t *testing.T) {
		input := `{"jsonrpc":"2.0","id":"1","method":"a","params":{}}
{"jsonrpc":"2.0","id":"2","method":"b","params":{}}
{"jsonrpc":"2.0","id":"3","method":"c","params":{}}
`
		msgs := serveStdio(t, input)

		if len(msgs) != 3 {
			t.Fatalf("got %d responses, want 3", len(msgs))
		}
		for i, want := range []string{"1", "2", "3"} {
			if msgs[i]["id"] != want {
				t.Errorf("response %d id = %v, want %s", i, msgs[i]["id"], want)
			}
		}
	})

	t.Run("skips blank lines", func(t *testing.T) {
		input := "\n   \n\t\n" + `{"jsonrpc":"2.0","id":"1","method":"a","params":{}}` + "\n\n"
		msgs := serveStdio(t, input)

		if len(msgs) != 1 {
			t.Fatalf("got %d responses, want 1", len(msgs))
		}
	})

	t.Run("answers unparsable lines and keeps going", func(t *testing.T) {
		input := "not-json\n" + `{"jsonrpc":"2.0","id":"2","method":"a","params":{}}` + "\n"
		msgs := serveStdio(t, input)

		if len(msgs) != 2 {
			t.Fatalf("got %d responses, want 2", len(msgs))
		}
		if errorCode(msgs[0]) != protocol.CodeParseError {
			t.Errorf("code = %v, want %d", errorCode(msgs[0]), protocol.CodeParseError)
		}
		if errorMessage(msgs[0]) != "invalid json" {
			t.Errorf("message = %q, want invalid json", errorMessage(msgs[0]))
		}
		if id, ok := msgs[0]["id"]; !ok || id != nil {
			t.Errorf("expected null id, got %v (present %v)", id, ok)
		}
		if msgs[1]["id"] != "2" {
			t.Errorf("second response id = %v, want 2", msgs[1]["id"])
		}
	})

	t.Run("handles final line without newline", func(t *testing.T) {
		msgs := serveStdio(t, `{"jsonrpc":"2.0","id":"last","method":"a","params":{}}`)

		if len(msgs) != 1 || msgs[0]["id"] != "last" {
			t.Fatalf("unexpected responses: %v", msgs)
		}
	})

	t.Run("tolerates CRLF line endings", func(t *testing.T) {
		msgs := serveStdio(t, "{\"jsonrpc\":\"2.0\",\"id\":\"1\",\"method\":\"a\",\"params\":{}}\r\n")

		if len(msgs) != 1 || msgs[0]["id"] != "1" {
			t.Fatalf("unexpected responses: %v", msgs)
		}
	})

	t.Run("rejects oversized lines and keeps going", func(t *testing.T) {
		big := `{"jsonrpc":"2.0","id":"big","method":"a","params":{"pad":"` + strings.Repeat("x", 8192) + `"}}`
		input := big + "\n" + `{"jsonrpc":"2.0","id":"ok","method":"a","params":{}}` + "\n"

		msgs := serveStdio(t, input, WithStdioMaxMessageBytes(1024))

		if len(msgs) != 2 {
			t.Fatalf("got %d responses, want 2", len(msgs))
		}
		if errorCode(msgs[0]) != protocol.CodeInvalidRequest {
			t.Errorf("code = %v, want %d", errorCode(msgs[0]), protocol.CodeInvalidRequest)
		}
		if errorMessage(msgs[0]) != "message too large" {
			t.Errorf("message = %q", errorMessage(msgs[0]))
		}
		if msgs[1]["id"] != "ok" {
			t.Errorf("second response id = %v, want ok", msgs[1]["id"])
		}
	})

	t.Run("line at the limit is accepted", func(t *testing.T) {
		line := `{"jsonrpc":"2.0","id":"1","method":"a","params":{}}`
		msgs := serveStdio(t, line+"\n", WithStdioMaxMessageBytes(len(line)))

		if len(msgs) != 1 || msgs[0]["id"] != "1" {
			t.Fatalf("unexpected responses: %v", msgs)
		}
	})

	t.Run("converts handler panics", func(t *testing.T) {
		msgs := serveStdio(t, `{"jsonrpc":"2.0","id":"p","method":"panic","params":{}}`+"\n")

		if errorCode(msgs[0]) != protocol.CodeInternalError {
			t.Errorf("code = %v, want %d", errorCode(msgs[0]), protocol.CodeInternalError)
		}
		if msgs[0]["id"] != "p" {
			t.Errorf("id = %v, want p", msgs[0]["id"])
		}
		if strings.Contains(errorMessage(msgs[0]), "exploded") {
			t.Errorf("panic value leaked into message: %q", errorMessage(msgs[0]))
		}
	})

	t.Run("panic replies drop ids the handler would reject", func(t *testing.T) {
		input := `{"jsonrpc":"1.0","id":"p","method":"panic","params":{}}
{"jsonrpc":"2.0","id":7,"method":"nil","params":{}}
`
		msgs := serveStdio(t, input)

		if len(msgs) != 2 {
			t.Fatalf("got %d responses, want 2", len(msgs))
		}
		for i, msg := range msgs {
			if id, ok := msg["id"]; !ok || id != nil {
				t.Errorf("response %d id = %v, want null", i, id)
			}
		}
	})

	t.Run("converts nil responses", func(t *testing.T) {
		msgs := serveStdio(t, `{"jsonrpc":"2.0","id":"n","method":"nil","params":{}}`+"\n")

		if errorCode(msgs[0]) != protocol.CodeInternalError || msgs[0]["id"] != "n" {
			t.Errorf("unexpected response: %v", msgs[0])
		}
	})

	t.Run("replaces unencodable results", func(t *testing.T) {
		msgs := serveStdio(t, `{"jsonrpc":"2.0","id":"u","method":"unencodable","params":{}}`+"\n")

		if errorCode(msgs[0]) != protocol.CodeInternalError || msgs[0]["id"] != "u" {
			t.Errorf("unexpected response: %v", msgs[0])
		}
		if _, ok := msgs[0]["result"]; ok {
			t.Error("expected no result")
		}
	})

	t.Run("marks requests with the transport name", func(t *testing.T) {
		msgs := serveStdio(t, `{"jsonrpc":"2.0","id":"m","method":"meta","params":{}}`+"\n")

		result, _ := msgs[0]["result"].(map[string]any)
		if result["transport"] != "stdio" {
			t.Errorf("transport = %v, want stdio", result["transport"])
		}
	})

	t.Run("stops when context is canceled", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer pw.Close()

		s := NewStdio(WithStdin(pr), WithStdout(io.Discard))
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- s.Serve(ctx, testHandler) }()

		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve() did not return after cancel")
		}
	})

	t.Run("cancel while a line waits behind a busy handler", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer pw.Close()

		var once sync.Once
		started := make(chan struct{})
		release := make(chan struct{})
		handler := HandlerFunc(func(ctx context.Context, payload any) *protocol.Response {
			_, id := protocol.Peek(payload)
			if protocol.GetRequestMeta(ctx, protocol.MetaTransport) != "stdio" {
				t.Error("missing transport metadata")
			}
			once.Do(func() { close(started) })
			<-release
			return protocol.NewResponse(id, map[string]any{})
		})

		s := NewStdio(WithStdin(pr), WithStdout(io.Discard))
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- s.Serve(ctx, handler) }()

		line := `{"jsonrpc":"2.0","id":"1","method":"a","params":{}}` + "\n"
		if _, err := io.WriteString(pw, line); err != nil {
			t.Fatalf("write first line: %v", err)
		}
		<-started
		if _, err := io.WriteString(pw, strings.Replace(line, `"1"`, `"2"`, 1)); err != nil {
			t.Fatalf("write second line: %v", err)
		}

		cancel()
		close(release)

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve() did not return after cancel")
		}
	})

	t.Run("returns write errors", func(t *testing.T) {
		s := NewStdio(
			WithStdin(strings.NewReader(`{"jsonrpc":"2.0","id":"1","method":"a","params":{}}`+"\n")),
			WithStdout(failingWriter{}),
		)

		err := s.Serve(context.Background(), testHandler)
		if err == nil || !strings.Contains(err.Error(), "write stdout") {
			t.Errorf("Serve() error = %v, want write error", err)
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}
