// Package testutil provides helpers for testing contract handlers.
//
// A TestClient drives any transport.Handler in process, encoding each
// request to JSON and decoding it again so handlers see exactly what a
// transport would hand them:
//
//	func TestPing(t *testing.T) {
//	    reg := tools.NewBlenderRegistry(tools.NewMemoryScene())
//	    h := server.New(server.DefaultInfo(), server.WithToolExecutor(reg))
//
//	    tc := testutil.NewTestClient(t, h)
//	    data := tc.CallTool("blender.ping", nil)
//	    if data["message"] != "pong" {
//	        t.Errorf("unexpected result: %v", data)
//	    }
//	}
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/felixgeelhaar/hephaestus/protocol"
	"github.com/felixgeelhaar/hephaestus/transport"
)

// TestClient sends requests to a handler in process.
type TestClient struct {
	t       testing.TB
	handler transport.Handler
	ctx     context.Context

	mu    sync.Mutex
	reqID int64
}

// NewTestClient creates a test client for handler.
func NewTestClient(t testing.TB, handler transport.Handler) *TestClient {
	t.Helper()
	return &TestClient{
		t:       t,
		handler: handler,
		ctx:     context.Background(),
	}
}

// WithContext returns a copy of the client that passes ctx to the handler.
func (tc *TestClient) WithContext(ctx context.Context) *TestClient {
	return &TestClient{t: tc.t, handler: tc.handler, ctx: ctx}
}

func (tc *TestClient) nextID() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.reqID++
	return strconv.FormatInt(tc.reqID, 10)
}

// Send encodes payload as JSON, decodes it the way transports do, and
// hands the result to the handler. The envelope invariants are checked on
// the response.
func (tc *TestClient) Send(payload any) *protocol.Response {
	tc.t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		tc.t.Fatalf("marshal payload: %v", err)
	}
	return tc.SendRaw(string(data))
}

// SendRaw decodes line as one JSON value and hands it to the handler.
func (tc *TestClient) SendRaw(line string) *protocol.Response {
	tc.t.Helper()

	decoded, err := protocol.DecodePayload([]byte(line))
	if err != nil {
		tc.t.Fatalf("decode payload %q: %v", line, err)
	}

	resp := tc.handler.Handle(tc.ctx, decoded)
	AssertEnvelope(tc.t, resp)
	return resp
}

// Call sends a request for method with a fresh string id.
func (tc *TestClient) Call(method string, params map[string]any) *protocol.Response {
	tc.t.Helper()
	if params == nil {
		params = map[string]any{}
	}
	return tc.Send(protocol.NewRequest(tc.nextID(), method, params))
}

// CallTool invokes a tool and returns its data, failing the test on an
// error envelope.
func (tc *TestClient) CallTool(name string, args map[string]any) map[string]any {
	tc.t.Helper()
	if args == nil {
		args = map[string]any{}
	}

	resp := tc.Call(protocol.MethodToolsCall, map[string]any{"tool": name, "arguments": args})
	result := AssertResult(tc.t, resp)
	if ok, _ := result["ok"].(bool); !ok {
		tc.t.Fatalf("tool %s: result missing ok=true: %v", name, result)
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		tc.t.Fatalf("tool %s: data is %T, want object", name, result["data"])
	}
	return data
}

// ListTools returns the listed tools in their wire form.
func (tc *TestClient) ListTools() []map[string]any {
	tc.t.Helper()

	wire := Wire(tc.t, tc.Call(protocol.MethodToolsList, nil))
	result, _ := wire["result"].(map[string]any)
	raw, ok := result["tools"].([]any)
	if !ok {
		tc.t.Fatalf("tools.list result has no tools list: %v", wire)
	}

	tools := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			tc.t.Fatalf("tool entry is %T, want object", item)
		}
		tools = append(tools, m)
	}
	return tools
}

// AssertToolExists fails the test unless a tool named name is listed.
func (tc *TestClient) AssertToolExists(name string) {
	tc.t.Helper()
	for _, tool := range tc.ListTools() {
		if tool["name"] == name {
			return
		}
	}
	tc.t.Errorf("tool %q not found", name)
}

// AssertEnvelope checks the invariants every response must satisfy: it is
// non-nil, carries version "2.0", and has exactly one of result and error.
func AssertEnvelope(t testing.TB, resp *protocol.Response) {
	t.Helper()

	if resp == nil {
		t.Fatal("handler returned nil response")
	}
	if resp.JSONRPC != protocol.JSONRPCVersion {
		t.Errorf("jsonrpc = %q, want %q", resp.JSONRPC, protocol.JSONRPCVersion)
	}
	if (resp.Result == nil) == (resp.Error == nil) {
		t.Errorf("response must carry exactly one of result and error: %+v", resp)
	}
}

// AssertResult fails the test on an error envelope and returns the result.
func AssertResult(t testing.TB, resp *protocol.Response) map[string]any {
	t.Helper()
	AssertEnvelope(t, resp)
	if resp.Error != nil {
		t.Fatalf("unexpected error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result
}

// AssertError fails the test unless resp is an error envelope with code
// and, when msg is not empty, message msg.
func AssertError(t testing.TB, resp *protocol.Response, code int, msg string) {
	t.Helper()
	AssertEnvelope(t, resp)
	if resp.Error == nil {
		t.Fatalf("expected error %d, got result %v", code, resp.Result)
	}
	if resp.Error.Code != code {
		t.Errorf("error code = %d, want %d (message %q)", resp.Error.Code, code, resp.Error.Message)
	}
	if msg != "" && resp.Error.Message != msg {
		t.Errorf("error message = %q, want %q", resp.Error.Message, msg)
	}
}

// AssertID fails the test unless the response id, in wire form, equals
// want. Numbers compare by their JSON text, so 1 and json.Number("1")
// match.
func AssertID(t testing.TB, resp *protocol.Response, want any) {
	t.Helper()
	if got, w := wireText(t, resp.ID), wireText(t, want); got != w {
		t.Errorf("id = %s, want %s", got, w)
	}
}

// Wire encodes resp and decodes it into generic JSON values, for
// assertions on exactly what a transport would send.
func Wire(t testing.TB, resp *protocol.Response) map[string]any {
	t.Helper()

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return out
}

func wireText(t testing.TB, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %v: %v", v, err)
	}
	return string(data)
}

// Payload builds a request payload with the given members. Members set to
// Omit are left out, which is how tests build malformed envelopes.
func Payload(id, method, params any) map[string]any {
	p := map[string]any{"jsonrpc": protocol.JSONRPCVersion}
	for key, v := range map[string]any{"id": id, "method": method, "params": params} {
		if v != Omit {
			p[key] = v
		}
	}
	return p
}

type omit struct{}

func (omit) String() string { return "<omitted>" }

// Omit marks a member that Payload leaves out.
var Omit fmt.Stringer = omit{}
