package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// DefaultProviderURL is the endpoint of a local HTTP provider.
const DefaultProviderURL = "http://127.0.0.1:8765/mcp"

// HTTPTransport posts each request to a provider endpoint.
type HTTPTransport struct {
	url             string
	client          *http.Client
	maxMessageBytes int64
}

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithHTTPTimeout sets the timeout of the default HTTP client.
func WithHTTPTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client = &http.Client{Timeout: d}
	}
}

// WithResponseLimit caps the size of a response body.
func WithResponseLimit(n int64) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.maxMessageBytes = n
	}
}

// NewHTTPTransport creates a transport posting to url. An empty url
// selects DefaultProviderURL.
func NewHTTPTransport(url string, opts ...HTTPTransportOption) *HTTPTransport {
	if url == "" {
		url = DefaultProviderURL
	}
	t := &HTTPTransport{
		url:             url,
		client:          &http.Client{Timeout: 30 * time.Second},
		maxMessageBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// URL returns the provider endpoint.
func (t *HTTPTransport) URL() string {
	return t.url
}

// Send posts req and decodes the response envelope. Network failures and
// non-2xx statuses are reported as "http error: ...".
func (t *HTTPTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("http error: status %d", httpResp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, t.maxMessageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	if int64(len(data)) > t.maxMessageBytes {
		return nil, fmt.Errorf("http error: response exceeds %d bytes", t.maxMessageBytes)
	}

	resp, _, err := decodeResponse(data)
	return resp, err
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
