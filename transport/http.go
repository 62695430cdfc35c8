package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/felixgeelhaar/hephaestus/middleware"
	"github.com/felixgeelhaar/hephaestus/protocol"
)

// DefaultPath is the only route served by the HTTP transport.
const DefaultPath = "/mcp"

// RequestIDHeader carries a caller supplied correlation id.
const RequestIDHeader = "X-Request-ID"

// HTTP serves one JSON-RPC exchange per POST request. Every reply, including
// errors for unknown routes, is a response envelope with status 200.
type HTTP struct {
	addr            string
	path            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	drainDelay      time.Duration
	maxMessageBytes int64
	cors            *CORSPolicy
	logger          middleware.Logger

	mu         sync.RWMutex
	listenAddr string
	server     *http.Server
	drain      *Drainer
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.readTimeout = d
	}
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.writeTimeout = d
	}
}

// WithHTTPPath overrides the request path.
func WithHTTPPath(path string) HTTPOption {
	return func(h *HTTP) {
		if path != "" {
			h.path = path
		}
	}
}

// WithHTTPMaxMessageBytes sets the largest accepted request body.
func WithHTTPMaxMessageBytes(n int64) HTTPOption {
	return func(h *HTTP) {
		if n > 0 {
			h.maxMessageBytes = n
		}
	}
}

// WithHTTPLogger sets the logger for transport faults.
func WithHTTPLogger(l Logger) HTTPOption {
	return func(h *HTTP) {
		h.logger = nopIfNil(l)
	}
}

// NewHTTP creates a new HTTP transport.
func NewHTTP(addr string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		addr:            addr,
		path:            DefaultPath,
		readTimeout:     30 * time.Second,
		writeTimeout:    30 * time.Second,
		shutdownTimeout: 5 * time.Second,
		maxMessageBytes: DefaultMaxMessageBytes,
		logger:          middleware.NopLogger{},
	}

	for _, opt := range opts {
		opt(h)
	}

	h.drain = NewDrainer()

	return h
}

// Addr returns the configured address.
func (h *HTTP) Addr() string {
	return h.addr
}

// ListenAddr returns the actual address the server is listening on.
func (h *HTTP) ListenAddr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listenAddr
}

// Serve starts the HTTP server and handles requests until ctx is canceled.
// On cancellation new requests are refused while in-flight ones drain.
func (h *HTTP) Serve(ctx context.Context, handler Handler) error {
	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	h.mu.Lock()
	h.listenAddr = listener.Addr().String()
	h.server = &http.Server{
		Handler:      h.Handler(handler),
		ReadTimeout:  h.readTimeout,
		WriteTimeout: h.writeTimeout,
	}
	server := h.server
	h.mu.Unlock()

	h.logger.Info("http transport listening", middleware.F("addr", h.ListenAddr()), middleware.F("path", h.path))

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout+h.drainDelay)
		defer cancel()
		if err := h.drain.Drain(shutdownCtx, h.drainDelay); err != nil {
			h.logger.Warn("requests still in flight at shutdown", middleware.F("in_flight", h.drain.Active()))
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler returns the HTTP handler serving handler at the configured path.
func (h *HTTP) Handler(handler Handler) http.Handler {
	r := chi.NewRouter()
	if h.cors != nil {
		r.Use(h.cors.Middleware())
	}
	r.Use(chimw.RealIP)

	r.Post(h.path, func(w http.ResponseWriter, req *http.Request) {
		h.handleMCP(w, req, handler)
	})

	unsupported := func(w http.ResponseWriter, _ *http.Request) {
		h.writeEnvelope(w, protocol.NewErrorResponse(nil, protocol.NewMethodNotFound(msgUnsupportedRoute)))
	}
	r.NotFound(unsupported)
	r.MethodNotAllowed(unsupported)

	return r
}

func (h *HTTP) handleMCP(w http.ResponseWriter, r *http.Request, handler Handler) {
	if !h.drain.Enter() {
		h.writeEnvelope(w, protocol.NewErrorResponse(nil, protocol.NewInternalError(msgShuttingDown)))
		return
	}
	defer h.drain.Leave()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxMessageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("message too large",
				middleware.F("kind", string(protocol.KindMalformedEnvelope)),
				middleware.F("limit", tooLarge.Limit),
			)
			h.writeEnvelope(w, protocol.NewErrorResponse(nil, protocol.NewInvalidRequest(msgTooLarge)))
			return
		}
		h.logger.Debug("failed to read request body", middleware.F("error", err.Error()))
		h.writeEnvelope(w, protocol.NewErrorResponse(nil, protocol.NewParseError(msgInvalidJSON)))
		return
	}

	ctx := protocol.SetRequestMeta(r.Context(), protocol.MetaTransport, "http")
	ctx = protocol.SetRequestMeta(ctx, protocol.MetaRemoteAddr, r.RemoteAddr)
	if id := r.Header.Get(RequestIDHeader); id != "" {
		ctx = protocol.SetRequestMeta(ctx, protocol.MetaRequestID, id)
	}

	h.writeEnvelope(w, dispatch(ctx, handler, h.logger, body))
}

func (h *HTTP) writeEnvelope(w http.ResponseWriter, resp *protocol.Response) {
	data := encode(resp, h.logger)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("failed to write response", middleware.F("error", err.Error()))
	}
}
