package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/hephaestus/middleware"
	"github.com/felixgeelhaar/hephaestus/protocol"
)

// WebSocket serves one envelope per text frame. Frames on one connection
// are handled in order; connections are handled concurrently.
type WebSocket struct {
	addr            string
	upgrader        websocket.Upgrader
	logger          middleware.Logger
	maxMessageBytes int64

	readTimeout  time.Duration
	writeTimeout time.Duration

	drain *Drainer

	mu         sync.RWMutex
	listenAddr string
	clients    map[*wsClient]struct{}
}

// wsClient represents a single WebSocket connection.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithWebSocketReadTimeout sets the idle timeout between frames.
func WithWebSocketReadTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.readTimeout = d
	}
}

// WithWebSocketWriteTimeout sets the write timeout for response frames.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return func(ws *WebSocket) {
		ws.writeTimeout = d
	}
}

// WithWebSocketAllowedOrigins accepts upgrades only from the given origins,
// matched like the HTTP CORS policy. Requests without an Origin header,
// which browsers always send, are accepted. An empty list leaves the
// default of accepting every origin.
func WithWebSocketAllowedOrigins(origins ...string) WebSocketOption {
	return func(ws *WebSocket) {
		if len(origins) == 0 {
			return
		}
		policy := CORSPolicy{Origins: origins}
		ws.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || policy.allowed(origin) != ""
		}
	}
}

// WithWebSocketMaxMessageBytes sets the largest accepted frame. A larger
// frame closes the connection, since the protocol offers no way to skip it.
func WithWebSocketMaxMessageBytes(n int64) WebSocketOption {
	return func(ws *WebSocket) {
		if n > 0 {
			ws.maxMessageBytes = n
		}
	}
}

// WithWebSocketLogger sets the logger for transport faults.
func WithWebSocketLogger(l Logger) WebSocketOption {
	return func(ws *WebSocket) {
		ws.logger = nopIfNil(l)
	}
}

// NewWebSocket creates a new WebSocket transport.
func NewWebSocket(addr string, opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:          middleware.NopLogger{},
		maxMessageBytes: DefaultMaxMessageBytes,
		readTimeout:     60 * time.Second,
		writeTimeout:    10 * time.Second,
		drain:           NewDrainer(),
		clients:         make(map[*wsClient]struct{}),
	}

	for _, opt := range opts {
		opt(ws)
	}

	return ws
}

// Addr returns the transport address.
func (ws *WebSocket) Addr() string {
	return ws.addr
}

// ListenAddr returns the actual address the server is listening on.
func (ws *WebSocket) ListenAddr() string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.listenAddr
}

// Serve starts the WebSocket server and blocks until ctx is canceled.
func (ws *WebSocket) Serve(ctx context.Context, handler Handler) error {
	listener, err := net.Listen("tcp", ws.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	ws.mu.Lock()
	ws.listenAddr = listener.Addr().String()
	ws.mu.Unlock()

	server := &http.Server{
		Handler: ws.Handler(ctx, handler),
	}

	ws.logger.Info("websocket transport listening", middleware.F("addr", ws.ListenAddr()))

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ws.drain.Drain(shutdownCtx, 0); err != nil {
			ws.logger.Warn("frames still in flight at shutdown", middleware.F("in_flight", ws.drain.Active()))
		}
		ws.closeAllClients()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Handler returns the HTTP handler that upgrades connections and serves
// them with handler until ctx is canceled.
func (ws *WebSocket) Handler(ctx context.Context, handler Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.handleConnection(ctx, w, r, handler)
	})
}

func (ws *WebSocket) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request, handler Handler) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Debug("websocket upgrade failed", middleware.F("error", err.Error()))
		return
	}
	conn.SetReadLimit(ws.maxMessageBytes)

	client := &wsClient{conn: conn}

	ws.mu.Lock()
	ws.clients[client] = struct{}{}
	ws.mu.Unlock()

	defer func() {
		ws.mu.Lock()
		delete(ws.clients, client)
		ws.mu.Unlock()
		_ = conn.Close()
	}()

	connCtx := protocol.SetRequestMeta(ctx, protocol.MetaTransport, "websocket")
	connCtx = protocol.SetRequestMeta(connCtx, protocol.MetaRemoteAddr, r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ws.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(ws.readTimeout))
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				ws.logger.Warn("message too large",
					middleware.F("kind", string(protocol.KindMalformedEnvelope)),
					middleware.F("limit", ws.maxMessageBytes),
				)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Debug("websocket closed", middleware.F("error", err.Error()))
			}
			return
		}

		if err := ws.exchange(connCtx, client, handler, message); err != nil {
			ws.logger.Debug("failed to write response", middleware.F("error", err.Error()))
			return
		}
	}
}

// exchange answers one frame. Frames arriving after draining started get
// a shutdown error instead of reaching handler.
func (ws *WebSocket) exchange(ctx context.Context, client *wsClient, handler Handler, message []byte) error {
	if !ws.drain.Enter() {
		resp := protocol.NewErrorResponse(nil, protocol.NewInternalError(msgShuttingDown))
		return client.write(encode(resp, ws.logger), ws.writeTimeout)
	}
	defer ws.drain.Leave()

	resp := dispatch(ctx, handler, ws.logger, message)
	return client.write(encode(resp, ws.logger), ws.writeTimeout)
}

func (ws *WebSocket) closeAllClients() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for client := range ws.clients {
		client.close()
	}
}

func (c *wsClient) write(data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}
