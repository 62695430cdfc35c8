package server

// Info identifies the server in initialize responses.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Build-time server identity.
const (
	DefaultName    = "hephaestus"
	DefaultVersion = "0.1.0"
)

// DefaultInfo returns the build-time server identity.
func DefaultInfo() Info {
	return Info{Name: DefaultName, Version: DefaultVersion}
}

// Option configures a Handler.
type Option func(*Handler)

// WithToolExecutor sets the capability that runs tools.call requests.
func WithToolExecutor(e ToolExecutor) Option {
	return func(h *Handler) {
		h.executor = e
	}
}

// WithToolLister sets the capability that answers tools.list requests.
func WithToolLister(l ToolLister) Option {
	return func(h *Handler) {
		h.lister = l
	}
}

// WithIDPolicy sets which JSON types are accepted as request ids.
func WithIDPolicy(p IDPolicy) Option {
	return func(h *Handler) {
		h.idPolicy = p
	}
}

// WithLegacyToolName accepts params.name as the tool name when params.tool
// is absent. params.tool always takes precedence.
func WithLegacyToolName(enabled bool) Option {
	return func(h *Handler) {
		h.legacyToolName = enabled
	}
}

// Handler is the contract handler. It holds only configuration fixed at
// construction, so Handle is safe for concurrent use.
type Handler struct {
	info           Info
	executor       ToolExecutor
	lister         ToolLister
	idPolicy       IDPolicy
	legacyToolName bool
}

// New creates a handler reporting info in initialize responses.
func New(info Info, opts ...Option) *Handler {
	h := &Handler{
		info:     info,
		idPolicy: IDPolicyString,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Info returns the server identity.
func (h *Handler) Info() Info {
	return h.info
}
