// Package httprpc implements a plain request/response HTTP transport: one
// JSON-RPC frame per POST body, one JSON-RPC frame (or empty body, for a
// notification) per response.
package httprpc

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/internal/jsonrpc"
	"github.com/relaymcp/relay/relay"
)

const (
	mcpSessionIDHeader  = "Mcp-Session-Id"
	authorizationHeader = "Authorization"

	defaultPath = "/mcp"
	healthPath  = "/health"
)

// Handler adapts a Server to net/http. Each request is dispatched under the
// session named by the Mcp-Session-Id header, or the empty (implicit)
// session when absent. It owns its own routing (POST/OPTIONS on the
// configured path, GET on /health) rather than requiring an external mux.
type Handler struct {
	srv  *relay.Server
	l    *slog.Logger
	path string
}

var _ http.Handler = (*Handler)(nil)

// Option customizes a Handler.
type Option func(*Handler)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.l = l
		}
	}
}

// WithPath overrides the path the JSON-RPC endpoint is served on. Defaults
// to "/mcp".
func WithPath(path string) Option {
	return func(h *Handler) {
		if path != "" {
			h.path = path
		}
	}
}

// NewHandler builds a Handler around srv.
func NewHandler(srv *relay.Server, opts ...Option) *Handler {
	h := &Handler{srv: srv, l: slog.Default(), path: defaultPath}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	if path == "" {
		path = "/"
	}

	if path == healthPath {
		h.handleHealth(w, r)
		return
	}
	if path != h.path {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.handleRPC(w, r)
	case http.MethodOptions:
		h.handleOptions(w, r)
	default:
		w.Header().Set("Allow", http.MethodPost+", "+http.MethodOptions)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-TOKEN")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 8*1024*1024))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeEnvelopeError(w, http.StatusBadRequest, jsonrpc.ErrorCodeInvalidRequest, "Invalid Request: empty body")
		return
	}

	authReq := authRequestFrom(r)
	sessionID := r.Header.Get(mcpSessionIDHeader)

	resp := h.srv.Handle(r.Context(), sessionID, body, authReq)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

// writeEnvelopeError writes a transport-level rejection as a JSON-RPC error
// envelope under the given HTTP status, distinct from a dispatcher-produced
// ParseError envelope, which always rides back at 200 per the MCP
// convention.
func writeEnvelopeError(w http.ResponseWriter, status int, code jsonrpc.ErrorCode, message string) {
	b, err := jsonrpc.EncodeError(nil, code, message, nil)
	if err != nil {
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func authRequestFrom(r *http.Request) *auth.Request {
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[toLower(k)] = r.Header.Get(k)
	}
	query := make(map[string]string, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	return &auth.Request{Headers: headers, Query: query}
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
