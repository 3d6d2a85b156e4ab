// Package sse implements the streaming HTTP transport: a GET endpoint opens
// a text/event-stream connection identified by a session id, and a POST
// endpoint delivers JSON-RPC frames against that session. The GET request's
// credentials are captured into a session table and reused for every POST
// against that session id — a POST carries no credentials of its own.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/relay"
)

const (
	mcpSessionIDHeader  = "Mcp-Session-Id"
	sessionIDQueryParam = "sessionId"
	pingInterval        = 15 * time.Second
)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

type writeFlusher interface {
	http.ResponseWriter
	http.Flusher
}

// connection is one open event-stream belonging to a session.
type connection struct {
	w  writeFlusher
	mu sync.Mutex
}

func (c *connection) writeEvent(event string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	c.w.Flush()
	return nil
}

// session is a row of the session table: the open connection, when it was
// created, and the credentials captured off the GET request that opened it.
// Every POST against this session id is authenticated with authReq, never
// with the POST's own headers.
type session struct {
	conn      *connection
	authReq   *auth.Request
	createdAt time.Time
}

// Handler adapts a Server to net/http, implementing the streaming HTTP
// transport's two endpoints (GET for the event stream, POST for message
// delivery), keyed by a session id this transport mints and tracks. The
// session table lives in this process's memory: a POST that reaches a
// different process than the GET that opened its session is answered 400 as
// an unknown session. Pairing the underlying Server with sessions/redisstore
// shares only the initialization flag across processes, not this table.
type Handler struct {
	srv *relay.Server
	l   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
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

// NewHandler builds a Handler around srv.
func NewHandler(srv *relay.Server, opts ...Option) *Handler {
	h := &Handler{srv: srv, l: slog.Default(), sessions: map[string]*session{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleStream(w, r)
	case http.MethodPost:
		h.handleMessage(w, r)
	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		w.WriteHeader(http.StatusNotAcceptable)
		return
	}

	wf, ok := w.(writeFlusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := r.Header.Get(mcpSessionIDHeader)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(mcpSessionIDHeader, sessionID)
	w.WriteHeader(http.StatusOK)
	wf.Flush()

	conn := &connection{w: wf}
	sess := &session{conn: conn, authReq: authRequestFrom(r), createdAt: time.Now()}

	h.mu.Lock()
	h.sessions[sessionID] = sess
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.sessions, sessionID)
		h.mu.Unlock()
	}()

	endpoint := fmt.Sprintf(`{"uri":"http://%s/message?sessionId=%s"}`, r.Host, sessionID)
	if err := conn.writeEvent("endpoint", []byte(endpoint)); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case t := <-ticker.C:
			ping := fmt.Sprintf(`{"time":%d}`, t.Unix())
			if err := conn.writeEvent("ping", []byte(ping)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		return
	}

	sessionID := sessionIDFrom(r)
	if sessionID == "" {
		http.Error(w, "missing "+sessionIDQueryParam, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	sess, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusBadRequest)
		return
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp := h.srv.Handle(r.Context(), sessionID, body, sess.authReq)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

// sessionIDFrom reads the session id the client is addressing, preferring
// the "sessionId" query parameter — the form advertised in the endpoint
// event — and falling back to the Mcp-Session-Id header for a client that
// sets it directly instead.
func sessionIDFrom(r *http.Request) string {
	if id := r.URL.Query().Get(sessionIDQueryParam); id != "" {
		return id
	}
	return r.Header.Get(mcpSessionIDHeader)
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
