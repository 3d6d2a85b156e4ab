// Package dispatch implements the protocol state machine and method router
// at the heart of the framework: it validates the JSON-RPC envelope,
// enforces the initialization order, runs authentication, wraps the
// selected terminal handler in the middleware chain, and encodes the
// result or error back to wire bytes.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/internal/jsonrpc"
	"github.com/relaymcp/relay/internal/logctx"
	"github.com/relaymcp/relay/mcp"
	"github.com/relaymcp/relay/middleware"
	"github.com/relaymcp/relay/registry"
	"github.com/relaymcp/relay/sessions"
)

// defaultInitTTL bounds how long a sessions.Store-backed initialization flag
// stays valid before a client would need to re-initialize.
const defaultInitTTL = 24 * time.Hour

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAuthProvider installs the provider consulted for every non-public
// method.
func WithAuthProvider(p auth.Provider) Option {
	return func(d *Dispatcher) { d.authProvider = p }
}

// WithAuthRequired makes an Unauthenticated auth result (as opposed to
// Failed) also produce an Unauthorized error, rather than proceeding
// anonymously.
func WithAuthRequired() Option {
	return func(d *Dispatcher) { d.authRequired = true }
}

// WithMiddleware appends middleware to the chain, in the order given.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(d *Dispatcher) { d.chain = append(d.chain, mw...) }
}

// WithServerInfo sets the name/version advertised in initialize.
func WithServerInfo(info mcp.ImplementationInfo) Option {
	return func(d *Dispatcher) { d.serverInfo = info }
}

// WithInstructions sets the optional free-text instructions advertised in
// initialize.
func WithInstructions(instructions string) Option {
	return func(d *Dispatcher) { d.instructions = instructions }
}

// WithSessionStore replaces the default in-process initialization flag with
// a sessions.Store, letting initialization state survive a request landing
// on a different process instance than the one that initialized it.
func WithSessionStore(store sessions.Store) Option {
	return func(d *Dispatcher) { d.sessionStore = store }
}

// WithLogger sets the base logger; request/session/rpc attributes are
// layered on top of it per call via internal/logctx.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// Dispatcher is the protocol state machine and method router.
type Dispatcher struct {
	registry     *registry.Registry
	chain        middleware.Chain
	authProvider auth.Provider
	authRequired bool
	serverInfo   mcp.ImplementationInfo
	instructions string
	sessionStore sessions.Store
	logger       *slog.Logger

	mu          sync.Mutex
	initialized atomic.Bool
}

// New builds a Dispatcher around reg.
func New(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// preInitWhitelist is the set of methods legal before initialize completes.
var preInitWhitelist = map[string]bool{
	string(mcp.InitializeMethod):              true,
	string(mcp.InitializedNotificationMethod): true,
	string(mcp.PingMethod):                    true,
	string(mcp.ToolsListMethod):               true,
	string(mcp.ResourcesListMethod):           true,
	string(mcp.ResourcesTemplatesListMethod):  true,
	string(mcp.PromptsListMethod):             true,
}

// publicMethods skip authentication regardless of whether a provider is
// configured.
var publicMethods = map[string]bool{
	string(mcp.InitializeMethod):              true,
	string(mcp.InitializedNotificationMethod): true,
	string(mcp.PingMethod):                    true,
}

// Handle processes a single JSON-RPC frame and returns the bytes to write
// back, or nil when the frame was a notification (no response expected).
// sessionID scopes the initialization flag when a sessions.Store is
// configured; transports with no meaningful session concept (stdio) pass
// the empty string, which is equivalent to a single implicit session.
func (d *Dispatcher) Handle(ctx context.Context, sessionID string, raw []byte, authReq *auth.Request) []byte {
	req, err := jsonrpc.Parse(raw)
	if err != nil {
		if pe, ok := err.(*jsonrpc.ProtocolError); ok {
			b, _ := jsonrpc.EncodeError(nil, pe.Code, pe.Message, pe.Data)
			return b
		}
		b, _ := jsonrpc.EncodeError(nil, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
		return b
	}

	if req.IsNotification() {
		d.handleNotification(ctx, req)
		return nil
	}

	result, protoErr := d.handleRequest(ctx, sessionID, req, authReq)
	if protoErr != nil {
		b, _ := jsonrpc.EncodeError(req.ID, protoErr.Code, protoErr.Message, protoErr.Data)
		return b
	}
	b, err := jsonrpc.EncodeResult(req.ID, result, nil)
	if err != nil {
		b, _ = jsonrpc.EncodeError(req.ID, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
	}
	return b
}

func (d *Dispatcher) handleNotification(ctx context.Context, req *jsonrpc.Request) {
	ctx, logger := d.loggerFor(ctx, req, "")
	switch req.Method {
	case string(mcp.CancelledNotificationMethod):
		logger.InfoContext(ctx, "dispatch.notification.cancelled")
	case string(mcp.ProgressNotificationMethod):
		logger.InfoContext(ctx, "dispatch.notification.progress")
	case string(mcp.InitializedNotificationMethod):
		logger.InfoContext(ctx, "dispatch.notification.initialized")
	default:
		logger.InfoContext(ctx, "dispatch.notification.unknown", slog.String("method", req.Method))
	}
}

func (d *Dispatcher) handleRequest(ctx context.Context, sessionID string, req *jsonrpc.Request, authReq *auth.Request) (any, *jsonrpc.ProtocolError) {
	start := time.Now()
	method := req.Method
	ctx, logger := d.loggerFor(ctx, req, sessionID)

	var user *auth.User
	var workspace string

	if d.authProvider != nil && !publicMethods[method] {
		ar := authReq
		if ar == nil {
			ar = &auth.Request{}
		}
		result, err := d.authProvider.Authenticate(ctx, ar)
		if err != nil {
			logger.ErrorContext(ctx, "dispatch.auth.error", slog.String("error", err.Error()))
			return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInternalError, err.Error(), nil)
		}
		switch {
		case result.IsFailed():
			return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeUnauthorized, result.Reason(), nil)
		case result.IsSuccess():
			user = result.User()
			workspace = result.Workspace()
		default: // Unauthenticated
			if d.authRequired {
				return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeUnauthorized, "authentication required", nil)
			}
		}
	}

	initialized, err := d.isInitialized(ctx, sessionID)
	if err != nil {
		return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInternalError, err.Error(), nil)
	}
	if !initialized && !preInitWhitelist[method] {
		return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInvalidRequest, "Server not initialized", nil)
	}

	mctx := middleware.NewContext(req, mcp.Method(method), start).WithUser(user).WithWorkspace(workspace)
	mctx.SetAttribute(middleware.AuthRequestAttribute, authReq)

	terminal := d.terminal(ctx, sessionID, req, mctx, logger)
	wrapped := d.chain.Wrap(mcp.Method(method), terminal)

	result, err := wrapped(mctx)
	if err != nil {
		if pe, ok := err.(*jsonrpc.ProtocolError); ok {
			logger.WarnContext(ctx, "dispatch.handle.error", slog.String("method", method), slog.Int("code", int(pe.Code)))
			return nil, pe
		}
		logger.ErrorContext(ctx, "dispatch.handle.error", slog.String("method", method), slog.String("error", err.Error()))
		return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInternalError, err.Error(), nil)
	}

	logger.InfoContext(ctx, "dispatch.handle.ok",
		slog.String("method", method),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}

// loggerFor enriches ctx with the request/session/rpc correlation
// attributes internal/logctx's slog.Handler wrapper looks for, and returns
// both — callers must use the returned ctx for every subsequent log call,
// not the one they passed in, or the correlation groups never attach.
func (d *Dispatcher) loggerFor(ctx context.Context, req *jsonrpc.Request, sessionID string) (context.Context, *slog.Logger) {
	kind := "request"
	id := ""
	if req.ID != nil {
		id = req.ID.String()
	} else {
		kind = "notification"
	}
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: id, Type: kind})
	if sessionID != "" {
		ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sessionID})
	}
	return ctx, d.logger
}

func (d *Dispatcher) isInitialized(ctx context.Context, sessionID string) (bool, error) {
	if d.sessionStore != nil {
		return d.sessionStore.IsInitialized(ctx, sessionID)
	}
	return d.initialized.Load(), nil
}

func (d *Dispatcher) markInitialized(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sessionStore != nil {
		return d.sessionStore.MarkInitialized(ctx, sessionID, defaultInitTTL)
	}
	d.initialized.Store(true)
	return nil
}
