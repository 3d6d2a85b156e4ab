// Package relay is the public façade of the framework: it wires a
// registry, an optional auth provider, middleware, and an optional session
// store into a Dispatcher and exposes the single operation a transport
// needs — Handle.
package relay

import (
	"context"
	"log/slog"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/internal/dispatch"
	"github.com/relaymcp/relay/mcp"
	"github.com/relaymcp/relay/middleware"
	"github.com/relaymcp/relay/registry"
	"github.com/relaymcp/relay/sessions"
)

// Option configures a Server.
type Option func(*config)

type config struct {
	authProvider auth.Provider
	authRequired bool
	middleware   []middleware.Middleware
	serverInfo   mcp.ImplementationInfo
	instructions string
	sessionStore sessions.Store
	logger       *slog.Logger
}

// WithAuthProvider installs the provider consulted for every non-public
// method.
func WithAuthProvider(p auth.Provider) Option {
	return func(c *config) { c.authProvider = p }
}

// WithAuthRequired rejects any request that authenticates as
// Unauthenticated, rather than letting it proceed anonymously.
func WithAuthRequired() Option {
	return func(c *config) { c.authRequired = true }
}

// WithMiddleware appends middleware to the chain, in the order given; index
// 0's OnRequest hook is the outermost layer.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(c *config) { c.middleware = append(c.middleware, mw...) }
}

// WithServerInfo sets the name/version advertised in initialize.
func WithServerInfo(name, version string) Option {
	return func(c *config) { c.serverInfo = mcp.ImplementationInfo{Name: name, Version: version} }
}

// WithInstructions sets the optional free-text instructions advertised in
// initialize.
func WithInstructions(instructions string) Option {
	return func(c *config) { c.instructions = instructions }
}

// WithSessionStore replaces the default in-process initialization flag with
// a sessions.Store, letting a session's initialize state survive a request
// landing on a different process instance.
func WithSessionStore(store sessions.Store) Option {
	return func(c *config) { c.sessionStore = store }
}

// WithLogger sets the base logger every dispatched request logs through.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Server is the assembled framework instance: a Registry to populate before
// serving, and a Dispatcher wired around it.
type Server struct {
	registry *registry.Registry
	dispatch *dispatch.Dispatcher
}

// New builds a Server around reg. Callers populate reg with tools,
// resources, resource templates, and prompts before calling Handle for the
// first time; the registry is safe for concurrent reads once serving
// begins, but is not designed for hot registration.
func New(reg *registry.Registry, opts ...Option) *Server {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	dispatchOpts := []dispatch.Option{
		dispatch.WithServerInfo(cfg.serverInfo),
		dispatch.WithInstructions(cfg.instructions),
	}
	if cfg.authProvider != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithAuthProvider(cfg.authProvider))
	}
	if cfg.authRequired {
		dispatchOpts = append(dispatchOpts, dispatch.WithAuthRequired())
	}
	if len(cfg.middleware) > 0 {
		dispatchOpts = append(dispatchOpts, dispatch.WithMiddleware(cfg.middleware...))
	}
	if cfg.sessionStore != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithSessionStore(cfg.sessionStore))
	}
	if cfg.logger != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithLogger(cfg.logger))
	}

	return &Server{
		registry: reg,
		dispatch: dispatch.New(reg, dispatchOpts...),
	}
}

// Registry returns the underlying Registry, for transports and callers that
// need to introspect what's registered (e.g. the CLI's inspect subcommand).
func (s *Server) Registry() *registry.Registry { return s.registry }

// Handle processes a single JSON-RPC frame and returns the bytes to write
// back, or nil when the frame was a notification. sessionID scopes the
// initialization flag when a sessions.Store is configured; transports with
// no session concept pass the empty string.
func (s *Server) Handle(ctx context.Context, sessionID string, raw []byte, authReq *auth.Request) []byte {
	return s.dispatch.Handle(ctx, sessionID, raw, authReq)
}
