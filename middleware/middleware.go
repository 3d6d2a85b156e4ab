// Package middleware implements the ordered interceptor chain the
// dispatcher wraps around every terminal method handler: each entry exposes
// up to seven optional hooks keyed by MCP method, plus a catch-all, with
// short-circuit and mutation support.
package middleware

import (
	"time"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/mcp"
)

// Context is passed to every hook for the duration of one request. Message
// identity (Message, Method, Timestamp) is fixed at construction; User and
// Workspace change only through WithUser/WithWorkspace, which return a new
// Context rather than mutating this one. Attributes is a mutable map shared
// by every hook and the dispatcher for this request.
type Context struct {
	Message   any
	Method    mcp.Method
	Timestamp time.Time
	User      *auth.User
	Workspace string

	attributes map[string]any
}

// NewContext builds a Context for one request.
func NewContext(message any, method mcp.Method, timestamp time.Time) *Context {
	return &Context{Message: message, Method: method, Timestamp: timestamp, attributes: map[string]any{}}
}

// WithUser returns a copy of ctx with User set to user.
func (c *Context) WithUser(user *auth.User) *Context {
	cp := *c
	cp.User = user
	return &cp
}

// WithWorkspace returns a copy of ctx with Workspace set to workspace.
func (c *Context) WithWorkspace(workspace string) *Context {
	cp := *c
	cp.Workspace = workspace
	return &cp
}

// AuthRequestAttribute is the attribute key under which the dispatcher
// stores the incoming auth.Request so authentication middleware can read
// it.
const AuthRequestAttribute = "authRequest"

// SetAttribute stores a value visible to every hook processing this
// request.
func (c *Context) SetAttribute(key string, value any) {
	if c.attributes == nil {
		c.attributes = map[string]any{}
	}
	c.attributes[key] = value
}

// GetAttribute reads a previously stored attribute.
func (c *Context) GetAttribute(key string) (any, bool) {
	v, ok := c.attributes[key]
	return v, ok
}

// HasAttribute reports whether key was previously stored.
func (c *Context) HasAttribute(key string) bool {
	_, ok := c.attributes[key]
	return ok
}

// Next invokes the next layer of the chain (or the terminal handler once
// every layer has run).
type Next func(ctx *Context) (any, error)

// Hook intercepts one request. It either returns next(ctx) — optionally
// mutating the result — or returns a replacement result without calling
// next, short-circuiting the remainder of the chain.
type Hook func(ctx *Context, next Next) (any, error)

// Middleware is one entry in the chain. Every field is optional; a method
// with no matching hook here falls through to OnRequest, and a request with
// neither runs the terminal handler directly.
type Middleware struct {
	OnInitialize    Hook
	OnCallTool      Hook
	OnListTools     Hook
	OnReadResource  Hook
	OnListResources Hook
	OnGetPrompt     Hook
	OnListPrompts   Hook
	OnRequest       Hook
}

// hookFor returns the method-specific hook for method, or nil when the
// method has none (either not in the routing table, or the middleware left
// that field unset).
func (m Middleware) hookFor(method mcp.Method) Hook {
	switch method {
	case mcp.InitializeMethod:
		return m.OnInitialize
	case mcp.ToolsCallMethod:
		return m.OnCallTool
	case mcp.ToolsListMethod:
		return m.OnListTools
	case mcp.ResourcesReadMethod:
		return m.OnReadResource
	case mcp.ResourcesListMethod, mcp.ResourcesTemplatesListMethod:
		return m.OnListResources
	case mcp.PromptsGetMethod:
		return m.OnGetPrompt
	case mcp.PromptsListMethod:
		return m.OnListPrompts
	default:
		return nil
	}
}

// Chain is an ordered sequence of Middleware entries.
type Chain []Middleware

// Wrap builds the fully wrapped handler for method around terminal: each
// middleware's method-specific hook is applied first (innermost), in
// reverse registration order, then each middleware's OnRequest catch-all is
// applied outermost, also in reverse registration order. The result is that
// index 0's OnRequest is the outermost layer that runs first.
func (c Chain) Wrap(method mcp.Method, terminal Next) Next {
	next := terminal
	for i := len(c) - 1; i >= 0; i-- {
		if hook := c[i].hookFor(method); hook != nil {
			next = bind(hook, next)
		}
	}
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].OnRequest != nil {
			next = bind(c[i].OnRequest, next)
		}
	}
	return next
}

func bind(hook Hook, next Next) Next {
	return func(ctx *Context) (any, error) {
		return hook(ctx, next)
	}
}
