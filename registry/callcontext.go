package registry

import (
	"log/slog"
	"sync"
)

// CallContext is a per-invocation object the dispatcher builds for every
// tools/call, resources/read, and prompts/get. It is never shared across
// requests. A tool, resource, or prompt handler that declares a CallContext
// parameter receives this value instead of a client-supplied argument; the
// Schema Introspector never reflects a schema property for it.
type CallContext struct {
	RequestID string
	ClientID  string
	Logger    *slog.Logger

	mu    sync.Mutex
	state map[string]any
}

// NewCallContext constructs a CallContext for a single invocation.
func NewCallContext(requestID, clientID string, logger *slog.Logger) *CallContext {
	return &CallContext{RequestID: requestID, ClientID: clientID, Logger: logger}
}

// Get reads a transient value stashed earlier in this call by Set.
func (c *CallContext) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.state[key]
	return v, ok
}

// Set stashes a transient value visible to later reads within this call.
func (c *CallContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		c.state = make(map[string]any)
	}
	c.state[key] = value
}
