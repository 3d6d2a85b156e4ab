package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/internal/jsonrpc"
	"github.com/relaymcp/relay/mcp"
	"github.com/relaymcp/relay/schema"
)

// ToolHandler is the fixed-signature form every registered tool is reduced
// to, regardless of its declared argument struct: raw is the JSON object
// from the client's tools/call arguments.
type ToolHandler func(ctx context.Context, cc *CallContext, raw json.RawMessage) (*mcp.CallToolResult, error)

// Tool pairs a wire descriptor with its handler and an optional
// authorization predicate.
type Tool struct {
	Descriptor mcp.Tool
	Handler    ToolHandler
	Predicate  auth.Predicate
}

// ToolOption configures NewTool.
type ToolOption func(*toolConfig)

type toolConfig struct {
	description        string
	allowUnknownFields bool
	predicate          auth.Predicate
}

// WithToolDescription sets the description surfaced in tools/list.
func WithToolDescription(d string) ToolOption {
	return func(c *toolConfig) { c.description = d }
}

// WithToolAllowUnknownFields disables strict decoding, letting the client
// send extra argument keys that are silently ignored.
func WithToolAllowUnknownFields() ToolOption {
	return func(c *toolConfig) { c.allowUnknownFields = true }
}

// WithToolPredicate attaches a visibility/invocation predicate.
func WithToolPredicate(p auth.Predicate) ToolOption {
	return func(c *toolConfig) { c.predicate = p }
}

// NewTool reflects A's input schema and wraps fn into a fixed-signature
// Tool. Decoding is strict by default: a client argument key with no
// matching field in A fails with an "invalid arguments" tool error rather
// than being silently dropped.
func NewTool[A any](name string, fn func(ctx context.Context, cc *CallContext, args A) (*mcp.CallToolResult, error), opts ...ToolOption) Tool {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	descriptor := mcp.Tool{
		Name:        name,
		Description: cfg.description,
		InputSchema: schema.Reflect[A](),
	}
	required := schema.Required[A]()

	handler := func(ctx context.Context, cc *CallContext, raw json.RawMessage) (*mcp.CallToolResult, error) {
		var args A
		if len(raw) > 0 {
			dec := json.NewDecoder(bytes.NewReader(raw))
			if !cfg.allowUnknownFields {
				dec.DisallowUnknownFields()
			}
			if err := dec.Decode(&args); err != nil {
				return &mcp.CallToolResult{
					Content: mcp.ContentBlocksFrom(fmt.Sprintf("invalid arguments: %v", err)),
					IsError: true,
				}, nil
			}
		}

		if missing := missingRequired(raw, required); missing != "" {
			return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInvalidParams, "Missing required argument: "+missing, nil)
		}

		return fn(ctx, cc, args)
	}

	return Tool{Descriptor: descriptor, Handler: handler, Predicate: cfg.predicate}
}

// missingRequired reports the first name in required that has no
// corresponding key in raw, or "" if all are present. raw is re-decoded as
// a plain key set rather than reusing the earlier decode into A, since a
// zero-valued A field can't be distinguished from an explicitly supplied
// zero value.
func missingRequired(raw json.RawMessage, required []string) string {
	if len(required) == 0 {
		return ""
	}
	present := map[string]json.RawMessage{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &present)
	}
	for _, name := range required {
		if _, ok := present[name]; !ok {
			return name
		}
	}
	return ""
}
