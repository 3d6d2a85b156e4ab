package registry

import (
	"context"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/mcp"
)

// ReadHandler is the fixed-signature form every registered resource or
// resource template read is reduced to. params is empty for an exact
// Resource and holds the matched URI-template variables for a
// ResourceTemplate.
type ReadHandler func(ctx context.Context, cc *CallContext, params map[string]string) (mcp.ResourceContents, error)

// Resource pairs a wire descriptor with its read handler and an optional
// authorization predicate.
type Resource struct {
	Descriptor mcp.Resource
	Handler    ReadHandler
	Predicate  auth.Predicate
}

// ResourceOption configures NewResource.
type ResourceOption func(*resourceConfig)

type resourceConfig struct {
	description string
	mimeType    string
	predicate   auth.Predicate
}

func WithResourceDescription(d string) ResourceOption {
	return func(c *resourceConfig) { c.description = d }
}

func WithResourceMimeType(m string) ResourceOption {
	return func(c *resourceConfig) { c.mimeType = m }
}

func WithResourcePredicate(p auth.Predicate) ResourceOption {
	return func(c *resourceConfig) { c.predicate = p }
}

// NewResource builds a Resource whose read function takes no parameters and
// returns any value convertible via mcp.ResourceContentsFrom.
func NewResource(uri, name string, fn func(ctx context.Context, cc *CallContext) (any, error), opts ...ResourceOption) Resource {
	cfg := resourceConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	descriptor := mcp.Resource{URI: uri, Name: name, Description: cfg.description, MimeType: cfg.mimeType}
	handler := func(ctx context.Context, cc *CallContext, _ map[string]string) (mcp.ResourceContents, error) {
		v, err := fn(ctx, cc)
		if err != nil {
			return mcp.ResourceContents{}, err
		}
		return mcp.ResourceContentsFrom(uri, cfg.mimeType, v), nil
	}

	return Resource{Descriptor: descriptor, Handler: handler, Predicate: cfg.predicate}
}
