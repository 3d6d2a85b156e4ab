package registry

import (
	"context"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/mcp"
)

// ResourceTemplate pairs a wire descriptor with its read handler and an
// optional authorization predicate. Templates are matched only when no
// exact Resource matches the requested URI, in registration order.
type ResourceTemplate struct {
	Descriptor mcp.ResourceTemplate
	Handler    ReadHandler
	Predicate  auth.Predicate
}

// ResourceTemplateOption configures NewResourceTemplate.
type ResourceTemplateOption func(*resourceConfig)

func WithResourceTemplateDescription(d string) ResourceTemplateOption {
	return func(c *resourceConfig) { c.description = d }
}

func WithResourceTemplateMimeType(m string) ResourceTemplateOption {
	return func(c *resourceConfig) { c.mimeType = m }
}

func WithResourceTemplatePredicate(p auth.Predicate) ResourceTemplateOption {
	return func(c *resourceConfig) { c.predicate = p }
}

// NewResourceTemplate reflects the URI template's captured variables into A
// (coercing declared numeric/boolean fields from the string captures) and
// wraps fn into a fixed-signature ResourceTemplate.
func NewResourceTemplate[A any](uriTemplate, name string, fn func(ctx context.Context, cc *CallContext, args A) (any, error), opts ...ResourceTemplateOption) ResourceTemplate {
	cfg := resourceConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	descriptor := mcp.ResourceTemplate{
		URITemplate: uriTemplate,
		Name:        name,
		Description: cfg.description,
		MimeType:    cfg.mimeType,
	}

	handler := func(ctx context.Context, cc *CallContext, params map[string]string) (mcp.ResourceContents, error) {
		args, err := bindParams[A](params)
		if err != nil {
			return mcp.ResourceContents{}, err
		}
		v, err := fn(ctx, cc, args)
		if err != nil {
			return mcp.ResourceContents{}, err
		}
		return mcp.ResourceContentsFrom("", cfg.mimeType, v), nil
	}

	return ResourceTemplate{Descriptor: descriptor, Handler: handler, Predicate: cfg.predicate}
}
