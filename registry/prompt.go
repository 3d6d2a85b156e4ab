package registry

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/mcp"
)

// PromptHandler is the fixed-signature form every registered prompt
// generator is reduced to.
type PromptHandler func(ctx context.Context, cc *CallContext, args map[string]json.RawMessage) (mcp.GetPromptResult, error)

// Prompt pairs a wire descriptor with its generator and an optional
// authorization predicate.
type Prompt struct {
	Descriptor mcp.Prompt
	Handler    PromptHandler
	Predicate  auth.Predicate
}

// PromptOption configures NewPrompt.
type PromptOption func(*promptConfig)

type promptConfig struct {
	description string
	predicate   auth.Predicate
}

func WithPromptDescription(d string) PromptOption {
	return func(c *promptConfig) { c.description = d }
}

func WithPromptPredicate(p auth.Predicate) PromptOption {
	return func(c *promptConfig) { c.predicate = p }
}

// PromptGenResult is what a prompt generator may return: a single message,
// a list of messages, or a list with an accompanying description.
type PromptGenResult struct {
	Description string
	Messages    []mcp.PromptMessage
}

// NewPrompt derives the prompt's argument list from A's exported fields (a
// field is "required" unless it is a pointer) and wraps fn into a
// fixed-signature Prompt.
func NewPrompt[A any](name string, fn func(ctx context.Context, cc *CallContext, args A) (PromptGenResult, error), opts ...PromptOption) Prompt {
	cfg := promptConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	descriptor := mcp.Prompt{
		Name:        name,
		Description: cfg.description,
		Arguments:   promptArguments[A](),
	}

	handler := func(ctx context.Context, cc *CallContext, raw map[string]json.RawMessage) (mcp.GetPromptResult, error) {
		var args A
		if len(raw) > 0 {
			b, err := json.Marshal(raw)
			if err != nil {
				return mcp.GetPromptResult{}, err
			}
			if err := json.Unmarshal(b, &args); err != nil {
				return mcp.GetPromptResult{}, err
			}
		}
		res, err := fn(ctx, cc, args)
		if err != nil {
			return mcp.GetPromptResult{}, err
		}
		return mcp.GetPromptResult{Description: res.Description, Messages: res.Messages}, nil
	}

	return Prompt{Descriptor: descriptor, Handler: handler, Predicate: cfg.predicate}
}

func promptArguments[A any]() []mcp.PromptArgument {
	var zero A
	rt := reflect.TypeOf(zero)
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil
	}
	args := make([]mcp.PromptArgument, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		args = append(args, mcp.PromptArgument{
			Name:        fieldName(field),
			Description: field.Tag.Get("description"),
			Required:    field.Type.Kind() != reflect.Ptr,
		})
	}
	return args
}
