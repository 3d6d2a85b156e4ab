package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/internal/jsonrpc"
	"github.com/relaymcp/relay/internal/logctx"
	"github.com/relaymcp/relay/mcp"
	"github.com/relaymcp/relay/middleware"
	"github.com/relaymcp/relay/registry"
	"github.com/relaymcp/relay/uritemplate"
)

// terminal selects and returns the innermost handler for req.Method, to be
// wrapped by the middleware chain.
func (d *Dispatcher) terminal(ctx context.Context, sessionID string, req *jsonrpc.Request, mctx *middleware.Context, logger *slog.Logger) middleware.Next {
	switch req.Method {
	case string(mcp.InitializeMethod):
		return func(*middleware.Context) (any, error) { return d.handleInitialize(ctx, sessionID, req) }
	case string(mcp.InitializedNotificationMethod):
		return func(*middleware.Context) (any, error) { return mcp.EmptyResult{}, nil }
	case string(mcp.PingMethod):
		return func(*middleware.Context) (any, error) { return mcp.PingResult{Pong: true}, nil }
	case string(mcp.ToolsListMethod):
		return func(mc *middleware.Context) (any, error) { return d.handleToolsList(mc) }
	case string(mcp.ToolsCallMethod):
		return func(mc *middleware.Context) (any, error) { return d.handleToolsCall(ctx, mc, req, logger) }
	case string(mcp.ResourcesListMethod):
		return func(mc *middleware.Context) (any, error) { return d.handleResourcesList(mc) }
	case string(mcp.ResourcesTemplatesListMethod):
		return func(mc *middleware.Context) (any, error) { return d.handleResourceTemplatesList(mc) }
	case string(mcp.ResourcesReadMethod):
		return func(mc *middleware.Context) (any, error) { return d.handleResourcesRead(ctx, mc, req, logger) }
	case string(mcp.PromptsListMethod):
		return func(mc *middleware.Context) (any, error) { return d.handlePromptsList(mc) }
	case string(mcp.PromptsGetMethod):
		return func(mc *middleware.Context) (any, error) { return d.handlePromptsGet(ctx, mc, req, logger) }
	default:
		return func(*middleware.Context) (any, error) {
			return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeMethodNotFound, "Method not found: "+req.Method, nil)
		}
	}
}

func (d *Dispatcher) handleInitialize(ctx context.Context, sessionID string, req *jsonrpc.Request) (any, error) {
	var params mcp.InitializeRequest
	_ = json.Unmarshal(req.Params, &params)

	if err := d.markInitialized(ctx, sessionID); err != nil {
		return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInternalError, err.Error(), nil)
	}

	caps := mcp.ServerCapabilities{}
	if len(d.registry.Tools()) > 0 {
		caps.Tools = &struct{}{}
	}
	if len(d.registry.Resources()) > 0 || len(d.registry.ResourceTemplates()) > 0 {
		caps.Resources = &struct{}{}
	}
	if len(d.registry.Prompts()) > 0 {
		caps.Prompts = &struct{}{}
	}

	return mcp.InitializeResult{
		ProtocolVersion: mcp.LatestProtocolVersion,
		Capabilities:    caps,
		ServerInfo:      d.serverInfo,
		Instructions:    d.instructions,
	}, nil
}

// visible reports whether a predicate-gated component is visible to the
// caller. Absent an authenticated user, any predicate-bearing component is
// hidden.
func visible(user *auth.User, predicate auth.Predicate, authzCtx auth.AuthorizationContext) bool {
	if predicate == nil {
		return true
	}
	if user == nil {
		return false
	}
	return predicate(authzCtx)
}

func (d *Dispatcher) handleToolsList(mc *middleware.Context) (any, error) {
	var tools []mcp.Tool
	for _, t := range d.registry.Tools() {
		authzCtx := auth.AuthorizationContext{
			User: mc.User, ComponentType: auth.ComponentTool, ComponentName: t.Descriptor.Name,
			Action: auth.ActionCall, Workspace: mc.Workspace,
		}
		if visible(mc.User, t.Predicate, authzCtx) {
			tools = append(tools, t.Descriptor)
		}
	}
	return mcp.ListToolsResult{Tools: tools}, nil
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, mc *middleware.Context, req *jsonrpc.Request, logger *slog.Logger) (any, error) {
	var params mcp.CallToolRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInvalidParams, "Invalid params: \"name\" must be a non-empty string", nil)
	}

	tool, err := d.registry.GetTool(params.Name)
	if err != nil {
		return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeNotFound, "Unknown tool: "+params.Name, nil)
	}

	authzCtx := auth.AuthorizationContext{
		User: mc.User, ComponentType: auth.ComponentTool, ComponentName: params.Name,
		Action: auth.ActionCall, Workspace: mc.Workspace,
	}
	if tool.Predicate != nil {
		if mc.User == nil || !tool.Predicate(authzCtx) {
			return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeForbidden, "Forbidden: "+params.Name, nil)
		}
	}
	if mc.User != nil && len(mc.User.Scopes) > 0 {
		if !mc.User.HasScope("tools:"+params.Name) && !mc.User.HasScope("tools:*") {
			return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeForbidden, "Forbidden: missing scope for "+params.Name, nil)
		}
	}

	cc := registry.NewCallContext(reqID(req), "", logger.With(slog.String("tool", params.Name)))
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: params.Name})
	result, err := tool.Handler(ctx, cc, params.Arguments)
	if err != nil {
		if pe, ok := err.(*jsonrpc.ProtocolError); ok {
			// Argument binding failures (e.g. a missing required argument)
			// are the framework rejecting the call, not the tool failing —
			// they ride back as a protocol error, same as a bad "name".
			return nil, pe
		}
		// A raised tool error becomes a successful response with isError,
		// never a protocol error.
		return &mcp.CallToolResult{Content: mcp.ContentBlocksFrom(err.Error()), IsError: true}, nil
	}
	return result, nil
}

func (d *Dispatcher) handleResourcesList(mc *middleware.Context) (any, error) {
	var resources []mcp.Resource
	for _, r := range d.registry.Resources() {
		authzCtx := auth.AuthorizationContext{
			User: mc.User, ComponentType: auth.ComponentResource, ComponentName: r.Descriptor.URI,
			Action: auth.ActionRead, Workspace: mc.Workspace,
		}
		if visible(mc.User, r.Predicate, authzCtx) {
			resources = append(resources, r.Descriptor)
		}
	}
	return mcp.ListResourcesResult{Resources: resources}, nil
}

func (d *Dispatcher) handleResourceTemplatesList(mc *middleware.Context) (any, error) {
	var templates []mcp.ResourceTemplate
	for _, t := range d.registry.ResourceTemplates() {
		authzCtx := auth.AuthorizationContext{
			User: mc.User, ComponentType: auth.ComponentResourceTemplate, ComponentName: t.Descriptor.URITemplate,
			Action: auth.ActionRead, Workspace: mc.Workspace,
		}
		if visible(mc.User, t.Predicate, authzCtx) {
			templates = append(templates, t.Descriptor)
		}
	}
	return mcp.ListResourceTemplatesResult{ResourceTemplates: templates}, nil
}

func (d *Dispatcher) handleResourcesRead(ctx context.Context, mc *middleware.Context, req *jsonrpc.Request, logger *slog.Logger) (any, error) {
	var params mcp.ReadResourceRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInvalidParams, "Invalid params: \"uri\" must be a non-empty string", nil)
	}

	cc := registry.NewCallContext(reqID(req), "", logger.With(slog.String("uri", params.URI)))

	if res, err := d.registry.GetResource(params.URI); err == nil {
		authzCtx := auth.AuthorizationContext{
			User: mc.User, ComponentType: auth.ComponentResource, ComponentName: res.Descriptor.URI,
			Action: auth.ActionRead, Workspace: mc.Workspace,
		}
		if res.Predicate != nil && (mc.User == nil || !res.Predicate(authzCtx)) {
			return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeForbidden, "Forbidden: "+params.URI, nil)
		}
		contents, err := res.Handler(ctx, cc, nil)
		if err != nil {
			return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInternalError, err.Error(), nil)
		}
		if contents.URI == "" {
			contents.URI = params.URI
		}
		return mcp.ReadResourceResult{Contents: []mcp.ResourceContents{contents}}, nil
	}

	for _, tpl := range d.registry.ResourceTemplates() {
		vars, ok := uritemplate.Match(params.URI, tpl.Descriptor.URITemplate)
		if !ok {
			continue
		}
		authzCtx := auth.AuthorizationContext{
			User: mc.User, ComponentType: auth.ComponentResourceTemplate, ComponentName: tpl.Descriptor.URITemplate,
			Action: auth.ActionRead, Arguments: stringMapToAny(vars), Workspace: mc.Workspace,
		}
		if tpl.Predicate != nil && (mc.User == nil || !tpl.Predicate(authzCtx)) {
			return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeForbidden, "Forbidden: "+params.URI, nil)
		}
		contents, err := tpl.Handler(ctx, cc, vars)
		if err != nil {
			return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInternalError, err.Error(), nil)
		}
		if contents.URI == "" {
			contents.URI = params.URI
		}
		return mcp.ReadResourceResult{Contents: []mcp.ResourceContents{contents}}, nil
	}

	return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeNotFound, "Unknown resource: "+params.URI, nil)
}

func (d *Dispatcher) handlePromptsList(mc *middleware.Context) (any, error) {
	var prompts []mcp.Prompt
	for _, p := range d.registry.Prompts() {
		authzCtx := auth.AuthorizationContext{
			User: mc.User, ComponentType: auth.ComponentPrompt, ComponentName: p.Descriptor.Name,
			Action: auth.ActionGet, Workspace: mc.Workspace,
		}
		if visible(mc.User, p.Predicate, authzCtx) {
			prompts = append(prompts, p.Descriptor)
		}
	}
	return mcp.ListPromptsResult{Prompts: prompts}, nil
}

func (d *Dispatcher) handlePromptsGet(ctx context.Context, mc *middleware.Context, req *jsonrpc.Request, logger *slog.Logger) (any, error) {
	var params mcp.GetPromptRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInvalidParams, "Invalid params: \"name\" must be a non-empty string", nil)
	}

	prompt, err := d.registry.GetPrompt(params.Name)
	if err != nil {
		return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeNotFound, "Unknown prompt: "+params.Name, nil)
	}

	authzCtx := auth.AuthorizationContext{
		User: mc.User, ComponentType: auth.ComponentPrompt, ComponentName: params.Name,
		Action: auth.ActionGet, Workspace: mc.Workspace,
	}
	if prompt.Predicate != nil && (mc.User == nil || !prompt.Predicate(authzCtx)) {
		return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeForbidden, "Forbidden: "+params.Name, nil)
	}

	cc := registry.NewCallContext(reqID(req), "", logger.With(slog.String("prompt", params.Name)))
	result, err := prompt.Handler(ctx, cc, params.Arguments)
	if err != nil {
		return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeInternalError, err.Error(), nil)
	}
	return result, nil
}

func reqID(req *jsonrpc.Request) string {
	if req.ID == nil {
		return ""
	}
	return req.ID.String()
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
