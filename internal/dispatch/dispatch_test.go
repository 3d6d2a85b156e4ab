package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/internal/jsonrpc"
	"github.com/relaymcp/relay/mcp"
	"github.com/relaymcp/relay/middleware"
	"github.com/relaymcp/relay/registry"
)

type echoArgs struct {
	Message string `json:"message" jsonschema:"required"`
}

func newTestRegistry() *registry.Registry {
	reg := registry.New()
	reg.AddTool(registry.NewTool("echo", func(ctx context.Context, cc *registry.CallContext, args echoArgs) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: mcp.ContentBlocksFrom(args.Message)}, nil
	}, registry.WithToolDescription("echoes its input")))
	reg.AddResource(registry.NewResource("mem://greeting", "greeting", func(ctx context.Context, cc *registry.CallContext) (any, error) {
		return "hello", nil
	}))
	reg.AddResourceTemplate(registry.NewResourceTemplate("mem://users/{id}", "user", func(ctx context.Context, cc *registry.CallContext, args struct {
		ID string `json:"id"`
	}) (any, error) {
		return "user-" + args.ID, nil
	}))
	reg.AddPrompt(registry.NewPrompt("greet", func(ctx context.Context, cc *registry.CallContext, args struct{}) (registry.PromptGenResult, error) {
		return registry.PromptGenResult{Messages: []mcp.PromptMessage{{Role: mcp.RoleAssistant, Content: mcp.ContentBlocksFrom("hi")}}}, nil
	}))
	return reg
}

func rawRequest(t *testing.T, id any, method string, params any) []byte {
	t.Helper()
	env := map[string]any{"jsonrpc": "2.0", "method": method}
	if id != nil {
		env["id"] = id
	}
	if params != nil {
		env["params"] = params
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}

func decodeResult(t *testing.T, b []byte, out any) {
	t.Helper()
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(b, &resp))
	require.Nil(t, resp.Error, "unexpected error response: %+v", resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, out))
}

func decodeError(t *testing.T, b []byte) *jsonrpc.Error {
	t.Helper()
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(b, &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestPreInitWhitelistAllowsListingBeforeInitialize(t *testing.T) {
	d := New(newTestRegistry())
	ctx := context.Background()

	b := d.Handle(ctx, "", rawRequest(t, 1, "tools/list", nil), nil)
	var out mcp.ListToolsResult
	decodeResult(t, b, &out)
	require.Len(t, out.Tools, 1)
	assert.Equal(t, "echo", out.Tools[0].Name)
}

func TestNonWhitelistedMethodBeforeInitializeIsRejected(t *testing.T) {
	d := New(newTestRegistry())
	ctx := context.Background()

	b := d.Handle(ctx, "", rawRequest(t, 1, "tools/call", map[string]any{"name": "echo", "arguments": map[string]any{"message": "hi"}}), nil)
	e := decodeError(t, b)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidRequest, e.Code)
}

func TestInitializeThenCallToolSucceeds(t *testing.T) {
	d := New(newTestRegistry(), WithServerInfo(mcp.ImplementationInfo{Name: "test", Version: "0.0.1"}))
	ctx := context.Background()

	initB := d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{ProtocolVersion: mcp.LatestProtocolVersion}), nil)
	var initRes mcp.InitializeResult
	decodeResult(t, initB, &initRes)
	assert.Equal(t, mcp.LatestProtocolVersion, initRes.ProtocolVersion)
	require.NotNil(t, initRes.Capabilities.Tools)
	require.NotNil(t, initRes.Capabilities.Resources)
	require.NotNil(t, initRes.Capabilities.Prompts)

	callB := d.Handle(ctx, "sess-1", rawRequest(t, 2, "tools/call", map[string]any{"name": "echo", "arguments": map[string]any{"message": "hi"}}), nil)
	var callRes mcp.CallToolResult
	decodeResult(t, callB, &callRes)
	require.Len(t, callRes.Content, 1)
	assert.Equal(t, "hi", callRes.Content[0].Text)
	assert.False(t, callRes.IsError)
}

func TestNotificationProducesNoResponse(t *testing.T) {
	d := New(newTestRegistry())
	ctx := context.Background()

	b := d.Handle(ctx, "", rawRequest(t, nil, "notifications/initialized", nil), nil)
	assert.Nil(t, b)
}

func TestUnknownToolIsNotFound(t *testing.T) {
	d := New(newTestRegistry())
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), nil)
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "tools/call", map[string]any{"name": "nope"}), nil)
	e := decodeError(t, b)
	assert.Equal(t, jsonrpc.ErrorCodeNotFound, e.Code)
}

func TestToolCallInvalidParamsMissingName(t *testing.T) {
	d := New(newTestRegistry())
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), nil)
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "tools/call", map[string]any{}), nil)
	e := decodeError(t, b)
	assert.Equal(t, jsonrpc.ErrorCodeInvalidParams, e.Code)
}

func TestToolHandlerErrorBecomesIsErrorResult(t *testing.T) {
	reg := registry.New()
	reg.AddTool(registry.NewTool("boom", func(ctx context.Context, cc *registry.CallContext, args struct{}) (*mcp.CallToolResult, error) {
		return nil, assert.AnError
	}))
	d := New(reg)
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), nil)
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "tools/call", map[string]any{"name": "boom"}), nil)
	var out mcp.CallToolResult
	decodeResult(t, b, &out)
	assert.True(t, out.IsError)
}

func TestResourcesReadExactURI(t *testing.T) {
	d := New(newTestRegistry())
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), nil)
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "resources/read", map[string]any{"uri": "mem://greeting"}), nil)
	var out mcp.ReadResourceResult
	decodeResult(t, b, &out)
	require.Len(t, out.Contents, 1)
	assert.Equal(t, "mem://greeting", out.Contents[0].URI)
	assert.Equal(t, "hello", out.Contents[0].Text)
}

func TestResourcesReadTemplateMatchFillsURI(t *testing.T) {
	d := New(newTestRegistry())
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), nil)
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "resources/read", map[string]any{"uri": "mem://users/42"}), nil)
	var out mcp.ReadResourceResult
	decodeResult(t, b, &out)
	require.Len(t, out.Contents, 1)
	assert.Equal(t, "mem://users/42", out.Contents[0].URI)
	assert.Equal(t, "user-42", out.Contents[0].Text)
}

func TestResourcesReadUnknownURI(t *testing.T) {
	d := New(newTestRegistry())
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), nil)
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "resources/read", map[string]any{"uri": "mem://nope"}), nil)
	e := decodeError(t, b)
	assert.Equal(t, jsonrpc.ErrorCodeNotFound, e.Code)
}

func TestPromptsGetReturnsMessages(t *testing.T) {
	d := New(newTestRegistry())
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), nil)
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "prompts/get", map[string]any{"name": "greet"}), nil)
	var out mcp.GetPromptResult
	decodeResult(t, b, &out)
	require.Len(t, out.Messages, 1)
}

type stubProvider struct {
	result auth.Result
	err    error
}

func (s stubProvider) Authenticate(ctx context.Context, req *auth.Request) (auth.Result, error) {
	return s.result, s.err
}

func TestAuthFailedResultRejectsRequest(t *testing.T) {
	d := New(newTestRegistry(), WithAuthProvider(stubProvider{result: auth.Failed("bad token")}))
	ctx := context.Background()

	b := d.Handle(ctx, "sess-1", rawRequest(t, 1, "tools/list", nil), &auth.Request{})
	e := decodeError(t, b)
	assert.Equal(t, jsonrpc.ErrorCodeUnauthorized, e.Code)
}

func TestAuthUnauthenticatedProceedsWhenNotRequired(t *testing.T) {
	d := New(newTestRegistry(), WithAuthProvider(stubProvider{result: auth.Unauthenticated()}))
	ctx := context.Background()

	b := d.Handle(ctx, "sess-1", rawRequest(t, 1, "tools/list", nil), &auth.Request{})
	var out mcp.ListToolsResult
	decodeResult(t, b, &out)
}

func TestAuthRequiredRejectsUnauthenticated(t *testing.T) {
	d := New(newTestRegistry(), WithAuthProvider(stubProvider{result: auth.Unauthenticated()}), WithAuthRequired())
	ctx := context.Background()

	b := d.Handle(ctx, "sess-1", rawRequest(t, 1, "tools/list", nil), &auth.Request{})
	e := decodeError(t, b)
	assert.Equal(t, jsonrpc.ErrorCodeUnauthorized, e.Code)
}

func TestPredicateHidesToolWithoutUser(t *testing.T) {
	reg := registry.New()
	reg.AddTool(registry.NewTool("secret", func(ctx context.Context, cc *registry.CallContext, args struct{}) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{}, nil
	}, registry.WithToolPredicate(func(auth.AuthorizationContext) bool { return true })))
	d := New(reg, WithAuthProvider(stubProvider{result: auth.Unauthenticated()}))
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), &auth.Request{})
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "tools/list", nil), &auth.Request{})
	var out mcp.ListToolsResult
	decodeResult(t, b, &out)
	assert.Empty(t, out.Tools)
}

func TestPredicateForbidsToolCallWithoutUser(t *testing.T) {
	reg := registry.New()
	reg.AddTool(registry.NewTool("secret", func(ctx context.Context, cc *registry.CallContext, args struct{}) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{}, nil
	}, registry.WithToolPredicate(func(auth.AuthorizationContext) bool { return true })))
	d := New(reg, WithAuthProvider(stubProvider{result: auth.Unauthenticated()}))
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), &auth.Request{})
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "tools/call", map[string]any{"name": "secret"}), &auth.Request{})
	e := decodeError(t, b)
	assert.Equal(t, jsonrpc.ErrorCodeForbidden, e.Code)
}

func TestScopeGateForbidsMissingScope(t *testing.T) {
	reg := newTestRegistry()
	user := &auth.User{ID: "u1", Scopes: map[string]struct{}{"tools:other": {}}}
	d := New(reg, WithAuthProvider(stubProvider{result: auth.Success(user, "")}))
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), &auth.Request{})
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "tools/call", map[string]any{"name": "echo", "arguments": map[string]any{"message": "hi"}}), &auth.Request{})
	e := decodeError(t, b)
	assert.Equal(t, jsonrpc.ErrorCodeForbidden, e.Code)
}

func TestScopeGateAllowsWildcardScope(t *testing.T) {
	reg := newTestRegistry()
	user := &auth.User{ID: "u1", Scopes: map[string]struct{}{"tools:*": {}}}
	d := New(reg, WithAuthProvider(stubProvider{result: auth.Success(user, "")}))
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), &auth.Request{})
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "tools/call", map[string]any{"name": "echo", "arguments": map[string]any{"message": "hi"}}), &auth.Request{})
	var out mcp.CallToolResult
	decodeResult(t, b, &out)
	assert.False(t, out.IsError)
}

func TestMiddlewareOnRequestWrapsEveryMethod(t *testing.T) {
	var calls []string
	mw := middleware.Middleware{
		OnRequest: func(ctx *middleware.Context, next middleware.Next) (any, error) {
			calls = append(calls, string(ctx.Method))
			return next(ctx)
		},
	}
	d := New(newTestRegistry(), WithMiddleware(mw))
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), nil)
	d.Handle(ctx, "sess-1", rawRequest(t, 2, "tools/list", nil), nil)

	assert.Equal(t, []string{"initialize", "tools/list"}, calls)
}

func TestMiddlewareShortCircuitPreventsToolCall(t *testing.T) {
	called := false
	reg := registry.New()
	reg.AddTool(registry.NewTool("echo", func(ctx context.Context, cc *registry.CallContext, args struct{}) (*mcp.CallToolResult, error) {
		called = true
		return &mcp.CallToolResult{}, nil
	}))
	mw := middleware.Middleware{
		OnCallTool: func(ctx *middleware.Context, next middleware.Next) (any, error) {
			return nil, jsonrpc.NewProtocolError(jsonrpc.ErrorCodeForbidden, "blocked", nil)
		},
	}
	d := New(reg, WithMiddleware(mw))
	ctx := context.Background()

	d.Handle(ctx, "sess-1", rawRequest(t, 1, "initialize", mcp.InitializeRequest{}), nil)
	b := d.Handle(ctx, "sess-1", rawRequest(t, 2, "tools/call", map[string]any{"name": "echo"}), nil)
	e := decodeError(t, b)
	assert.Equal(t, jsonrpc.ErrorCodeForbidden, e.Code)
	assert.False(t, called)
}

func TestPingIsAlwaysPublic(t *testing.T) {
	d := New(newTestRegistry(), WithAuthProvider(stubProvider{result: auth.Failed("nope")}))
	ctx := context.Background()

	b := d.Handle(ctx, "", rawRequest(t, 1, "ping", nil), nil)
	var out mcp.PingResult
	decodeResult(t, b, &out)
	assert.True(t, out.Pong)
}

func TestMalformedFrameProducesParseError(t *testing.T) {
	d := New(newTestRegistry())
	ctx := context.Background()

	b := d.Handle(ctx, "", []byte("not json"), nil)
	e := decodeError(t, b)
	assert.Equal(t, jsonrpc.ErrorCodeParseError, e.Code)
}
