package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/turbomcp/turbomcp/internal/domain/session"
	"github.com/turbomcp/turbomcp/internal/observability"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

func newTestRuntime(t *testing.T) (*Runtime, *Registry) {
	t.Helper()
	reg := New()
	if err := reg.RegisterTool(echoToolEntry("echo")); err != nil {
		t.Fatalf("register tool: %v", err)
	}
	if err := reg.RegisterResource(&ResourceEntry{
		URI:  "res:///static",
		Name: "static",
		Handler: func(ctx *RequestContext, uri string, vars map[string]string) (*mcp.ReadResourceResult, error) {
			return &mcp.ReadResourceResult{Contents: []mcp.ResourceContents{{URI: uri, Text: "static content"}}}, nil
		},
	}); err != nil {
		t.Fatalf("register resource: %v", err)
	}
	if err := reg.RegisterPrompt(&PromptEntry{
		Name:      "greet",
		Arguments: []mcp.PromptArgument{{Name: "who", Required: true}},
		Handler: func(ctx *RequestContext, args map[string]string) (*mcp.GetPromptResult, error) {
			return &mcp.GetPromptResult{Messages: []mcp.PromptMessage{{
				Role:    mcp.RoleUser,
				Content: mcp.Content{Type: "text", Text: "hello " + args["who"]},
			}}}, nil
		},
	}); err != nil {
		t.Fatalf("register prompt: %v", err)
	}
	return NewRuntime(reg, nil), reg
}

func decodeResult(t *testing.T, env *mcp.Envelope, v any) {
	t.Helper()
	if env.Error != nil {
		t.Fatalf("unexpected error response: %v", env.Error)
	}
	if err := json.Unmarshal(env.Result, v); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestHandleEnvelopeToolsCallSuccess(t *testing.T) {
	rt, _ := newTestRuntime(t)
	sess := &session.Session{ID: "s1"}

	env, err := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodToolsCall, mcp.CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{"text":"hi"}`),
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
	var result mcp.CallToolResult
	decodeResult(t, resp, &result)
	if result.IsError {
		t.Fatalf("expected success, got error result: %+v", result)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Fatalf("unexpected content: %+v", result.Content)
	}
}

func TestHandleEnvelopeToolsCallUnknownTool(t *testing.T) {
	rt, _ := newTestRuntime(t)
	sess := &session.Session{ID: "s1"}

	env, err := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodToolsCall, mcp.CallToolParams{Name: "nope"})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
	if resp.Error == nil || resp.Error.Kind != mcp.KindToolNotFound {
		t.Fatalf("expected KindToolNotFound, got %+v", resp.Error)
	}
}

func TestHandleEnvelopeToolsCallInvalidArguments(t *testing.T) {
	rt, _ := newTestRuntime(t)
	sess := &session.Session{ID: "s1"}

	env, err := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodToolsCall, mcp.CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
	if resp.Error == nil || resp.Error.Kind != mcp.KindInvalidParams {
		t.Fatalf("expected KindInvalidParams for missing required arg, got %+v", resp.Error)
	}
}

func TestHandleEnvelopeResourcesReadConcrete(t *testing.T) {
	rt, _ := newTestRuntime(t)
	sess := &session.Session{ID: "s1"}

	env, err := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodResourcesRead, mcp.ReadResourceParams{URI: "res:///static"})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
	var result mcp.ReadResourceResult
	decodeResult(t, resp, &result)
	if len(result.Contents) != 1 || result.Contents[0].Text != "static content" {
		t.Fatalf("unexpected contents: %+v", result.Contents)
	}
}

func TestHandleEnvelopePromptsGetMissingRequiredArgument(t *testing.T) {
	rt, _ := newTestRuntime(t)
	sess := &session.Session{ID: "s1"}

	env, err := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodPromptsGet, mcp.GetPromptParams{Name: "greet"})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
	if resp.Error == nil || resp.Error.Kind != mcp.KindInvalidParams {
		t.Fatalf("expected KindInvalidParams, got %+v", resp.Error)
	}
}

func TestHandleEnvelopePromptsGetSuccess(t *testing.T) {
	rt, _ := newTestRuntime(t)
	sess := &session.Session{ID: "s1"}

	env, err := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodPromptsGet, mcp.GetPromptParams{
		Name:      "greet",
		Arguments: map[string]string{"who": "world"},
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
	var result mcp.GetPromptResult
	decodeResult(t, resp, &result)
	if len(result.Messages) != 1 || result.Messages[0].Content.Text != "hello world" {
		t.Fatalf("unexpected messages: %+v", result.Messages)
	}
}

func TestHandleEnvelopeUnknownMethod(t *testing.T) {
	rt, _ := newTestRuntime(t)
	sess := &session.Session{ID: "s1"}

	env, err := mcp.NewRequest(mcp.NewNumberID(1), "totally/unknown", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
	if resp.Error == nil || resp.Error.Kind != mcp.KindMethodNotFound {
		t.Fatalf("expected KindMethodNotFound, got %+v", resp.Error)
	}
}

func TestHandleEnvelopeToolsListAndResourcesTemplatesList(t *testing.T) {
	rt, reg := newTestRuntime(t)
	sess := &session.Session{ID: "s1"}
	if err := reg.RegisterResourceTemplate(&ResourceEntry{
		URITemplate: "res:///{id}",
		Name:        "templated",
		Handler: func(ctx *RequestContext, uri string, vars map[string]string) (*mcp.ReadResourceResult, error) {
			return &mcp.ReadResourceResult{}, nil
		},
	}); err != nil {
		t.Fatalf("register template: %v", err)
	}

	env, _ := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodToolsList, nil)
	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope tools/list: %v", err)
	}
	var toolsResult mcp.ListToolsResult
	decodeResult(t, resp, &toolsResult)
	if len(toolsResult.Tools) != 1 || toolsResult.Tools[0].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", toolsResult.Tools)
	}

	env, _ = mcp.NewRequest(mcp.NewNumberID(2), mcp.MethodResourcesTemplatesList, nil)
	resp, err = rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope templates/list: %v", err)
	}
	var templatesResult mcp.ListResourceTemplatesResult
	decodeResult(t, resp, &templatesResult)
	if len(templatesResult.ResourceTemplates) != 1 || templatesResult.ResourceTemplates[0].Name != "templated" {
		t.Fatalf("unexpected templates: %+v", templatesResult.ResourceTemplates)
	}
}

func TestHandleEnvelopeReturnsNilForInitializeAndNotifications(t *testing.T) {
	rt, _ := newTestRuntime(t)
	sess := &session.Session{ID: "s1"}

	env, _ := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodInitialize, nil)
	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil || resp != nil {
		t.Fatalf("expected (nil, nil) for initialize, got resp=%v err=%v", resp, err)
	}

	env2, _ := mcp.NewNotification(mcp.MethodInitialized, nil)
	resp2, err := rt.HandleEnvelope(context.Background(), sess, env2)
	if err != nil || resp2 != nil {
		t.Fatalf("expected (nil, nil) for initialized notification, got resp=%v err=%v", resp2, err)
	}
}

func TestHandleEnvelopeToolsCallUserRejectionPreservesCode(t *testing.T) {
	reg := New()
	rejecting := &ToolEntry{
		Name:        "risky",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx *RequestContext, args json.RawMessage) (*mcp.CallToolResult, error) {
			return nil, mcp.NewError(mcp.KindUserRejected, "user declined the action")
		},
	}
	if err := reg.RegisterTool(rejecting); err != nil {
		t.Fatalf("register: %v", err)
	}
	rt := NewRuntime(reg, nil)
	sess := &session.Session{ID: "s1"}

	env, _ := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodToolsCall, mcp.CallToolParams{Name: "risky"})
	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != mcp.CodeUserRejected {
		t.Fatalf("expected user-rejected code %d preserved, got %+v", mcp.CodeUserRejected, resp.Error)
	}
}

func TestHandleEnvelopeWithRecorderTracksToolCallAndRequestCounters(t *testing.T) {
	reg := New()
	if err := reg.RegisterTool(echoToolEntry("echo")); err != nil {
		t.Fatalf("register tool: %v", err)
	}
	tp, err := observability.NewTracerProvider(&bytes.Buffer{})
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}
	recorder := observability.NewRecorder(tp, prometheus.NewRegistry())
	rt := NewRuntime(reg, nil, WithRecorder(recorder))
	sess := &session.Session{ID: "s1", TenantID: "tenant-a"}

	env, _ := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodToolsCall, mcp.CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{"text":"hi"}`),
	})
	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}

	if recorder.Global().RequestsTotal.Load() != 1 || recorder.Global().RequestsSuccess.Load() != 1 {
		t.Fatalf("expected 1 successful global request, got %+v", recorder.Global())
	}
	if recorder.Global().ToolCallsTotal.Load() != 1 || recorder.Global().ToolCallsSuccess.Load() != 1 {
		t.Fatalf("expected 1 successful global tool call, got %+v", recorder.Global())
	}
	tenant := recorder.Tenant("tenant-a")
	if tenant == nil || tenant.RequestsTotal.Load() != 1 {
		t.Fatalf("expected tenant-a to have 1 request recorded, got %+v", tenant)
	}
}

func TestHandleEnvelopeToolsCallPolicyDenies(t *testing.T) {
	reg := New()
	entry := &ToolEntry{
		Name:        "admin_only",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Policy:      `"admin" in session.roles`,
		Handler: func(ctx *RequestContext, args json.RawMessage) (*mcp.CallToolResult, error) {
			return mcp.TextResult("should not run"), nil
		},
	}
	if err := reg.RegisterTool(entry); err != nil {
		t.Fatalf("register: %v", err)
	}
	rt := NewRuntime(reg, nil)
	sess := &session.Session{ID: "s1"}

	env, _ := mcp.NewRequest(mcp.NewNumberID(1), mcp.MethodToolsCall, mcp.CallToolParams{Name: "admin_only"})
	resp, err := rt.HandleEnvelope(context.Background(), sess, env)
	if err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
	if resp.Error == nil || resp.Error.Kind != mcp.KindResourceAccessDenied {
		t.Fatalf("expected KindResourceAccessDenied, got %+v", resp.Error)
	}
}
