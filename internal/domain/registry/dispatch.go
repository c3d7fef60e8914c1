package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/turbomcp/turbomcp/internal/domain/session"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

func tenantOf(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	return sess.TenantID
}

func sessionAttrs(sess *session.Session) map[string]any {
	if sess == nil {
		return map[string]any{}
	}
	roles := make([]string, len(sess.Roles))
	for i, r := range sess.Roles {
		roles[i] = string(r)
	}
	return map[string]any{
		"id":    sess.ID,
		"roles": roles,
	}
}

func (rt *Runtime) handleToolsCall(ctx context.Context, sess *session.Session, env *mcp.Envelope) (*mcp.Envelope, error) {
	var params mcp.CallToolParams
	if mcpErr := parseParams(env, &params); mcpErr != nil {
		return mcp.NewErrorResponse(env.ID, mcpErr), nil
	}
	if params.Name == "" {
		return mcp.NewErrorResponse(env.ID, mcp.NewError(mcp.KindInvalidParams, "tools/call requires a name")), nil
	}

	entry, ok := rt.registry.FindTool(params.Name)
	if !ok {
		return mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindToolNotFound, "no such tool: %s", params.Name)), nil
	}

	if err := entry.compiledSchema.ValidateArguments(params.Arguments); err != nil {
		return mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindInvalidParams, "invalid arguments for tool %s: %v", params.Name, err)), nil
	}

	if entry.compiledPolicy != nil {
		var decodedArgs any = map[string]any{}
		if len(params.Arguments) > 0 {
			_ = json.Unmarshal(params.Arguments, &decodedArgs)
		}
		allowed, err := entry.compiledPolicy.Evaluate(decodedArgs, sessionAttrs(sess))
		if err != nil {
			return mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindInternal, "policy evaluation failed for tool %s: %v", params.Name, err)), nil
		}
		if !allowed {
			return mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindResourceAccessDenied, "not authorized to call tool %s", params.Name)), nil
		}
	}

	rc := rt.pool.Acquire(ctx, sess, HandlerMeta{Name: entry.Name, Kind: KindTool, Description: entry.Description}, rt.clientFor(sess), rt)
	defer rt.pool.Release(rc)

	callStart := time.Now()
	result, err := entry.Handler(rc, params.Arguments)
	if rt.recorder != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		timedOut := ctx.Err() == context.DeadlineExceeded
		rt.recorder.RecordToolCall(params.Name, tenantOf(sess), time.Since(callStart), outcome, timedOut)
	}
	if err != nil {
		if mcpErr, ok := err.(*mcp.Error); ok {
			return mcp.NewErrorResponse(env.ID, mcpErr), nil
		}
		return mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindToolExecutionError, "tool %s failed: %v", params.Name, err)), nil
	}
	if result == nil {
		result = &mcp.CallToolResult{Content: []mcp.Content{}}
	}
	if err := entry.compiledSchema.ValidateStructuredOutput(result.StructuredContent); err != nil {
		rt.logger.Warn("tool output failed schema validation", "tool", params.Name, "error", err)
	}

	resp, err := mcp.NewResultResponse(env.ID, result)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (rt *Runtime) handleResourcesRead(ctx context.Context, sess *session.Session, env *mcp.Envelope) (*mcp.Envelope, error) {
	var params mcp.ReadResourceParams
	if mcpErr := parseParams(env, &params); mcpErr != nil {
		return mcp.NewErrorResponse(env.ID, mcpErr), nil
	}
	if params.URI == "" {
		return mcp.NewErrorResponse(env.ID, mcp.NewError(mcp.KindInvalidParams, "resources/read requires a uri")), nil
	}

	entry, vars, ok := rt.registry.FindResource(params.URI)
	if !ok {
		return mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindResourceNotFound, "no such resource: %s", params.URI)), nil
	}

	rc := rt.pool.Acquire(ctx, sess, HandlerMeta{Name: entry.Name, Kind: KindResource, Description: entry.Description}, rt.clientFor(sess), rt)
	defer rt.pool.Release(rc)

	result, err := entry.Handler(rc, params.URI, vars)
	if err != nil {
		if mcpErr, ok := err.(*mcp.Error); ok {
			return mcp.NewErrorResponse(env.ID, mcpErr), nil
		}
		return mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindInternal, "resource %s failed: %v", params.URI, err)), nil
	}

	resp, err := mcp.NewResultResponse(env.ID, result)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (rt *Runtime) handlePromptsGet(ctx context.Context, sess *session.Session, env *mcp.Envelope) (*mcp.Envelope, error) {
	var params mcp.GetPromptParams
	if mcpErr := parseParams(env, &params); mcpErr != nil {
		return mcp.NewErrorResponse(env.ID, mcpErr), nil
	}
	if params.Name == "" {
		return mcp.NewErrorResponse(env.ID, mcp.NewError(mcp.KindInvalidParams, "prompts/get requires a name")), nil
	}

	entry, ok := rt.registry.FindPrompt(params.Name)
	if !ok {
		return mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindPromptNotFound, "no such prompt: %s", params.Name)), nil
	}

	for _, arg := range entry.Arguments {
		if arg.Required {
			if _, present := params.Arguments[arg.Name]; !present {
				return mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindInvalidParams, "prompt %s requires argument %s", params.Name, arg.Name)), nil
			}
		}
	}

	rc := rt.pool.Acquire(ctx, sess, HandlerMeta{Name: entry.Name, Kind: KindPrompt, Description: entry.Description}, rt.clientFor(sess), rt)
	defer rt.pool.Release(rc)

	result, err := entry.Handler(rc, params.Arguments)
	if err != nil {
		if mcpErr, ok := err.(*mcp.Error); ok {
			return mcp.NewErrorResponse(env.ID, mcpErr), nil
		}
		return mcp.NewErrorResponse(env.ID, mcp.NewErrorf(mcp.KindInternal, "prompt %s failed: %v", params.Name, err)), nil
	}

	resp, err := mcp.NewResultResponse(env.ID, result)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
