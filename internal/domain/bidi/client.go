package bidi

import (
	"context"
	"time"

	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// Client is a per-call handle bound to a single session. RequestContext
// hands one of these out from its ServerToClient accessor so a tool,
// resource, or prompt handler can call back into the client that
// invoked it without threading sessionID through every call site.
type Client struct {
	hub       *Hub
	sessionID string
}

// ForSession returns a Client scoped to sessionID.
func (h *Hub) ForSession(sessionID string) *Client {
	return &Client{hub: h, sessionID: sessionID}
}

// CreateMessage asks the client to sample from its model, per spec.md's
// sampling/createMessage. Blocks until the client replies or ctx/the
// default timeout expires.
func (c *Client) CreateMessage(ctx context.Context, params mcp.CreateMessageParams) (*mcp.CreateMessageResult, error) {
	var result mcp.CreateMessageResult
	if err := c.hub.call(ctx, c.sessionID, mcp.MethodSamplingCreateMessage, params, DefaultTimeout, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Elicit asks the client to collect additional input from its user,
// per spec.md's elicitation/create.
func (c *Client) Elicit(ctx context.Context, params mcp.ElicitParams) (*mcp.ElicitResult, error) {
	var result mcp.ElicitResult
	if err := c.hub.call(ctx, c.sessionID, mcp.MethodElicitationCreate, params, DefaultTimeout, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRoots asks the client for its current root URIs, per spec.md's
// roots/list.
func (c *Client) ListRoots(ctx context.Context) (*mcp.ListRootsResult, error) {
	var result mcp.ListRootsResult
	if err := c.hub.call(ctx, c.sessionID, mcp.MethodRootsList, nil, DefaultTimeout, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateMessageWithTimeout exists for callers that need a
// deadline other than DefaultTimeout, e.g. a handler that already knows
// its own request budget is tighter.
func (c *Client) CreateMessageWithTimeout(ctx context.Context, params mcp.CreateMessageParams, timeout time.Duration) (*mcp.CreateMessageResult, error) {
	var result mcp.CreateMessageResult
	if err := c.hub.call(ctx, c.sessionID, mcp.MethodSamplingCreateMessage, params, timeout, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
