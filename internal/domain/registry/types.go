// Package registry holds the tool/resource/prompt catalog the server
// runtime dispatches against: registration, JSON Schema validation of
// arguments, optional per-tool CEL authorization predicates, and RFC
// 6570 URI template expansion for parameterized resources.
package registry

import (
	"context"
	"encoding/json"

	"github.com/turbomcp/turbomcp/internal/domain/bidi"
	"github.com/turbomcp/turbomcp/internal/domain/session"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// Kind discriminates the three catalogs a Registry holds.
type Kind int

const (
	KindTool Kind = iota
	KindResource
	KindPrompt
)

func (k Kind) String() string {
	switch k {
	case KindTool:
		return "tool"
	case KindResource:
		return "resource"
	case KindPrompt:
		return "prompt"
	default:
		return "unknown"
	}
}

// ToolHandler executes a tool call. args is the raw JSON arguments
// object, already validated against the tool's input schema.
type ToolHandler func(ctx *RequestContext, args json.RawMessage) (*mcp.CallToolResult, error)

// ResourceHandler reads a resource. variables holds the RFC 6570
// template variables extracted from the requested URI; for a
// non-templated resource it is empty.
type ResourceHandler func(ctx *RequestContext, uri string, variables map[string]string) (*mcp.ReadResourceResult, error)

// PromptHandler renders a prompt from its arguments.
type PromptHandler func(ctx *RequestContext, args map[string]string) (*mcp.GetPromptResult, error)

// ToolEntry is a registered tool: its schema, advisory annotations, an
// optional CEL authorization predicate, and its handler.
type ToolEntry struct {
	Name         string
	Title        string
	Description  string
	InputSchema  json.RawMessage
	OutputSchema json.RawMessage
	Annotations  *mcp.ToolAnnotations

	// Policy is an optional CEL expression evaluated before the handler
	// runs, with `args` (the decoded argument map) and `session` (id,
	// roles) bound as variables. A false result maps to
	// KindResourceAccessDenied; a compile error at registration time is
	// returned from RegisterTool, never deferred to call time.
	Policy string

	Handler ToolHandler

	compiledSchema *compiledSchema
	compiledPolicy *policyPredicate
}

// ResourceEntry is a registered resource or resource template.
type ResourceEntry struct {
	URI         string // set for a concrete resource
	URITemplate string // set for a templated resource; mutually exclusive with URI
	Name        string
	Title       string
	Description string
	MimeType    string

	Handler ResourceHandler

	compiledTemplate *compiledTemplate
}

// IsTemplate reports whether e is a parameterized resource template
// rather than a concrete, directly-listable resource.
func (e *ResourceEntry) IsTemplate() bool { return e.URITemplate != "" }

// PromptEntry is a registered prompt.
type PromptEntry struct {
	Name        string
	Title       string
	Description string
	Arguments   []mcp.PromptArgument

	Handler PromptHandler
}

// HandlerMeta identifies the handler a RequestContext was built for, for
// tracing spans and audit events.
type HandlerMeta struct {
	Name        string
	Kind        Kind
	Description string
}

// ResourceNotifier lets a handler announce that a resource's contents
// changed, so the runtime can push notifications/resources/updated to
// every session subscribed to that URI.
type ResourceNotifier interface {
	NotifyResourceUpdated(ctx context.Context, uri string) error
}

// RequestContext is the per-call context the runtime hands each handler.
// Instances are pooled; Reset clears every field between uses so a
// handler can never observe a prior call's state.
type RequestContext struct {
	ctx      context.Context
	Session  *session.Session
	Handler  HandlerMeta
	client   *bidi.Client
	notifier ResourceNotifier
}

// Context returns the call's cancellation/deadline context.
func (c *RequestContext) Context() context.Context { return c.ctx }

// ServerToClient returns the facade a handler uses to issue
// sampling/createMessage, elicitation/create, and roots/list calls back
// against the session that invoked it. Nil when the runtime was built
// without a bidirectional hub (e.g. a transport that can't push to its
// client, or a unit test).
func (c *RequestContext) ServerToClient() *bidi.Client { return c.client }

// NotifyResourceUpdated announces that the resource at uri changed, so
// every session subscribed to it (via resources/subscribe) receives a
// notifications/resources/updated push. A no-op when the runtime has
// no notifier configured.
func (c *RequestContext) NotifyResourceUpdated(uri string) error {
	if c.notifier == nil {
		return nil
	}
	return c.notifier.NotifyResourceUpdated(c.ctx, uri)
}

// Reset clears c for reuse by the pool.
func (c *RequestContext) Reset() {
	c.ctx = nil
	c.Session = nil
	c.Handler = HandlerMeta{}
	c.client = nil
	c.notifier = nil
}
